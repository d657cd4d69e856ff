package estimate

import (
	"fmt"
	"math"
)

// bytesPerMB is the unit used in user-facing sizes.
const bytesPerMB = 1024 * 1024

// Preset describes one encoder preset and its size characteristics.
type Preset struct {
	Name        string
	BitrateKbps int
	Overhead    float64
}

// Bytes predicts the encoded size of a video of the given duration.
//
//	bytes = duration * bitrate_kbps * 1000 / 8 * (1 + overhead)
//
// Negative, NaN and infinite durations estimate to zero.
func Bytes(durationSeconds float64, preset Preset) int64 {
	if durationSeconds <= 0 || math.IsNaN(durationSeconds) || math.IsInf(durationSeconds, 0) {
		return 0
	}
	bitrate := float64(preset.BitrateKbps)
	if bitrate < 0 {
		bitrate = 0
	}
	overhead := preset.Overhead
	if overhead < 0 {
		overhead = 0
	}
	raw := durationSeconds * bitrate * 1000 / 8 * (1 + overhead)
	if raw >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.Round(raw))
}

// Optional returns a pointer to the estimate, or nil when the duration is unknown.
func Optional(durationSeconds *float64, preset Preset) *int64 {
	if durationSeconds == nil {
		return nil
	}
	value := Bytes(*durationSeconds, preset)
	return &value
}

// MB converts a byte count to mebibytes.
func MB(bytes int64) float64 {
	return float64(bytes) / bytesPerMB
}

// FromMB converts mebibytes to bytes.
func FromMB(mb int) int64 {
	return int64(mb) * bytesPerMB
}

// FormatMB renders a byte count as "12.3 MB".
func FormatMB(bytes int64) string {
	return fmt.Sprintf("%.1f MB", MB(bytes))
}

// FormatOptionalMB renders a byte count or "unknown" when absent.
func FormatOptionalMB(bytes *int64) string {
	if bytes == nil {
		return "unknown"
	}
	return FormatMB(*bytes)
}
