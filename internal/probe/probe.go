package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"clipper/internal/logging"
	"clipper/internal/runner"
)

// Result holds what the probe learned. Nil fields are unknown.
type Result struct {
	SizeBytes       *int64
	DurationSeconds *float64
	Title           string
	Extractor       string
}

// Prober queries metadata through the fetcher.
type Prober struct {
	exec    runner.Executor
	tools   runner.Toolchain
	timeout time.Duration
	workDir string
	logger  *slog.Logger
}

// New constructs a Prober. Each probe runs in a scratch directory under workDir.
func New(exec runner.Executor, tools runner.Toolchain, timeout time.Duration, workDir string, logger *slog.Logger) *Prober {
	return &Prober{
		exec:    exec,
		tools:   tools,
		timeout: timeout,
		workDir: workDir,
		logger:  logging.NewComponentLogger(logger, "probe"),
	}
}

// Probe fetches metadata for url.
func (p *Prober) Probe(ctx context.Context, url string) (Result, error) {
	if err := ValidateURL(url); err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(p.workDir, 0o755); err != nil {
		return Result{}, &Error{Kind: KindUnreachable, Detail: "prepare scratch directory", Err: err}
	}
	scratch, err := os.MkdirTemp(p.workDir, "probe_")
	if err != nil {
		return Result{}, &Error{Kind: KindUnreachable, Detail: "prepare scratch directory", Err: err}
	}
	defer os.RemoveAll(scratch)

	started := time.Now()
	info, err := p.exec.Run(ctx, p.tools.ProbeCommand(url, scratch, p.timeout))
	if err != nil {
		return Result{}, classify(err)
	}
	result, err := parseMetadata(info.Stdout)
	if err != nil {
		return Result{}, err
	}
	logging.WithContext(ctx, p.logger).Debug("probe finished",
		logging.URL(url),
		logging.String("extractor", result.Extractor),
		logging.Bool("size_known", result.SizeBytes != nil),
		logging.Bool("duration_known", result.DurationSeconds != nil),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func classify(err error) error {
	var runErr *runner.RunError
	if !errors.As(err, &runErr) {
		return &Error{Kind: KindUnreachable, Err: err}
	}
	switch runErr.Kind {
	case runner.KindTimeout:
		return &Error{Kind: KindTimeout, Err: err}
	case runner.KindCancelled:
		return err
	}
	for _, line := range runErr.Tail {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "unsupported url") || strings.Contains(lower, "no video formats found") {
			return &Error{Kind: KindUnsupported, Detail: "platform not supported", Err: err}
		}
		if strings.Contains(lower, "timed out") {
			return &Error{Kind: KindTimeout, Err: err}
		}
	}
	return &Error{Kind: KindUnreachable, Detail: runErr.LastLine(), Err: err}
}

type metadata struct {
	Type             string   `json:"_type"`
	Title            string   `json:"title"`
	Extractor        string   `json:"extractor_key"`
	Duration         *float64 `json:"duration"`
	Filesize         *float64 `json:"filesize"`
	FilesizeApprox   *float64 `json:"filesize_approx"`
	TotalBitrateKbps *float64 `json:"tbr"`
	RequestedFormats []struct {
		Filesize       *float64 `json:"filesize"`
		FilesizeApprox *float64 `json:"filesize_approx"`
	} `json:"requested_formats"`
}

func parseMetadata(data []byte) (Result, error) {
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 {
		return Result{}, &Error{Kind: KindUnreachable, Detail: "fetcher returned no metadata"}
	}
	// Only the first document matters if the fetcher printed several.
	if idx := strings.IndexByte(string(data), '\n'); idx > 0 {
		data = data[:idx]
	}
	var meta metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Result{}, &Error{Kind: KindUnreachable, Detail: "unreadable metadata", Err: err}
	}
	if meta.Type == "playlist" {
		return Result{}, &Error{Kind: KindUnsupported, Detail: "playlists are not supported"}
	}

	result := Result{Title: meta.Title, Extractor: meta.Extractor}
	if d, ok := positive(meta.Duration); ok {
		result.DurationSeconds = &d
	}
	result.SizeBytes = sizeOf(meta, result.DurationSeconds)
	return result, nil
}

// sizeOf picks the first usable size: exact, approximate, sum of requested
// formats, then duration x total bitrate.
func sizeOf(meta metadata, duration *float64) *int64 {
	for _, candidate := range []*float64{meta.Filesize, meta.FilesizeApprox} {
		if v, ok := positive(candidate); ok {
			return bytesPtr(v)
		}
	}
	if len(meta.RequestedFormats) > 0 {
		var total float64
		complete := true
		for _, f := range meta.RequestedFormats {
			v, ok := positive(f.Filesize)
			if !ok {
				v, ok = positive(f.FilesizeApprox)
			}
			if !ok {
				complete = false
				break
			}
			total += v
		}
		if complete && total > 0 {
			return bytesPtr(total)
		}
	}
	if tbr, ok := positive(meta.TotalBitrateKbps); ok && duration != nil {
		return bytesPtr(*duration * tbr * 125)
	}
	return nil
}

func positive(v *float64) (float64, bool) {
	if v == nil || *v <= 0 || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}

func bytesPtr(v float64) *int64 {
	n := int64(math.Round(v))
	return &n
}

// String renders a short human summary.
func (r Result) String() string {
	size := "unknown size"
	if r.SizeBytes != nil {
		size = fmt.Sprintf("%d bytes", *r.SizeBytes)
	}
	duration := "unknown duration"
	if r.DurationSeconds != nil {
		duration = (time.Duration(*r.DurationSeconds * float64(time.Second))).Round(time.Second).String()
	}
	return size + ", " + duration
}
