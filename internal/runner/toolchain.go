package runner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"clipper/internal/config"
	"clipper/internal/estimate"
)

const (
	fetchBaseName  = "source"
	encodeBaseName = "encoded.mp4"
)

// Toolchain owns the argument syntax of the fetcher and encoder.
type Toolchain struct {
	Fetcher          string
	Encoder          string
	FetchFormat      string
	SocketTimeout    int
	AudioBitrateKbps int
	MaxSourceBytes   int64
}

// ToolchainFromConfig builds a toolchain from the [tools] and [limits] sections.
func ToolchainFromConfig(cfg *config.Config) Toolchain {
	return Toolchain{
		Fetcher:          cfg.Tools.Fetcher,
		Encoder:          cfg.Tools.Encoder,
		FetchFormat:      cfg.Tools.FetchFormat,
		SocketTimeout:    cfg.Tools.SocketTimeout,
		AudioBitrateKbps: cfg.Tools.AudioBitrateKbps,
		MaxSourceBytes:   cfg.MaxSourceBytes(),
	}
}

// ProbeCommand queries metadata only and prints a single JSON document.
func (t Toolchain) ProbeCommand(url, dir string, timeout time.Duration) Command {
	args := []string{
		"--dump-json",
		"--skip-download",
		"--no-playlist",
		"--no-warnings",
	}
	args = append(args, t.socketArgs()...)
	args = append(args, "--", url)
	return Command{Name: "probe", Binary: t.Fetcher, Args: args, Dir: dir, Timeout: timeout, CaptureStdout: true}
}

// FetchCommand downloads url into dir. The file lands at
// dir/source.<ext>; use FindFetched to locate it.
func (t Toolchain) FetchCommand(url, dir string, timeout time.Duration, onLine func(string)) Command {
	args := []string{
		"--format", t.FetchFormat,
		"--no-playlist",
		"--newline",
		"--no-part",
		"--output", filepath.Join(dir, fetchBaseName+".%(ext)s"),
	}
	if t.MaxSourceBytes > 0 {
		args = append(args, "--max-filesize", strconv.FormatInt(t.MaxSourceBytes, 10))
	}
	args = append(args, t.socketArgs()...)
	args = append(args, "--", url)
	return Command{Name: "fetch", Binary: t.Fetcher, Args: args, Dir: dir, Timeout: timeout, OnLine: onLine}
}

// EncodeCommand transcodes src into dst with the preset's name and bitrate.
func (t Toolchain) EncodeCommand(src, dst string, preset estimate.Preset, dir string, timeout time.Duration, onLine func(string)) Command {
	audio := t.AudioBitrateKbps
	if audio <= 0 {
		audio = 128
	}
	args := []string{
		"-i", src,
		"-o", dst,
		"--preset", preset.Name,
		"-e", "x264",
		"-b", strconv.Itoa(preset.BitrateKbps),
		"-a", "1",
		"-E", "aac",
		"-B", strconv.Itoa(audio),
		"--format", "av_mp4",
	}
	return Command{Name: "encode", Binary: t.Encoder, Args: args, Dir: dir, Timeout: timeout, OnLine: onLine}
}

// EncodedPath returns the encoder destination inside dir.
func EncodedPath(dir string) string {
	return filepath.Join(dir, encodeBaseName)
}

// FindFetched locates the file written by FetchCommand.
func FindFetched(dir string) (string, int64, error) {
	matches, err := filepath.Glob(filepath.Join(dir, fetchBaseName+".*"))
	if err != nil {
		return "", 0, err
	}
	var (
		best     string
		bestSize int64 = -1
	)
	for _, match := range matches {
		lower := strings.ToLower(match)
		if strings.HasSuffix(lower, ".part") || strings.HasSuffix(lower, ".ytdl") || strings.HasSuffix(lower, ".json") {
			continue
		}
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Size() > bestSize {
			best, bestSize = match, info.Size()
		}
	}
	if best == "" {
		return "", 0, errors.New("fetcher produced no output file")
	}
	return best, bestSize, nil
}

func (t Toolchain) socketArgs() []string {
	if t.SocketTimeout <= 0 {
		return nil
	}
	return []string{"--socket-timeout", strconv.Itoa(t.SocketTimeout)}
}

// String summarises the configured binaries.
func (t Toolchain) String() string {
	return fmt.Sprintf("fetcher=%s encoder=%s", t.Fetcher, t.Encoder)
}
