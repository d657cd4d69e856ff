package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir  string `toml:"work_dir"`
	LogDir   string `toml:"log_dir"`
	StateDir string `toml:"state_dir"`
}

// Telegram contains bot API configuration.
type Telegram struct {
	BotToken    string `toml:"bot_token"`
	PollTimeout int    `toml:"poll_timeout"`
	APIEndpoint string `toml:"api_endpoint"`
	Debug       bool   `toml:"debug"`
}

// Limits contains size ceilings and per-operation timeouts. Durations are in seconds.
type Limits struct {
	UploadCeilingMB    int `toml:"upload_ceiling_mb"`
	MaxSourceMB        int `toml:"max_source_mb"`
	ConfirmationExpiry int `toml:"confirmation_expiry"`
	ProbeTimeout       int `toml:"probe_timeout"`
	FetchTimeout       int `toml:"fetch_timeout"`
	EncodeTimeout      int `toml:"encode_timeout"`
	UploadTimeout      int `toml:"upload_timeout"`
	ProgressInterval   int `toml:"progress_interval"`
	KillGrace          int `toml:"kill_grace"`
}

// Preset is one entry of the encoding preset table.
type Preset struct {
	Name        string  `toml:"name"`
	BitrateKbps int     `toml:"bitrate_kbps"`
	Overhead    float64 `toml:"overhead"`
}

// Encoding contains the preset table and the fallback preset.
type Encoding struct {
	DefaultPreset string   `toml:"default_preset"`
	Presets       []Preset `toml:"presets"`
}

// Tools contains the external binaries and their fixed arguments.
type Tools struct {
	Fetcher          string `toml:"fetcher"`
	Encoder          string `toml:"encoder"`
	FetchFormat      string `toml:"fetch_format"`
	SocketTimeout    int    `toml:"socket_timeout"`
	AudioBitrateKbps int    `toml:"audio_bitrate_kbps"`
}

// Store selects and configures the whitelist/settings backend.
type Store struct {
	Backend           string `toml:"backend"`
	RedisAddr         string `toml:"redis_addr"`
	RedisPassword     string `toml:"redis_password"`
	RedisDB           int    `toml:"redis_db"`
	LogRetentionHours int    `toml:"log_retention_hours"`
}

// Access contains whitelist seeding.
type Access struct {
	SeedUsers []int64 `toml:"seed_users"`
}

// Notifications contains configuration for ntfy operator alerts.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobFailures    bool   `toml:"job_failures"`
	JobCompletions bool   `toml:"job_completions"`
}

// Metrics contains the Prometheus endpoint configuration.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Clipper.
//
// Configuration sections by subsystem:
//   - Paths: job workspaces, logs and the state database
//   - Telegram: bot credentials and polling
//   - Limits: upload ceiling and per-operation timeouts
//   - Encoding: preset table used for estimates and encodes
//   - Tools: fetcher/encoder binaries
//   - Store: whitelist/settings backend
//   - Access: whitelist seeding
//   - Notifications: ntfy operator alerts
//   - Metrics: Prometheus endpoint
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Telegram      Telegram      `toml:"telegram"`
	Limits        Limits        `toml:"limits"`
	Encoding      Encoding      `toml:"encoding"`
	Tools         Tools         `toml:"tools"`
	Store         Store         `toml:"store"`
	Access        Access        `toml:"access"`
	Notifications Notifications `toml:"notifications"`
	Metrics       Metrics       `toml:"metrics"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipper/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		// Presets from the file replace the defaults instead of merging by index.
		cfg.Encoding.Presets = nil
		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads ./.env when present. Variables already set in the
// environment take precedence.
func loadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipper.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir, c.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "clipper.db")
}

// LockPath returns the daemon lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "clipper.lock")
}

// UploadCeilingBytes returns the upload ceiling L in bytes.
func (c *Config) UploadCeilingBytes() int64 {
	return int64(c.Limits.UploadCeilingMB) * 1024 * 1024
}

// MaxSourceBytes returns the hard cap handed to the fetcher.
func (c *Config) MaxSourceBytes() int64 {
	return int64(c.Limits.MaxSourceMB) * 1024 * 1024
}

// ConfirmationExpiry returns how long a job may wait for the user's answer.
func (c *Config) ConfirmationExpiry() time.Duration {
	return seconds(c.Limits.ConfirmationExpiry)
}

// ProbeTimeout returns the metadata probe timeout.
func (c *Config) ProbeTimeout() time.Duration {
	return seconds(c.Limits.ProbeTimeout)
}

// FetchTimeout returns the hard timeout for one fetch invocation.
func (c *Config) FetchTimeout() time.Duration {
	return seconds(c.Limits.FetchTimeout)
}

// EncodeTimeout returns the hard timeout for one encode invocation.
func (c *Config) EncodeTimeout() time.Duration {
	return seconds(c.Limits.EncodeTimeout)
}

// UploadTimeout returns the timeout for handing the result to the chat transport.
func (c *Config) UploadTimeout() time.Duration {
	return seconds(c.Limits.UploadTimeout)
}

// ProgressInterval returns the minimum spacing between progress updates.
func (c *Config) ProgressInterval() time.Duration {
	return seconds(c.Limits.ProgressInterval)
}

// KillGrace returns how long a terminated subprocess gets before SIGKILL.
func (c *Config) KillGrace() time.Duration {
	return seconds(c.Limits.KillGrace)
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
