package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"clipper/internal/config"
)

func TestLoadDefaultConfigUsesEnvTokenAndExpandsPaths(t *testing.T) {
	t.Setenv("BOT_TOKEN", "test-token")
	t.Setenv("ALLOWED_USER_ID", "42, 7")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "clipper", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Telegram.BotToken != "test-token" {
		t.Fatalf("expected bot token from env, got %q", cfg.Telegram.BotToken)
	}
	if len(cfg.Access.SeedUsers) != 2 || cfg.Access.SeedUsers[0] != 42 || cfg.Access.SeedUsers[1] != 7 {
		t.Fatalf("unexpected seed users: %v", cfg.Access.SeedUsers)
	}
	if got := cfg.UploadCeilingBytes(); got != 50*1024*1024 {
		t.Fatalf("unexpected upload ceiling: %d", got)
	}
	if cfg.ConfirmationExpiry() != 10*time.Minute {
		t.Fatalf("unexpected confirmation expiry: %s", cfg.ConfirmationExpiry())
	}
	if cfg.Encoding.DefaultPreset != "Fast Mobile 720p30" {
		t.Fatalf("unexpected default preset: %q", cfg.Encoding.DefaultPreset)
	}
	if len(cfg.Encoding.Presets) != len(config.DefaultPresets()) {
		t.Fatalf("expected default preset table, got %d entries", len(cfg.Encoding.Presets))
	}
	if err := cfg.ValidateForDaemon(); err != nil {
		t.Fatalf("ValidateForDaemon: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.LogDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPathReplacesPresetTable(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "clipper.toml")

	type preset struct {
		Name        string  `toml:"name"`
		BitrateKbps int     `toml:"bitrate_kbps"`
		Overhead    float64 `toml:"overhead"`
	}
	type payload struct {
		Limits struct {
			UploadCeilingMB int `toml:"upload_ceiling_mb"`
			MaxSourceMB     int `toml:"max_source_mb"`
		} `toml:"limits"`
		Encoding struct {
			DefaultPreset string   `toml:"default_preset"`
			Presets       []preset `toml:"presets"`
		} `toml:"encoding"`
	}
	custom := payload{}
	custom.Limits.UploadCeilingMB = 20
	custom.Limits.MaxSourceMB = 500
	custom.Encoding.DefaultPreset = "Tiny"
	custom.Encoding.Presets = []preset{{Name: "Tiny", BitrateKbps: 400, Overhead: 0.1}}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Limits.UploadCeilingMB != 20 {
		t.Fatalf("expected ceiling override, got %d", cfg.Limits.UploadCeilingMB)
	}
	if len(cfg.Encoding.Presets) != 1 || cfg.Encoding.Presets[0].Name != "Tiny" {
		t.Fatalf("expected preset table from file, got %+v", cfg.Encoding.Presets)
	}
	if cfg.Limits.FetchTimeout != config.Default().Limits.FetchTimeout {
		t.Fatalf("expected untouched fields to keep defaults, got fetch timeout %d", cfg.Limits.FetchTimeout)
	}
}

func TestValidateForDaemonRequiresToken(t *testing.T) {
	cfg := config.Default()
	cfg.Telegram.BotToken = ""
	err := cfg.ValidateForDaemon()
	if err == nil {
		t.Fatal("expected error for missing bot token")
	}
	if !strings.Contains(err.Error(), "BOT_TOKEN") {
		t.Fatalf("expected env var hint in error, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.WorkDir, "clipper") {
		t.Fatalf("expected work dir to contain clipper, got %q", cfg.Paths.WorkDir)
	}
	if len(cfg.Encoding.Presets) != len(config.DefaultPresets()) {
		t.Fatalf("sample preset table drifted from defaults: %d entries", len(cfg.Encoding.Presets))
	}
	for i, preset := range config.DefaultPresets() {
		if cfg.Encoding.Presets[i] != preset {
			t.Fatalf("sample preset %d = %+v, want %+v", i, cfg.Encoding.Presets[i], preset)
		}
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero ceiling", func(c *config.Config) { c.Limits.UploadCeilingMB = 0 }},
		{"source cap below ceiling", func(c *config.Config) { c.Limits.MaxSourceMB = 10 }},
		{"zero encode timeout", func(c *config.Config) { c.Limits.EncodeTimeout = 0 }},
		{"zero confirmation expiry", func(c *config.Config) { c.Limits.ConfirmationExpiry = 0 }},
		{"unknown default preset", func(c *config.Config) { c.Encoding.DefaultPreset = "Nope" }},
		{"duplicate preset", func(c *config.Config) {
			c.Encoding.Presets = append(c.Encoding.Presets, c.Encoding.Presets[0])
		}},
		{"negative overhead", func(c *config.Config) { c.Encoding.Presets[0].Overhead = -0.1 }},
		{"zero bitrate", func(c *config.Config) { c.Encoding.Presets[1].BitrateKbps = 0 }},
		{"unknown backend", func(c *config.Config) { c.Store.Backend = "mongo" }},
		{"redis without addr", func(c *config.Config) {
			c.Store.Backend = "redis"
			c.Store.RedisAddr = ""
		}},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestMarshalRedactedMasksSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.Telegram.BotToken = "123456:secret"
	cfg.Store.RedisPassword = "hunter2"

	data, err := cfg.MarshalRedacted()
	if err != nil {
		t.Fatalf("MarshalRedacted: %v", err)
	}
	text := string(data)
	if strings.Contains(text, "secret") || strings.Contains(text, "hunter2") {
		t.Fatalf("secrets leaked:\n%s", text)
	}
	if !strings.Contains(text, "<redacted>") {
		t.Fatalf("expected masked token:\n%s", text)
	}
	if cfg.Telegram.BotToken != "123456:secret" {
		t.Fatal("Redacted must not modify the receiver")
	}
}
