package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// ValidateForDaemon applies the additional checks needed to run the bot.
func (c *Config) ValidateForDaemon() error {
	if c.Telegram.BotToken == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/clipper/config.toml"
		}
		return fmt.Errorf("telegram.bot_token is required. Set BOT_TOKEN env var or edit %s (create with 'clipper config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Limits.UploadCeilingMB <= 0 {
		return errors.New("limits.upload_ceiling_mb must be positive")
	}
	if c.Limits.MaxSourceMB < c.Limits.UploadCeilingMB {
		return errors.New("limits.max_source_mb must be at least limits.upload_ceiling_mb")
	}
	checks := []struct {
		name  string
		value int
	}{
		{"limits.confirmation_expiry", c.Limits.ConfirmationExpiry},
		{"limits.probe_timeout", c.Limits.ProbeTimeout},
		{"limits.fetch_timeout", c.Limits.FetchTimeout},
		{"limits.encode_timeout", c.Limits.EncodeTimeout},
	}
	for _, check := range checks {
		if check.value <= 0 {
			return fmt.Errorf("%s must be positive", check.name)
		}
	}
	return nil
}

func (c *Config) validateEncoding() error {
	seen := make(map[string]struct{}, len(c.Encoding.Presets))
	for i, preset := range c.Encoding.Presets {
		if preset.Name == "" {
			return fmt.Errorf("encoding.presets[%d].name must be set", i)
		}
		key := strings.ToLower(preset.Name)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("encoding.presets: duplicate preset %q", preset.Name)
		}
		seen[key] = struct{}{}
		if preset.BitrateKbps <= 0 {
			return fmt.Errorf("encoding.presets[%q].bitrate_kbps must be positive", preset.Name)
		}
		if preset.Overhead < 0 || preset.Overhead > 1 {
			return fmt.Errorf("encoding.presets[%q].overhead must be between 0 and 1", preset.Name)
		}
	}
	if _, ok := seen[strings.ToLower(c.Encoding.DefaultPreset)]; !ok {
		return fmt.Errorf("encoding.default_preset %q is not in encoding.presets", c.Encoding.DefaultPreset)
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case "sqlite":
		return nil
	case "redis":
		if c.Store.RedisAddr == "" {
			return errors.New("store.redis_addr must be set when store.backend is redis")
		}
		return nil
	default:
		return fmt.Errorf("store.backend: unsupported value %q (want sqlite or redis)", c.Store.Backend)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
