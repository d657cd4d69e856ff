package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTelegram()
	c.normalizeLimits()
	c.normalizeEncoding()
	c.normalizeTools()
	c.normalizeStore()
	if err := c.normalizeAccess(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeMetrics()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTelegram() {
	c.Telegram.BotToken = strings.TrimSpace(c.Telegram.BotToken)
	if c.Telegram.BotToken == "" {
		if value, ok := os.LookupEnv("BOT_TOKEN"); ok {
			c.Telegram.BotToken = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("TELEGRAM_BOT_TOKEN"); ok {
			c.Telegram.BotToken = strings.TrimSpace(value)
		}
	}
	c.Telegram.APIEndpoint = strings.TrimSpace(c.Telegram.APIEndpoint)
	if c.Telegram.APIEndpoint == "" {
		c.Telegram.APIEndpoint = defaultTelegramAPIEndpoint
	}
	if c.Telegram.PollTimeout <= 0 {
		c.Telegram.PollTimeout = defaultPollTimeout
	}
}

func (c *Config) normalizeLimits() {
	if c.Limits.ProgressInterval <= 0 {
		c.Limits.ProgressInterval = defaultProgressInterval
	}
	if c.Limits.KillGrace <= 0 {
		c.Limits.KillGrace = defaultKillGrace
	}
	if c.Limits.UploadTimeout <= 0 {
		c.Limits.UploadTimeout = defaultUploadTimeout
	}
}

func (c *Config) normalizeEncoding() {
	c.Encoding.DefaultPreset = strings.TrimSpace(c.Encoding.DefaultPreset)
	if len(c.Encoding.Presets) == 0 {
		c.Encoding.Presets = DefaultPresets()
	}
	for i := range c.Encoding.Presets {
		c.Encoding.Presets[i].Name = strings.TrimSpace(c.Encoding.Presets[i].Name)
	}
	if c.Encoding.DefaultPreset == "" {
		c.Encoding.DefaultPreset = c.Encoding.Presets[0].Name
	}
}

func (c *Config) normalizeTools() {
	c.Tools.Fetcher = strings.TrimSpace(c.Tools.Fetcher)
	if c.Tools.Fetcher == "" {
		c.Tools.Fetcher = defaultFetcher
	}
	c.Tools.Encoder = strings.TrimSpace(c.Tools.Encoder)
	if c.Tools.Encoder == "" {
		c.Tools.Encoder = defaultEncoder
	}
	c.Tools.FetchFormat = strings.TrimSpace(c.Tools.FetchFormat)
	if c.Tools.FetchFormat == "" {
		c.Tools.FetchFormat = defaultFetchFormat
	}
	if c.Tools.SocketTimeout <= 0 {
		c.Tools.SocketTimeout = defaultSocketTimeout
	}
	if c.Tools.AudioBitrateKbps <= 0 {
		c.Tools.AudioBitrateKbps = defaultAudioBitrateKbps
	}
}

func (c *Config) normalizeStore() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = defaultStoreBackend
	}
	c.Store.RedisAddr = strings.TrimSpace(c.Store.RedisAddr)
	if c.Store.RedisPassword == "" {
		if value, ok := os.LookupEnv("REDIS_PASSWORD"); ok {
			c.Store.RedisPassword = value
		}
	}
	if c.Store.LogRetentionHours <= 0 {
		c.Store.LogRetentionHours = defaultLogRetentionHours
	}
}

func (c *Config) normalizeAccess() error {
	value, ok := os.LookupEnv("ALLOWED_USER_ID")
	if !ok {
		return nil
	}
	for _, field := range strings.Split(value, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return fmt.Errorf("ALLOWED_USER_ID: invalid user id %q", field)
		}
		if !containsID(c.Access.SeedUsers, id) {
			c.Access.SeedUsers = append(c.Access.SeedUsers, id)
		}
	}
	return nil
}

func containsID(ids []int64, id int64) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyRequestTimeout
	}
}

func (c *Config) normalizeMetrics() {
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	if c.Metrics.Bind == "" {
		c.Metrics.Bind = defaultMetricsBind
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
