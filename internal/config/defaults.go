package config

const (
	defaultWorkDir             = "~/.local/share/clipper/work"
	defaultLogDir              = "~/.local/share/clipper/logs"
	defaultStateDir            = "~/.local/share/clipper/state"
	defaultPollTimeout         = 60
	defaultUploadCeilingMB     = 50
	defaultMaxSourceMB         = 2048
	defaultConfirmationExpiry  = 600
	defaultProbeTimeout        = 30
	defaultFetchTimeout        = 1800
	defaultEncodeTimeout       = 3600
	defaultUploadTimeout       = 300
	defaultProgressInterval    = 5
	defaultKillGrace           = 5
	defaultPreset              = "Fast Mobile 720p30"
	defaultPresetOverhead      = 0.05
	defaultFetcher             = "yt-dlp"
	defaultEncoder             = "HandBrakeCLI"
	defaultFetchFormat         = "best[ext=mp4]/best"
	defaultSocketTimeout       = 30
	defaultAudioBitrateKbps    = 128
	defaultStoreBackend        = "sqlite"
	defaultRedisAddr           = "127.0.0.1:6379"
	defaultLogRetentionHours   = 48
	defaultNtfyRequestTimeout  = 10
	defaultMetricsBind         = "127.0.0.1:9464"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultTelegramAPIEndpoint = "https://api.telegram.org/bot%s/%s"
)

// DefaultPresets returns the built-in encoding preset table.
func DefaultPresets() []Preset {
	return []Preset{
		{Name: "Very Fast 480p30", BitrateKbps: 1000, Overhead: defaultPresetOverhead},
		{Name: "Very Fast 720p30", BitrateKbps: 1500, Overhead: defaultPresetOverhead},
		{Name: "Fast Mobile 720p30", BitrateKbps: 2000, Overhead: defaultPresetOverhead},
		{Name: "Very Fast 1080p30", BitrateKbps: 3000, Overhead: defaultPresetOverhead},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Telegram: Telegram{
			PollTimeout: defaultPollTimeout,
			APIEndpoint: defaultTelegramAPIEndpoint,
		},
		Limits: Limits{
			UploadCeilingMB:    defaultUploadCeilingMB,
			MaxSourceMB:        defaultMaxSourceMB,
			ConfirmationExpiry: defaultConfirmationExpiry,
			ProbeTimeout:       defaultProbeTimeout,
			FetchTimeout:       defaultFetchTimeout,
			EncodeTimeout:      defaultEncodeTimeout,
			UploadTimeout:      defaultUploadTimeout,
			ProgressInterval:   defaultProgressInterval,
			KillGrace:          defaultKillGrace,
		},
		Encoding: Encoding{
			DefaultPreset: defaultPreset,
			Presets:       DefaultPresets(),
		},
		Tools: Tools{
			Fetcher:          defaultFetcher,
			Encoder:          defaultEncoder,
			FetchFormat:      defaultFetchFormat,
			SocketTimeout:    defaultSocketTimeout,
			AudioBitrateKbps: defaultAudioBitrateKbps,
		},
		Store: Store{
			Backend:           defaultStoreBackend,
			RedisAddr:         defaultRedisAddr,
			LogRetentionHours: defaultLogRetentionHours,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
			JobFailures:    true,
		},
		Metrics: Metrics{
			Bind: defaultMetricsBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
