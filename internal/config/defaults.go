package config

const (
	defaultConfigPath            = "~/.config/reelgate/config.toml"
	defaultInputDir              = "~/media/incoming"
	defaultOutputDir             = "~/media/output"
	defaultLogDir                = "~/.local/share/reelgate/logs"
	defaultDatabasePath          = "~/.local/share/reelgate/registry.db"
	defaultLogRetentionDays      = 30
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultScheduleStart         = "00:00"
	defaultScheduleStop          = "08:50"
	defaultPollIntervalSeconds   = 1
	defaultStabilitySeconds      = 2
	defaultWatcherQueueSize      = 64
	defaultFingerprintAlgorithm  = "sha256"
	defaultFingerprintCacheSize  = 1024
	defaultFingerprintCacheTTL   = 60
	defaultEncodingEngine        = "library"
	defaultDraptoBinary          = "drapto"
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultBatchSize             = 50
	defaultErrorRetrySeconds     = 30
	defaultRescanPeriodMinutes   = 15
	defaultAPIBind               = "127.0.0.1:3000"
	defaultStatusIntervalSeconds = 5
	defaultPageSize              = 50
	defaultMaxPageSize           = 500
	defaultNotifyRequestTimeout  = 10
)

var defaultWatchExtensions = []string{".mp4", ".mkv"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InputDir:     defaultInputDir,
			OutputDir:    defaultOutputDir,
			LogDir:       defaultLogDir,
			DatabasePath: defaultDatabasePath,
		},
		Schedule: Schedule{
			Start: defaultScheduleStart,
			Stop:  defaultScheduleStop,
		},
		Watcher: Watcher{
			Enabled:             true,
			PollIntervalSeconds: defaultPollIntervalSeconds,
			StabilitySeconds:    defaultStabilitySeconds,
			QueueSize:           defaultWatcherQueueSize,
			IgnoreDotfiles:      true,
			Extensions:          append([]string(nil), defaultWatchExtensions...),
		},
		Fingerprint: Fingerprint{
			Algorithm:       defaultFingerprintAlgorithm,
			CacheSize:       defaultFingerprintCacheSize,
			CacheTTLMinutes: defaultFingerprintCacheTTL,
		},
		Encoding: Encoding{
			Engine:       defaultEncodingEngine,
			DraptoBinary: defaultDraptoBinary,
			Responsive:   true,
		},
		Subtitles: Subtitles{
			Enabled:       true,
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Scheduler: Scheduler{
			BatchSize:           defaultBatchSize,
			ErrorRetrySeconds:   defaultErrorRetrySeconds,
			RescanPeriodMinutes: defaultRescanPeriodMinutes,
		},
		API: API{
			Enabled:               true,
			Bind:                  defaultAPIBind,
			StatusIntervalSeconds: defaultStatusIntervalSeconds,
			DefaultPageSize:       defaultPageSize,
			MaxPageSize:           defaultMaxPageSize,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			DrainSummary:   true,
			Failures:       true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
