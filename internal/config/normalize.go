package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSchedule()
	c.normalizeWatcher()
	c.normalizeIdentity()
	c.normalizeFingerprint()
	c.normalizeEncoding()
	c.normalizeScheduler()
	c.normalizeAPI()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	envFallback(&c.Paths.InputDir, "REELGATE_INPUT_DIR")
	envFallback(&c.Paths.OutputDir, "REELGATE_OUTPUT_DIR")
	envFallback(&c.Paths.ArchiveDir, "REELGATE_ARCHIVE_DIR")

	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		c.Paths.DatabasePath = defaultDatabasePath
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}

	fields := []struct {
		key   string
		value *string
	}{
		{"paths.input_dir", &c.Paths.InputDir},
		{"paths.output_dir", &c.Paths.OutputDir},
		{"paths.archive_dir", &c.Paths.ArchiveDir},
		{"paths.log_dir", &c.Paths.LogDir},
		{"paths.database_path", &c.Paths.DatabasePath},
	}
	for _, field := range fields {
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	return nil
}

// envFallback fills an empty field from the environment. A value set in the
// config file always wins.
func envFallback(field *string, key string) {
	if strings.TrimSpace(*field) != "" {
		return
	}
	if value, ok := os.LookupEnv(key); ok {
		*field = strings.TrimSpace(value)
	}
}

func (c *Config) normalizeSchedule() {
	c.Schedule.Start = strings.TrimSpace(c.Schedule.Start)
	if c.Schedule.Start == "" {
		c.Schedule.Start = defaultScheduleStart
	}
	c.Schedule.Stop = strings.TrimSpace(c.Schedule.Stop)
	if c.Schedule.Stop == "" {
		c.Schedule.Stop = defaultScheduleStop
	}
}

func (c *Config) normalizeWatcher() {
	if c.Watcher.PollIntervalSeconds <= 0 {
		c.Watcher.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	if c.Watcher.StabilitySeconds < 0 {
		c.Watcher.StabilitySeconds = 0
	}
	if c.Watcher.QueueSize <= 0 {
		c.Watcher.QueueSize = defaultWatcherQueueSize
	}
	exts := make([]string, 0, len(c.Watcher.Extensions))
	seen := make(map[string]struct{}, len(c.Watcher.Extensions))
	for _, ext := range c.Watcher.Extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultWatchExtensions...)
	}
	c.Watcher.Extensions = exts
}

func (c *Config) normalizeIdentity() {
	for i := range c.Identity.Rules {
		rule := &c.Identity.Rules[i]
		rule.Name = strings.TrimSpace(rule.Name)
		if rule.Name == "" {
			rule.Name = fmt.Sprintf("rule-%d", i+1)
		}
		if rule.IdentityGroup == 0 {
			rule.IdentityGroup = 1
		}
		if rule.ExtensionGroup == 0 {
			rule.ExtensionGroup = 2
		}
	}
}

func (c *Config) normalizeFingerprint() {
	c.Fingerprint.Algorithm = strings.ToLower(strings.TrimSpace(c.Fingerprint.Algorithm))
	if c.Fingerprint.Algorithm == "" {
		c.Fingerprint.Algorithm = defaultFingerprintAlgorithm
	}
	if c.Fingerprint.CacheSize < 0 {
		c.Fingerprint.CacheSize = 0
	}
	if c.Fingerprint.CacheTTLMinutes <= 0 {
		c.Fingerprint.CacheTTLMinutes = defaultFingerprintCacheTTL
	}
}

func (c *Config) normalizeEncoding() {
	c.Encoding.Engine = strings.ToLower(strings.TrimSpace(c.Encoding.Engine))
	if c.Encoding.Engine == "" {
		c.Encoding.Engine = defaultEncodingEngine
	}
	c.Encoding.DraptoBinary = strings.TrimSpace(c.Encoding.DraptoBinary)
	c.Subtitles.FFmpegBinary = strings.TrimSpace(c.Subtitles.FFmpegBinary)
	c.Subtitles.FFprobeBinary = strings.TrimSpace(c.Subtitles.FFprobeBinary)
}

func (c *Config) normalizeScheduler() {
	if c.Scheduler.BatchSize <= 0 {
		c.Scheduler.BatchSize = defaultBatchSize
	}
	if c.Scheduler.ErrorRetrySeconds <= 0 {
		c.Scheduler.ErrorRetrySeconds = defaultErrorRetrySeconds
	}
	if c.Scheduler.RescanPeriodMinutes < 0 {
		c.Scheduler.RescanPeriodMinutes = 0
	}
	if c.Scheduler.MinFreeSpaceGiB < 0 {
		c.Scheduler.MinFreeSpaceGiB = 0
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	if c.API.StatusIntervalSeconds <= 0 {
		c.API.StatusIntervalSeconds = defaultStatusIntervalSeconds
	}
	if c.API.DefaultPageSize <= 0 {
		c.API.DefaultPageSize = defaultPageSize
	}
	if c.API.MaxPageSize <= 0 {
		c.API.MaxPageSize = defaultMaxPageSize
	}
	envFallback(&c.API.Token, "REELGATE_API_TOKEN")
	c.API.Token = strings.TrimSpace(c.API.Token)
}

func (c *Config) normalizeNotifications() {
	envFallback(&c.Notifications.NtfyTopic, "REELGATE_NTFY_TOPIC")
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
