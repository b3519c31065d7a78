package config

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSchedule(); err != nil {
		return err
	}
	if err := c.validateIdentity(); err != nil {
		return err
	}
	if err := c.validateFingerprint(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if !c.Subtitles.Enabled {
		return errors.New("subtitles.enabled = false is not supported: every record tracks subtitle extraction and would stay pending")
	}
	if err := ensurePositiveMap(map[string]int{
		"watcher.poll_interval_seconds": c.Watcher.PollIntervalSeconds,
		"watcher.queue_size":            c.Watcher.QueueSize,
		"scheduler.batch_size":          c.Scheduler.BatchSize,
		"scheduler.error_retry_seconds": c.Scheduler.ErrorRetrySeconds,
		"api.status_interval_seconds":   c.API.StatusIntervalSeconds,
		"api.default_page_size":         c.API.DefaultPageSize,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"fingerprint.cache_ttl_minutes": c.Fingerprint.CacheTTLMinutes,
		"api.max_page_size":             c.API.MaxPageSize,
	}); err != nil {
		return err
	}
	if c.API.DefaultPageSize > c.API.MaxPageSize {
		return errors.New("api.default_page_size must not exceed api.max_page_size")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.InputDir) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("paths.input_dir is required. Set REELGATE_INPUT_DIR or edit %s (create with 'reelgate config init')", defaultPath)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.InputDir == c.Paths.OutputDir {
		return errors.New("paths.output_dir must differ from paths.input_dir")
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		return errors.New("paths.database_path must be set")
	}
	return nil
}

func (c *Config) validateSchedule() error {
	start, err := ParseClock(c.Schedule.Start)
	if err != nil {
		return fmt.Errorf("schedule.start: %w", err)
	}
	stop, err := ParseClock(c.Schedule.Stop)
	if err != nil {
		return fmt.Errorf("schedule.stop: %w", err)
	}
	if start == stop {
		return errors.New("schedule.start and schedule.stop must differ")
	}
	return nil
}

func (c *Config) validateIdentity() error {
	for i, rule := range c.Identity.Rules {
		key := fmt.Sprintf("identity.rules[%d]", i)
		if strings.TrimSpace(rule.Pattern) == "" {
			return fmt.Errorf("%s.pattern must be set", key)
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return fmt.Errorf("%s.pattern: %w", key, err)
		}
		groups := re.NumSubexp()
		if rule.IdentityGroup < 1 || rule.IdentityGroup > groups {
			return fmt.Errorf("%s.identity_group %d out of range (pattern has %d groups)", key, rule.IdentityGroup, groups)
		}
		if rule.ExtensionGroup < 1 || rule.ExtensionGroup > groups {
			return fmt.Errorf("%s.extension_group %d out of range (pattern has %d groups)", key, rule.ExtensionGroup, groups)
		}
	}
	return nil
}

func (c *Config) validateFingerprint() error {
	switch c.Fingerprint.Algorithm {
	case "sha256", "md5":
		return nil
	default:
		return fmt.Errorf("fingerprint.algorithm: unsupported value %q (use sha256 or md5)", c.Fingerprint.Algorithm)
	}
}

func (c *Config) validateEncoding() error {
	switch c.Encoding.Engine {
	case "library", "cli":
	default:
		return fmt.Errorf("encoding.engine: unsupported value %q (use library or cli)", c.Encoding.Engine)
	}
	if c.Encoding.Preset < 0 || c.Encoding.Preset > 13 {
		return errors.New("encoding.preset must be between 0 and 13")
	}
	return nil
}

// ParseClock parses an HH:MM wall-clock value into minutes after midnight.
func ParseClock(value string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock %q (want HH:MM)", value)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour*60 + minute, nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
