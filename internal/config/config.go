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

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	InputDir     string `toml:"input_dir"`
	OutputDir    string `toml:"output_dir"`
	ArchiveDir   string `toml:"archive_dir"`
	LogDir       string `toml:"log_dir"`
	DatabasePath string `toml:"database_path"`
}

// Schedule bounds the daily window in which the worker may start new files.
// Both values are local wall-clock times formatted as HH:MM.
type Schedule struct {
	Start string `toml:"start"`
	Stop  string `toml:"stop"`
}

// Watcher tunes the polling drop-directory watcher.
type Watcher struct {
	Enabled             bool     `toml:"enabled"`
	PollIntervalSeconds int      `toml:"poll_interval_seconds"`
	StabilitySeconds    int      `toml:"stability_seconds"`
	QueueSize           int      `toml:"queue_size"`
	IgnoreDotfiles      bool     `toml:"ignore_dotfiles"`
	Extensions          []string `toml:"extensions"`
}

// IdentityRule is one ordered filename pattern. Group indexes are 1-based
// regexp capture groups.
type IdentityRule struct {
	Name           string `toml:"name"`
	Pattern        string `toml:"pattern"`
	IdentityGroup  int    `toml:"identity_group"`
	ExtensionGroup int    `toml:"extension_group"`
}

// Identity holds the filename rules. An empty list selects the built-in rules.
type Identity struct {
	Rules []IdentityRule `toml:"rules"`
}

// Fingerprint configures content hashing.
type Fingerprint struct {
	Algorithm       string `toml:"algorithm"`
	CacheSize       int    `toml:"cache_size"`
	CacheTTLMinutes int    `toml:"cache_ttl_minutes"`
}

// Encoding configures the video transcoding collaborator.
type Encoding struct {
	Engine       string `toml:"engine"`
	DraptoBinary string `toml:"drapto_binary"`
	Preset       int    `toml:"preset"`
	Responsive   bool   `toml:"responsive"`
}

// Subtitles configures subtitle extraction.
type Subtitles struct {
	Enabled       bool   `toml:"enabled"`
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// Scheduler tunes the drain loop.
type Scheduler struct {
	BatchSize           int `toml:"batch_size"`
	ErrorRetrySeconds   int `toml:"error_retry_seconds"`
	MinFreeSpaceGiB     int `toml:"min_free_space_gib"`
	RescanPeriodMinutes int `toml:"rescan_period_minutes"`
}

// API configures the dashboard HTTP surface.
type API struct {
	Enabled               bool   `toml:"enabled"`
	Bind                  string `toml:"bind"`
	StatusIntervalSeconds int    `toml:"status_interval_seconds"`
	DefaultPageSize       int    `toml:"default_page_size"`
	MaxPageSize           int    `toml:"max_page_size"`
	Token                 string `toml:"token"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	DrainSummary   bool   `toml:"drain_summary"`
	Failures       bool   `toml:"failures"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for reelgate.
//
// Configuration sections by subsystem:
//   - Paths: drop, output and archive directories plus the registry database
//   - Schedule: the daily processing window
//   - Watcher: polling and write-stability thresholds
//   - Identity: ordered filename rules
//   - Fingerprint: hash algorithm and memo cache
//   - Encoding, Subtitles: media operation collaborators
//   - Scheduler: drain batch sizing
//   - API: dashboard bind address and push interval
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Schedule      Schedule      `toml:"schedule"`
	Watcher       Watcher       `toml:"watcher"`
	Identity      Identity      `toml:"identity"`
	Fingerprint   Fingerprint   `toml:"fingerprint"`
	Encoding      Encoding      `toml:"encoding"`
	Subtitles     Subtitles     `toml:"subtitles"`
	Scheduler     Scheduler     `toml:"scheduler"`
	API           API           `toml:"api"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
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

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if strings.TrimSpace(path) == "" {
		if env, ok := os.LookupEnv("REELGATE_CONFIG"); ok && strings.TrimSpace(env) != "" {
			path = env
		}
	}
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

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelgate.toml")
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

// EnsureDirectories creates the directories the daemon writes to. The input
// and archive directories usually live on a network share and are never
// created here.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir, c.Paths.OutputDir, filepath.Dir(c.Paths.DatabasePath)}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFprobeBinary returns the ffprobe executable used for media inspection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Subtitles.FFprobeBinary); bin != "" {
		return bin
	}
	return defaultFFprobeBinary
}

// FFmpegBinary returns the ffmpeg executable used for subtitle extraction.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Subtitles.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

// DraptoBinary returns the drapto executable used by the CLI engine.
func (c *Config) DraptoBinary() string {
	if bin := strings.TrimSpace(c.Encoding.DraptoBinary); bin != "" {
		return bin
	}
	return defaultDraptoBinary
}

// PollInterval returns the watcher poll cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Watcher.PollIntervalSeconds) * time.Second
}

// StabilityWindow returns how long a file must stay unchanged before it is
// reported as stable.
func (c *Config) StabilityWindow() time.Duration {
	return time.Duration(c.Watcher.StabilitySeconds) * time.Second
}

// StatusInterval returns the dashboard push cadence.
func (c *Config) StatusInterval() time.Duration {
	return time.Duration(c.API.StatusIntervalSeconds) * time.Second
}

// ErrorRetryInterval returns the delay before retrying a drain that failed to start.
func (c *Config) ErrorRetryInterval() time.Duration {
	return time.Duration(c.Scheduler.ErrorRetrySeconds) * time.Second
}

// RescanPeriod returns how often the scheduler re-checks the registry without
// an explicit wake. Zero disables the periodic rescan.
func (c *Config) RescanPeriod() time.Duration {
	return time.Duration(c.Scheduler.RescanPeriodMinutes) * time.Minute
}

// FingerprintCacheTTL returns the memo lifetime for computed hashes.
func (c *Config) FingerprintCacheTTL() time.Duration {
	return time.Duration(c.Fingerprint.CacheTTLMinutes) * time.Minute
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

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
