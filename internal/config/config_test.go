package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reelgate/internal/config"
)

func clearPathEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"REELGATE_CONFIG", "REELGATE_INPUT_DIR", "REELGATE_OUTPUT_DIR", "REELGATE_ARCHIVE_DIR", "REELGATE_NTFY_TOPIC", "REELGATE_API_TOKEN"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsExpandPaths(t *testing.T) {
	clearPathEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(tempHome, ".config", "reelgate", "config.toml"); resolved != want {
		t.Fatalf("resolved path = %q, want %q", resolved, want)
	}
	if want := filepath.Join(tempHome, "media", "incoming"); cfg.Paths.InputDir != want {
		t.Fatalf("input dir = %q, want %q", cfg.Paths.InputDir, want)
	}
	if want := filepath.Join(tempHome, ".local", "share", "reelgate", "registry.db"); cfg.Paths.DatabasePath != want {
		t.Fatalf("database path = %q, want %q", cfg.Paths.DatabasePath, want)
	}
	if cfg.Paths.ArchiveDir != "" {
		t.Fatalf("expected archive dir unset, got %q", cfg.Paths.ArchiveDir)
	}
	if cfg.Schedule.Start != "00:00" || cfg.Schedule.Stop != "08:50" {
		t.Fatalf("unexpected schedule: %+v", cfg.Schedule)
	}
	if cfg.Fingerprint.Algorithm != "sha256" {
		t.Fatalf("unexpected fingerprint algorithm %q", cfg.Fingerprint.Algorithm)
	}
	if cfg.Encoding.Engine != "library" {
		t.Fatalf("unexpected encoding engine %q", cfg.Encoding.Engine)
	}
	if cfg.API.Bind != "127.0.0.1:3000" {
		t.Fatalf("unexpected api bind %q", cfg.API.Bind)
	}
	if cfg.PollInterval() != time.Second || cfg.StabilityWindow() != 2*time.Second {
		t.Fatalf("unexpected watcher timings: %s %s", cfg.PollInterval(), cfg.StabilityWindow())
	}
	if cfg.StatusInterval() != 5*time.Second {
		t.Fatalf("unexpected status interval %s", cfg.StatusInterval())
	}
	if got := strings.Join(cfg.Watcher.Extensions, ","); got != ".mp4,.mkv" {
		t.Fatalf("unexpected extensions %q", got)
	}
	if cfg.FFmpegBinary() != "ffmpeg" || cfg.FFprobeBinary() != "ffprobe" || cfg.DraptoBinary() != "drapto" {
		t.Fatal("unexpected default binaries")
	}
}

func TestLoadEnvironmentFallbacks(t *testing.T) {
	clearPathEnv(t)
	t.Setenv("HOME", t.TempDir())
	input := t.TempDir()
	archive := t.TempDir()
	t.Setenv("REELGATE_INPUT_DIR", input)
	t.Setenv("REELGATE_ARCHIVE_DIR", archive)
	t.Setenv("REELGATE_NTFY_TOPIC", "https://ntfy.example/reelgate")

	path := writeConfig(t, "[paths]\ninput_dir = \"\"\noutput_dir = \"/srv/out\"\n")
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Paths.InputDir != input {
		t.Fatalf("input dir = %q, want env value %q", cfg.Paths.InputDir, input)
	}
	if cfg.Paths.ArchiveDir != archive {
		t.Fatalf("archive dir = %q, want env value %q", cfg.Paths.ArchiveDir, archive)
	}
	if cfg.Paths.OutputDir != "/srv/out" {
		t.Fatalf("file value must win over env, got %q", cfg.Paths.OutputDir)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.example/reelgate" {
		t.Fatalf("unexpected ntfy topic %q", cfg.Notifications.NtfyTopic)
	}
}

func TestLoadUsesConfigEnvVariable(t *testing.T) {
	clearPathEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := writeConfig(t, "[schedule]\nstart = \"22:00\"\nstop = \"06:00\"\n")
	t.Setenv("REELGATE_CONFIG", path)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected %q to be loaded, got %q (exists=%v)", path, resolved, exists)
	}
	if cfg.Schedule.Start != "22:00" || cfg.Schedule.Stop != "06:00" {
		t.Fatalf("unexpected schedule %+v", cfg.Schedule)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	clearPathEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := writeConfig(t, "[watcher]\npoll_every = 3\n")

	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
	if !strings.Contains(err.Error(), "poll_every") {
		t.Fatalf("expected error to name the key, got %v", err)
	}
}

func TestLoadNormalizesValues(t *testing.T) {
	clearPathEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := writeConfig(t, `
[watcher]
extensions = ["MKV", ".mp4", "mkv", " "]

[fingerprint]
algorithm = " MD5 "

[encoding]
engine = "CLI"

[logging]
format = "xml"

[[identity.rules]]
pattern = '^(\w+)\.(mp4)$'
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := strings.Join(cfg.Watcher.Extensions, ","); got != ".mkv,.mp4" {
		t.Fatalf("unexpected extensions %q", got)
	}
	if cfg.Fingerprint.Algorithm != "md5" {
		t.Fatalf("unexpected algorithm %q", cfg.Fingerprint.Algorithm)
	}
	if cfg.Encoding.Engine != "cli" {
		t.Fatalf("unexpected engine %q", cfg.Encoding.Engine)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unknown formats should fall back to console, got %q", cfg.Logging.Format)
	}
	rule := cfg.Identity.Rules[0]
	if rule.Name != "rule-1" || rule.IdentityGroup != 1 || rule.ExtensionGroup != 2 {
		t.Fatalf("unexpected rule defaults %+v", rule)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"bad schedule clock": func(c *config.Config) { c.Schedule.Start = "25:00" },
		"empty window":       func(c *config.Config) { c.Schedule.Stop = c.Schedule.Start },
		"same input output":  func(c *config.Config) { c.Paths.OutputDir = c.Paths.InputDir },
		"unknown algorithm":  func(c *config.Config) { c.Fingerprint.Algorithm = "crc32" },
		"unknown engine":     func(c *config.Config) { c.Encoding.Engine = "handbrake" },
		"preset range":       func(c *config.Config) { c.Encoding.Preset = 14 },
		"page sizes":         func(c *config.Config) { c.API.DefaultPageSize = c.API.MaxPageSize + 1 },
		"zero batch":         func(c *config.Config) { c.Scheduler.BatchSize = 0 },
		"subtitles disabled": func(c *config.Config) { c.Subtitles.Enabled = false },
		"bad rule regexp": func(c *config.Config) {
			c.Identity.Rules = []config.IdentityRule{{Name: "x", Pattern: "([", IdentityGroup: 1, ExtensionGroup: 1}}
		},
		"rule group range": func(c *config.Config) {
			c.Identity.Rules = []config.IdentityRule{{Name: "x", Pattern: `^(\w+)\.mp4$`, IdentityGroup: 1, ExtensionGroup: 2}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.InputDir = "/srv/in"
			cfg.Paths.OutputDir = "/srv/out"
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.InputDir = "/srv/in"
	cfg.Paths.OutputDir = "/srv/out"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestParseClock(t *testing.T) {
	cases := map[string]int{"00:00": 0, "08:50": 530, "23:59": 1439, " 7:05 ": 425}
	for input, want := range cases {
		got, err := config.ParseClock(input)
		if err != nil {
			t.Fatalf("ParseClock(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseClock(%q) = %d, want %d", input, got, want)
		}
	}
	for _, bad := range []string{"", "0850", "24:00", "12:60", "ab:cd"} {
		if _, err := config.ParseClock(bad); err == nil {
			t.Fatalf("ParseClock(%q) should fail", bad)
		}
	}
}

func TestSampleConfigLoads(t *testing.T) {
	clearPathEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Scheduler.BatchSize != 50 || cfg.API.MaxPageSize != 500 {
		t.Fatalf("unexpected sample values: %+v %+v", cfg.Scheduler, cfg.API)
	}
}

func TestEnsureDirectoriesCreatesWritableDirs(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.InputDir = filepath.Join(base, "in")
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.DatabasePath = filepath.Join(base, "data", "registry.db")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.LogDir, filepath.Dir(cfg.Paths.DatabasePath)} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected %s to exist: %v", dir, err)
		}
	}
	if _, err := os.Stat(cfg.Paths.InputDir); !os.IsNotExist(err) {
		t.Fatalf("input dir must not be created, stat err=%v", err)
	}
}
