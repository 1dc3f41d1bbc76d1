package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// resetViper clears global viper state between tests. Viper is a package
// global, so these tests cannot run in parallel.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadConfigDefaults(t *testing.T) {
	resetViper(t)

	InitViper(filepath.Join(t.TempDir(), "missing.yaml"))
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.API.BaseURL != "http://127.0.0.1:8000" {
		t.Errorf("base url = %q", cfg.API.BaseURL)
	}
	if cfg.Dashboard.Addr != "127.0.0.1:8754" {
		t.Errorf("dashboard addr = %q", cfg.Dashboard.Addr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
	if !cfg.Tokens.CookieMirror {
		t.Error("cookie mirror not on by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}

	timeout, cacheTTL, maxAge, err := cfg.Durations()
	if err != nil {
		t.Fatalf("Durations: %v", err)
	}
	if timeout != 30*time.Second || cacheTTL != 30*time.Second || maxAge != 720*time.Hour {
		t.Errorf("durations = %v %v %v", timeout, cacheTTL, maxAge)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	resetViper(t)

	path := filepath.Join(t.TempDir(), "masjidctl.yaml")
	data := `
api:
  base_url: https://api.masjid.example
  timeout: 10s
tokens:
  dir: /tmp/masjidctl-test
dashboard:
  addr: 127.0.0.1:9000
  role_rules:
    - prefix: /mosques/manage
      roles: [mosque_admin, admin]
log_level: debug
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	InitViper(path)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.API.BaseURL != "https://api.masjid.example" {
		t.Errorf("base url = %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != "10s" {
		t.Errorf("timeout = %q", cfg.API.Timeout)
	}
	// Unset fields keep their defaults.
	if cfg.API.CacheTTL != "30s" {
		t.Errorf("cache ttl = %q", cfg.API.CacheTTL)
	}
	if len(cfg.Dashboard.RoleRules) != 1 || cfg.Dashboard.RoleRules[0].Prefix != "/mosques/manage" {
		t.Errorf("role rules = %+v", cfg.Dashboard.RoleRules)
	}
}

func TestEnvOverride(t *testing.T) {
	resetViper(t)

	t.Setenv("MASJIDCTL_API_BASE_URL", "https://env.masjid.example")
	t.Setenv("MASJIDCTL_LOG_LEVEL", "warn")

	InitViper(filepath.Join(t.TempDir(), "missing.yaml"))
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.BaseURL != "https://env.masjid.example" {
		t.Errorf("base url = %q, env override lost", cfg.API.BaseURL)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("log level = %q, env override lost", cfg.LogLevel)
	}
}

func TestExpandHome(t *testing.T) {
	resetViper(t)

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}

	InitViper(filepath.Join(t.TempDir(), "missing.yaml"))
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Tokens.Dir != filepath.Join(home, ".masjidctl") {
		t.Errorf("tokens dir = %q", cfg.Tokens.Dir)
	}
	if cfg.Timetable.CachePath != filepath.Join(home, ".masjidctl", "timetable.db") {
		t.Errorf("cache path = %q", cfg.Timetable.CachePath)
	}
}

func TestSetDevDefaults(t *testing.T) {
	cfg := &Config{DevMode: true, LogLevel: "info"}
	cfg.SetDevDefaults()
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug in dev mode", cfg.LogLevel)
	}

	cfg = &Config{DevMode: true, LogLevel: "error"}
	cfg.SetDevDefaults()
	if cfg.LogLevel != "error" {
		t.Error("dev mode overrode an explicit log level")
	}
}
