package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// InitViper initializes viper with the configuration file and environment
// variables. If configFile is empty, standard locations are searched for
// masjidctl.yaml/.yml. The search requires an explicit YAML extension so the
// binary itself is never matched.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file anywhere. Set name/type without search paths so
		// ReadInConfig returns ConfigFileNotFoundError, which callers
		// handle gracefully.
		viper.SetConfigName("masjidctl")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: MASJIDCTL_API_BASE_URL etc.
	viper.SetEnvPrefix("MASJIDCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for masjidctl.yaml or .yml.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".masjidctl"),
	}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "masjidctl"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds nested config keys for environment variable
// support. Example: MASJIDCTL_API_BASE_URL overrides api.base_url.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("api.base_url")
	_ = viper.BindEnv("api.timeout")
	_ = viper.BindEnv("api.cache_ttl")

	_ = viper.BindEnv("tokens.dir")
	_ = viper.BindEnv("tokens.cookie_mirror")

	_ = viper.BindEnv("dashboard.addr")
	// Note: dashboard.role_rules is an array; use the config file for it.

	_ = viper.BindEnv("timetable.location")
	_ = viper.BindEnv("timetable.cache_path")
	_ = viper.BindEnv("timetable.max_age")

	_ = viper.BindEnv("log_level")
	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides and
// defaults, and returns the Config. Callers apply CLI flag overrides, then
// call cfg.SetDevDefaults() and cfg.Validate().
func LoadConfig() (*Config, error) {
	SetDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// No config file: defaults plus env vars is a valid setup.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Tokens.Dir = expandHome(cfg.Tokens.Dir)
	cfg.Timetable.CachePath = expandHome(cfg.Timetable.CachePath)
	return &cfg, nil
}

// ConfigFileUsed returns the path of the loaded config file, or "" when
// running on defaults and environment variables alone.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// expandHome resolves a leading "~/" against the user's home directory.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/"))
	}
	return path
}

// Durations returns the parsed duration fields. Validate guarantees they
// parse, so errors here mean Validate was skipped.
func (c *Config) Durations() (timeout, cacheTTL, maxAge time.Duration, err error) {
	if timeout, err = time.ParseDuration(c.API.Timeout); err != nil {
		return 0, 0, 0, fmt.Errorf("api.timeout: %w", err)
	}
	if cacheTTL, err = time.ParseDuration(c.API.CacheTTL); err != nil {
		return 0, 0, 0, fmt.Errorf("api.cache_ttl: %w", err)
	}
	if maxAge, err = time.ParseDuration(c.Timetable.MaxAge); err != nil {
		return 0, 0, 0, fmt.Errorf("timetable.max_age: %w", err)
	}
	return timeout, cacheTTL, maxAge, nil
}
