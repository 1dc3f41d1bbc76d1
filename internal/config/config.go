// Package config provides configuration types for masjidctl.
//
// Configuration is file-based (masjidctl.yaml) with environment variable
// overrides. Everything has a default: a fresh install can sign in and fetch
// prayer times with no config file at all.
package config

import (
	"github.com/spf13/viper"
)

// Config is the top-level masjidctl configuration.
type Config struct {
	// API configures the backend connection.
	API APIConfig `yaml:"api" mapstructure:"api"`

	// Tokens configures where session tokens are kept.
	Tokens TokenConfig `yaml:"tokens" mapstructure:"tokens"`

	// Dashboard configures the local web dashboard.
	Dashboard DashboardConfig `yaml:"dashboard" mapstructure:"dashboard"`

	// Timetable configures the offline prayer-time cache.
	Timetable TimetableConfig `yaml:"timetable" mapstructure:"timetable"`

	// LogLevel sets the log verbosity: debug, info, warn or error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"oneof=debug info warn error"`

	// DevMode enables development features (verbose logging, trace export).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// APIConfig configures the backend connection.
type APIConfig struct {
	// BaseURL is the backend root, without a trailing slash.
	// Default: "http://127.0.0.1:8000".
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
	// Timeout is the per-request timeout (e.g. "30s").
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"duration"`
	// CacheTTL is how long GET responses are reused (e.g. "30s").
	// "0s" disables the response cache.
	CacheTTL string `yaml:"cache_ttl" mapstructure:"cache_ttl" validate:"duration"`
}

// TokenConfig configures token persistence.
type TokenConfig struct {
	// Dir is the directory holding the token file and its lock sidecar.
	// Default: "~/.masjidctl".
	Dir string `yaml:"dir" mapstructure:"dir" validate:"required"`
	// CookieMirror also mirrors tokens into an in-process cookie jar so
	// dashboard requests carry them the way a browser would.
	// Default: true.
	CookieMirror bool `yaml:"cookie_mirror" mapstructure:"cookie_mirror"`
}

// DashboardConfig configures the local web dashboard.
type DashboardConfig struct {
	// Addr is the listen address. Must resolve to a loopback interface;
	// the dashboard serves a private session and is never exposed.
	// Default: "127.0.0.1:8754".
	Addr string `yaml:"addr" mapstructure:"addr" validate:"required,hostname_port"`
	// RoleRules restricts dashboard routes to roles, keyed by path prefix.
	RoleRules []RouteRule `yaml:"role_rules" mapstructure:"role_rules" validate:"omitempty,dive"`
}

// RouteRule restricts one route prefix to certain roles.
type RouteRule struct {
	// Prefix is the route path prefix the rule applies to.
	Prefix string `yaml:"prefix" mapstructure:"prefix" validate:"required,startswith=/"`
	// Roles is the allow-list of roles.
	Roles []string `yaml:"roles" mapstructure:"roles"`
	// Condition is an optional CEL expression over the user record.
	Condition string `yaml:"condition" mapstructure:"condition"`
}

// TimetableConfig configures the offline prayer-time cache.
type TimetableConfig struct {
	// Location is the default location for timetable commands.
	Location string `yaml:"location" mapstructure:"location"`
	// CachePath is the sqlite file holding synced months.
	// Default: "~/.masjidctl/timetable.db".
	CachePath string `yaml:"cache_path" mapstructure:"cache_path" validate:"required"`
	// MaxAge is how long a synced month stays usable offline (e.g. "720h").
	// "0s" keeps months forever.
	MaxAge string `yaml:"max_age" mapstructure:"max_age" validate:"duration"`
}

// SetDefaults registers every default with viper. Called before reading the
// config file so file and env values win.
func SetDefaults() {
	viper.SetDefault("api.base_url", "http://127.0.0.1:8000")
	viper.SetDefault("api.timeout", "30s")
	viper.SetDefault("api.cache_ttl", "30s")

	viper.SetDefault("tokens.dir", "~/.masjidctl")
	viper.SetDefault("tokens.cookie_mirror", true)

	viper.SetDefault("dashboard.addr", "127.0.0.1:8754")

	viper.SetDefault("timetable.location", "")
	viper.SetDefault("timetable.cache_path", "~/.masjidctl/timetable.db")
	viper.SetDefault("timetable.max_age", "720h")

	viper.SetDefault("log_level", "info")
	viper.SetDefault("dev_mode", false)
}

// SetDevDefaults adjusts the configuration for development mode.
func (c *Config) SetDevDefaults() {
	if c.DevMode && c.LogLevel == "info" {
		c.LogLevel = "debug"
	}
}
