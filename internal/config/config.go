// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/site-shields/internal/bravery"
	"github.com/JakeFAU/site-shields/internal/sitesettings"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server       ServerConfig        `mapstructure:"server"`
	Auth         AuthConfig          `mapstructure:"auth"`
	Logging      LoggingConfig       `mapstructure:"logging"`
	Bravery      BraveryConfig       `mapstructure:"bravery"`
	State        StateConfig         `mapstructure:"state"`
	SiteSettings []SiteSettingConfig `mapstructure:"site_settings"`
	Events       EventsConfig        `mapstructure:"events"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ResourceConfig declares one protection resource.
type ResourceConfig struct {
	ID      string `mapstructure:"id"`
	Name    string `mapstructure:"name"`
	Enabled bool   `mapstructure:"enabled"`
}

// SettingConfig is a key/value pair. Lists are used instead of maps because
// Viper lowercases map keys and setting names are case sensitive.
type SettingConfig struct {
	Key   string `mapstructure:"key"`
	Value any    `mapstructure:"value"`
}

// BraveryConfig is the static resource catalogue. Empty lists fall back to the
// built-in catalogue. An empty brave_extension_id or coinbase_origin disables
// the extension storage exception.
type BraveryConfig struct {
	Resources        []ResourceConfig `mapstructure:"resources"`
	Defaults         []SettingConfig  `mapstructure:"defaults"`
	AdInsertionURL   string           `mapstructure:"ad_insertion_url"`
	BraveExtensionID string           `mapstructure:"brave_extension_id"`
	CoinbaseOrigin   string           `mapstructure:"coinbase_origin"`
}

// ResourceToggle overrides whether a resource is enabled.
type ResourceToggle struct {
	Name    string `mapstructure:"name"`
	Enabled bool   `mapstructure:"enabled"`
}

// StateConfig seeds the mutable global state.
type StateConfig struct {
	Locale    string           `mapstructure:"locale"`
	Settings  []SettingConfig  `mapstructure:"settings"`
	Resources []ResourceToggle `mapstructure:"resources"`
}

// SiteSettingConfig seeds the persistent store with one pattern.
type SiteSettingConfig struct {
	Pattern  string          `mapstructure:"pattern"`
	Settings []SettingConfig `mapstructure:"settings"`
}

// EventsConfig tunes the change-event hub.
type EventsConfig struct {
	BufferSize     int  `mapstructure:"buffer_size"`
	MaxBatchEvents int  `mapstructure:"max_batch_events"`
	MaxBatchWaitMs int  `mapstructure:"max_batch_wait_ms"`
	LogChanges     bool `mapstructure:"log_changes"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SHIELDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("logging.development", true)
	v.SetDefault("bravery.ad_insertion_url", bravery.DefaultAdInsertionURL)
	v.SetDefault("bravery.brave_extension_id", bravery.DefaultBraveExtensionID)
	v.SetDefault("bravery.coinbase_origin", bravery.DefaultCoinbaseOrigin)
	v.SetDefault("state.locale", "en-US")
	v.SetDefault("events.buffer_size", 1024)
	v.SetDefault("events.max_batch_events", 256)
	v.SetDefault("events.max_batch_wait_ms", 250)
	v.SetDefault("events.log_changes", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return errors.New("server.request_timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return errors.New("auth.api_key must be set when auth is enabled")
	}
	if c.Events.BufferSize < 0 || c.Events.MaxBatchEvents < 0 || c.Events.MaxBatchWaitMs < 0 {
		return errors.New("events sizes must be >= 0")
	}
	if _, err := c.AppConfig(); err != nil {
		return err
	}
	if _, err := c.AppState(); err != nil {
		return err
	}
	if _, err := c.SeedStore(); err != nil {
		return err
	}
	return nil
}

// RequestTimeout is the per-request budget of the HTTP API.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful shutdown of the HTTP server and event hub.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// AppConfig converts the bravery section to the domain catalogue.
func (c Config) AppConfig() (bravery.AppConfig, error) {
	out := bravery.DefaultAppConfig()
	if len(c.Bravery.Resources) > 0 {
		out.Resources = make([]bravery.Resource, 0, len(c.Bravery.Resources))
		seen := make(map[string]bool, len(c.Bravery.Resources))
		for i, r := range c.Bravery.Resources {
			if r.ID == "" || r.Name == "" {
				return bravery.AppConfig{}, fmt.Errorf("bravery.resources[%d]: id and name are required", i)
			}
			if seen[r.Name] {
				return bravery.AppConfig{}, fmt.Errorf("bravery.resources[%d]: duplicate name %q", i, r.Name)
			}
			seen[r.Name] = true
			out.Resources = append(out.Resources, bravery.Resource{ID: r.ID, Name: r.Name, Enabled: r.Enabled})
		}
	}
	if len(c.Bravery.Defaults) > 0 {
		rec, err := recordOf("bravery.defaults", c.Bravery.Defaults)
		if err != nil {
			return bravery.AppConfig{}, err
		}
		out.DefaultSettings = out.DefaultSettings.Merge(rec)
	}
	if c.Bravery.AdInsertionURL != "" {
		out.AdInsertionURL = c.Bravery.AdInsertionURL
	}
	out.BraveExtensionID = c.Bravery.BraveExtensionID
	out.CoinbaseOrigin = c.Bravery.CoinbaseOrigin
	return out, nil
}

// AppState converts the state section to the initial global state.
func (c Config) AppState() (bravery.AppState, error) {
	settings, err := recordOf("state.settings", c.State.Settings)
	if err != nil {
		return bravery.AppState{}, err
	}
	enabled := make(map[string]bool, len(c.State.Resources))
	for i, r := range c.State.Resources {
		if r.Name == "" {
			return bravery.AppState{}, fmt.Errorf("state.resources[%d]: name is required", i)
		}
		enabled[r.Name] = r.Enabled
	}
	return bravery.AppState{Settings: settings, ResourceEnabled: enabled, Locale: c.State.Locale}, nil
}

// SeedStore converts site_settings to the initial persistent store.
func (c Config) SeedStore() (sitesettings.Store, error) {
	entries := make(map[string]sitesettings.Record, len(c.SiteSettings))
	for i, s := range c.SiteSettings {
		if strings.TrimSpace(s.Pattern) == "" {
			return sitesettings.Store{}, fmt.Errorf("site_settings[%d]: pattern is required", i)
		}
		rec, err := recordOf(fmt.Sprintf("site_settings[%d]", i), s.Settings)
		if err != nil {
			return sitesettings.Store{}, err
		}
		entries[s.Pattern] = entries[s.Pattern].Merge(rec)
	}
	return sitesettings.NewStore(entries), nil
}

func recordOf(section string, settings []SettingConfig) (sitesettings.Record, error) {
	rec := make(sitesettings.Record, len(settings))
	for i, s := range settings {
		if s.Key == "" {
			return nil, fmt.Errorf("%s[%d]: key is required", section, i)
		}
		v, err := sitesettings.ValueOf(s.Value)
		if err != nil {
			return nil, fmt.Errorf("%s[%d] %q: %w", section, i, s.Key, err)
		}
		rec[s.Key] = v
	}
	return rec, nil
}
