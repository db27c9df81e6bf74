package bravery

import (
	"maps"

	"github.com/JakeFAU/site-shields/internal/sitesettings"
)

// Resource identifiers as declared in application configuration.
const (
	ResourceAdblock            = "ADBLOCK"
	ResourceAdInsertion        = "AD_INSERTION"
	ResourceTrackingProtection = "TRACKING_PROTECTION"
	ResourceCookieBlock        = "COOKIEBLOCK"
	ResourceHTTPSEverywhere    = "HTTPS_EVERYWHERE"
	ResourceSafeBrowsing       = "SAFE_BROWSING"
	ResourceNoScript           = "NOSCRIPT"
	ResourceFlash              = "FLASH"
	ResourceWidevine           = "WIDEVINE"
)

// Global application setting keys read by the computations.
const (
	SettingBlockCanvasFingerprinting = "privacy.block-canvas-fingerprinting"
	SettingPasswordManagerEnabled    = "security.passwords.manager-enabled"
)

// DefaultAdInsertionURL is where replacement ads are served from.
const DefaultAdInsertionURL = "https://oip.brave.com"

// Built-in extension whose pages embed the coinbase widget, and the widget's
// origin. The widget needs third-party storage even when cookies are blocked.
const (
	DefaultBraveExtensionID = "mnojpmjdmbbfmejpflffifhffcmidifd"
	DefaultCoinbaseOrigin   = "https://buy.coinbase.com"
)

// Resource is a named protection feature.
type Resource struct {
	// ID is the configuration identifier, e.g. ADBLOCK.
	ID string
	// Name is the canonical name used as the settings key, e.g. adblock.
	Name string
	// Enabled is the static default.
	Enabled bool
}

// AppConfig is the static application configuration the computations read.
type AppConfig struct {
	Resources       []Resource
	DefaultSettings sitesettings.Record
	AdInsertionURL  string
	// BraveExtensionID and CoinbaseOrigin name the storage exception kept
	// while third-party cookies are blocked. Either empty disables it.
	BraveExtensionID string
	CoinbaseOrigin   string
}

// ResourceName maps a resource ID to its canonical name.
func (c AppConfig) ResourceName(id string) (string, bool) {
	for _, r := range c.Resources {
		if r.ID == id {
			return r.Name, true
		}
	}
	return "", false
}

// Resource looks up a resource by canonical name.
func (c AppConfig) Resource(name string) (Resource, bool) {
	for _, r := range c.Resources {
		if r.Name == name {
			return r, true
		}
	}
	return Resource{}, false
}

// AppState is the mutable global state: user preferences and per-resource
// enable toggles. A missing entry means "use the configured default".
type AppState struct {
	Settings        sitesettings.Record
	ResourceEnabled map[string]bool
	Locale          string
}

// Clone returns a deep copy.
func (s AppState) Clone() AppState {
	return AppState{
		Settings:        s.Settings.Clone(),
		ResourceEnabled: maps.Clone(s.ResourceEnabled),
		Locale:          s.Locale,
	}
}

// DefaultAppConfig returns the stock resource list and defaults.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Resources: []Resource{
			{ID: ResourceAdblock, Name: "adblock", Enabled: true},
			{ID: ResourceSafeBrowsing, Name: "safeBrowsing", Enabled: true},
			{ID: ResourceHTTPSEverywhere, Name: "httpsEverywhere", Enabled: true},
			{ID: ResourceTrackingProtection, Name: "trackingProtection", Enabled: true},
			{ID: ResourceAdInsertion, Name: "adInsertion", Enabled: false},
			{ID: ResourceCookieBlock, Name: "cookieblock", Enabled: true},
			{ID: ResourceNoScript, Name: "noScript", Enabled: false},
			{ID: ResourceFlash, Name: "flash", Enabled: false},
			{ID: ResourceWidevine, Name: "widevine", Enabled: false},
		},
		DefaultSettings: sitesettings.Record{
			SettingBlockCanvasFingerprinting: sitesettings.Bool(false),
			SettingPasswordManagerEnabled:    sitesettings.Bool(true),
		},
		AdInsertionURL:   DefaultAdInsertionURL,
		BraveExtensionID: DefaultBraveExtensionID,
		CoinbaseOrigin:   DefaultCoinbaseOrigin,
	}
}
