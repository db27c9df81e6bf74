package bravery

import "github.com/JakeFAU/site-shields/internal/sitesettings"

// AdControl selects how ads and trackers are handled.
type AdControl string

// Ad control modes.
const (
	AllowAdsAndTracking AdControl = "allowAdsAndTracking"
	ShowBraveAds        AdControl = "showBraveAds"
	BlockAds            AdControl = "blockAds"
)

// CookieControl selects which cookies are allowed.
type CookieControl string

// Cookie control modes.
const (
	AllowAllCookies     CookieControl = "allowAllCookies"
	Block3rdPartyCookie CookieControl = "block3rdPartyCookie"
	BlockAllCookies     CookieControl = "blockAllCookies"
)

// Defaults is the global protection state before any per-site override.
type Defaults struct {
	// Resources holds the enabled flag per canonical resource name.
	Resources                map[string]bool
	AdControl                AdControl
	CookieControl            CookieControl
	FingerprintingProtection bool
}

// ComputeDefaults derives the bravery defaults from global state and config. It
// is recomputed on every call.
func ComputeDefaults(state AppState, cfg AppConfig) Defaults {
	d := Defaults{Resources: make(map[string]bool, len(cfg.Resources))}
	for _, r := range cfg.Resources {
		enabled, ok := state.ResourceEnabled[r.Name]
		if !ok {
			enabled = r.Enabled
		}
		d.Resources[r.Name] = enabled
	}

	replaceAds := d.enabled(cfg, ResourceAdInsertion)
	blockAds := d.enabled(cfg, ResourceAdblock)
	blockTracking := d.enabled(cfg, ResourceTrackingProtection)
	blockCookies := d.enabled(cfg, ResourceCookieBlock)

	switch {
	case blockAds && replaceAds && blockTracking:
		d.AdControl = ShowBraveAds
	case blockAds && !replaceAds && blockTracking:
		d.AdControl = BlockAds
	default:
		d.AdControl = AllowAdsAndTracking
	}

	d.CookieControl = AllowAllCookies
	if blockCookies {
		d.CookieControl = Block3rdPartyCookie
	}

	d.FingerprintingProtection = GlobalBool(state, cfg, SettingBlockCanvasFingerprinting)
	return d
}

func (d Defaults) enabled(cfg AppConfig, id string) bool {
	name, ok := cfg.ResourceName(id)
	if !ok {
		return false
	}
	return d.Resources[name]
}

// Record flattens the defaults into a site settings record.
func (d Defaults) Record() sitesettings.Record {
	rec := make(sitesettings.Record, len(d.Resources)+3)
	for name, enabled := range d.Resources {
		rec[name] = sitesettings.Bool(enabled)
	}
	rec[sitesettings.KeyAdControl] = sitesettings.String(string(d.AdControl))
	rec[sitesettings.KeyCookieControl] = sitesettings.String(string(d.CookieControl))
	rec[sitesettings.KeyFingerprintingProtection] = sitesettings.Bool(d.FingerprintingProtection)
	return rec
}

// GlobalBool reads a boolean app setting, falling back to the configured
// default and finally to false.
func GlobalBool(state AppState, cfg AppConfig, key string) bool {
	if v, ok := state.Settings.Bool(key); ok {
		return v
	}
	v, _ := cfg.DefaultSettings.Bool(key)
	return v
}
