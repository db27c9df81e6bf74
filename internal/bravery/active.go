package bravery

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/JakeFAU/site-shields/internal/sitesettings"
)

// Keys added by the active settings computation on top of the defaults.
const (
	KeyLocale          = "locale"
	KeyPasswordManager = "passwordManager"
	KeyAdInsertion     = "adInsertion"
)

// AdInsertion describes whether replacement ads are injected and from where.
type AdInsertion struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
}

// Settings is the effective protection state for one page view.
type Settings struct {
	Locale    string
	ShieldsUp bool
	// Resources holds the effective flag per canonical resource name.
	Resources                map[string]bool
	AdControl                AdControl
	CookieControl            CookieControl
	FingerprintingProtection bool
	PasswordManager          bool
	AdInsertion              AdInsertion
}

// ComputeActive combines the bravery defaults with the per-site overrides in
// site, which is nil when no override applies. Every field falls back from a
// correctly typed site value to the global default. With shields down every
// protection is off regardless of other overrides.
func ComputeActive(site sitesettings.Record, state AppState, cfg AppConfig) Settings {
	defaults := ComputeDefaults(state, cfg)

	s := Settings{
		Locale:    state.Locale,
		ShieldsUp: true,
		Resources: make(map[string]bool, len(defaults.Resources)),
	}
	if v, ok := site.Bool(sitesettings.KeyShieldsUp); ok {
		s.ShieldsUp = v
	}

	for _, r := range cfg.Resources {
		s.Resources[r.Name] = s.siteBool(site, r.Name, defaults.Resources[r.Name])
	}

	switch {
	case !s.ShieldsUp:
		s.AdControl = AllowAdsAndTracking
		s.CookieControl = AllowAllCookies
	default:
		s.AdControl = defaults.AdControl
		if v, ok := site.String(sitesettings.KeyAdControl); ok {
			s.AdControl = AdControl(v)
		}
		s.CookieControl = defaults.CookieControl
		if v, ok := site.String(sitesettings.KeyCookieControl); ok {
			s.CookieControl = CookieControl(v)
		}
	}
	s.FingerprintingProtection = s.siteBool(site, sitesettings.KeyFingerprintingProtection, defaults.FingerprintingProtection)

	s.PasswordManager = GlobalBool(state, cfg, SettingPasswordManagerEnabled)
	s.AdInsertion = AdInsertion{
		Enabled: s.AdControl == ShowBraveAds,
		URL:     cfg.AdInsertionURL,
	}
	return s
}

// siteBool applies the shields gate and then the site-over-default fallback for
// a boolean protection.
func (s Settings) siteBool(site sitesettings.Record, key string, def bool) bool {
	if !s.ShieldsUp {
		return false
	}
	if v, ok := site.Bool(key); ok {
		return v
	}
	return def
}

// Resource reports the effective flag for a resource. Unknown names report
// false, false.
func (s Settings) Resource(name string) (bool, bool) {
	v, ok := s.Resources[name]
	return v, ok
}

// Record flattens the settings into the record read by the UI layer. The
// adInsertion object is not a primitive and is only present in the JSON form.
func (s Settings) Record() sitesettings.Record {
	rec := make(sitesettings.Record, len(s.Resources)+6)
	for name, enabled := range s.Resources {
		rec[name] = sitesettings.Bool(enabled)
	}
	rec[KeyLocale] = sitesettings.String(s.Locale)
	rec[sitesettings.KeyShieldsUp] = sitesettings.Bool(s.ShieldsUp)
	rec[sitesettings.KeyAdControl] = sitesettings.String(string(s.AdControl))
	rec[sitesettings.KeyCookieControl] = sitesettings.String(string(s.CookieControl))
	rec[sitesettings.KeyFingerprintingProtection] = sitesettings.Bool(s.FingerprintingProtection)
	rec[KeyPasswordManager] = sitesettings.Bool(s.PasswordManager)
	return rec
}

// MarshalJSON emits the flat record with adInsertion as an object. The object
// replaces the adInsertion resource flag of the same name.
func (s Settings) MarshalJSON() ([]byte, error) {
	flat := s.Record().Map()
	flat[KeyAdInsertion] = s.AdInsertion
	out, err := json.Marshal(flat)
	if err != nil {
		return nil, fmt.Errorf("marshal active settings: %w", err)
	}
	return out, nil
}

// Equal reports whether two settings values are identical.
func (s Settings) Equal(other Settings) bool {
	return s.Locale == other.Locale &&
		s.ShieldsUp == other.ShieldsUp &&
		maps.Equal(s.Resources, other.Resources) &&
		s.AdControl == other.AdControl &&
		s.CookieControl == other.CookieControl &&
		s.FingerprintingProtection == other.FingerprintingProtection &&
		s.PasswordManager == other.PasswordManager &&
		s.AdInsertion == other.AdInsertion
}
