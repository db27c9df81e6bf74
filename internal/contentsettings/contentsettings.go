// Package contentsettings converts bravery defaults and site settings into the
// per-category content-setting rules consumed by the browser engine.
package contentsettings

import (
	"strings"

	"github.com/JakeFAU/site-shields/internal/bravery"
	"github.com/JakeFAU/site-shields/internal/hostpattern"
	"github.com/JakeFAU/site-shields/internal/sitesettings"
)

// Rule settings.
const (
	Allow = "allow"
	Block = "block"
)

// Category names.
const (
	Cookies              = "cookies"
	Referer              = "referer"
	AdInsertion          = "adInsertion"
	PasswordManager      = "passwordManager"
	JavaScript           = "javascript"
	CanvasFingerprinting = "canvasFingerprinting"
	FlashEnabled         = "flashEnabled"
	FlashActive          = "flashActive"
)

// FirstParty is the secondary pattern matching the embedding site itself.
const FirstParty = "[firstParty]"

// Rule is a single content-setting entry. Later rules take precedence.
type Rule struct {
	Setting          string `json:"setting"`
	PrimaryPattern   string `json:"primaryPattern"`
	SecondaryPattern string `json:"secondaryPattern,omitempty"`
}

// ContentSettings maps category names to their ordered rules.
type ContentSettings map[string][]Rule

// Build derives the content settings from the global state and every pattern in
// store. Per-site rules are appended after the defaults; patterns with shields
// down are applied in a second pass so they win over any other per-site rule.
func Build(store sitesettings.Store, state bravery.AppState, cfg bravery.AppConfig) ContentSettings {
	defaults := bravery.ComputeDefaults(state, cfg)
	noScript := resourceDefault(defaults, cfg, bravery.ResourceNoScript)
	flash := resourceDefault(defaults, cfg, bravery.ResourceFlash)

	cs := ContentSettings{
		Cookies: thirdPartyStorage(defaults.CookieControl, cfg),
		Referer: {{
			Setting:        blockIf(defaults.CookieControl == bravery.Block3rdPartyCookie),
			PrimaryPattern: "*",
		}},
		AdInsertion: {{
			Setting:        allowIf(defaults.AdControl == bravery.ShowBraveAds),
			PrimaryPattern: "*",
		}},
		PasswordManager: {{
			Setting:        allowIf(bravery.GlobalBool(state, cfg, bravery.SettingPasswordManagerEnabled)),
			PrimaryPattern: "*",
		}},
		JavaScript: {
			{Setting: blockIf(noScript), PrimaryPattern: "*"},
			{Setting: Allow, PrimaryPattern: "file:///*", SecondaryPattern: "*"},
			{Setting: Allow, PrimaryPattern: "chrome-extension://*", SecondaryPattern: "*"},
		},
		CanvasFingerprinting: {{
			Setting:        blockIf(defaults.FingerprintingProtection),
			PrimaryPattern: "*",
		}},
		FlashEnabled: {{
			Setting:        allowIf(flash),
			PrimaryPattern: "*",
		}},
		FlashActive: {{
			Setting:        Block,
			PrimaryPattern: "*",
		}},
	}

	for pattern, rec := range store.All() {
		primary, ok := primaryPattern(pattern)
		if !ok {
			continue
		}
		cs.addSiteRules(primary, rec)
	}
	for pattern, rec := range store.All() {
		primary, ok := primaryPattern(pattern)
		if !ok {
			continue
		}
		if up, ok := rec.Bool(sitesettings.KeyShieldsUp); ok && !up {
			cs.add(Cookies, Allow, primary, "*")
			cs.add(CanvasFingerprinting, Allow, primary, "*")
			cs.add(AdInsertion, Block, primary, "*")
			cs.add(JavaScript, Allow, primary, "*")
			cs.add(Referer, Allow, primary, "*")
		}
	}
	return cs
}

func (cs ContentSettings) addSiteRules(primary string, rec sitesettings.Record) {
	if v, ok := rec.Bool(sitesettings.KeyNoScript); ok {
		cs.add(JavaScript, blockIf(v), primary, "*")
	}
	if v, ok := rec.String(sitesettings.KeyCookieControl); ok && v != "" {
		if bravery.CookieControl(v) == bravery.Block3rdPartyCookie {
			cs.add(Cookies, Block, primary, "*")
			cs.add(Cookies, Allow, primary, primary)
			cs.add(Referer, Block, primary, "*")
		} else {
			cs.add(Cookies, Allow, primary, "*")
			cs.add(Referer, Allow, primary, "*")
		}
	}
	if v, ok := rec.Bool(sitesettings.KeyFingerprintingProtection); ok {
		cs.add(CanvasFingerprinting, blockIf(v), primary, "*")
	}
	if v, ok := rec.String(sitesettings.KeyAdControl); ok && v != "" {
		cs.add(AdInsertion, allowIf(bravery.AdControl(v) == bravery.ShowBraveAds), primary, "*")
	}
	if _, ok := rec.Number(sitesettings.KeyFlash); ok {
		cs.add(FlashActive, Allow, primary, "*")
	}
}

func (cs ContentSettings) add(category, setting, primary, secondary string) {
	cs[category] = append(cs[category], Rule{
		Setting:          setting,
		PrimaryPattern:   primary,
		SecondaryPattern: secondary,
	})
}

// primaryPattern converts a host pattern to the engine's [*.]host form. The
// protocol-merged prefix is treated as https, and the global pattern stays *.
// Scheme-wide patterns such as https://* have no host and produce no rule;
// "[*.]*" is not a pattern the engine accepts.
func primaryPattern(pattern string) (string, bool) {
	pattern = hostpattern.NormalizePattern(pattern)
	if pattern == hostpattern.Global {
		return "*", true
	}
	host, ok := hostpattern.Host(pattern)
	if !ok {
		return "", false
	}
	host = strings.TrimPrefix(host, "*.")
	return "[*.]" + host, true
}

func thirdPartyStorage(cookies bravery.CookieControl, cfg bravery.AppConfig) []Rule {
	if cookies == bravery.Block3rdPartyCookie {
		rules := []Rule{
			{Setting: Block, PrimaryPattern: "*", SecondaryPattern: "*"},
			{Setting: Allow, PrimaryPattern: "*", SecondaryPattern: FirstParty},
		}
		if cfg.BraveExtensionID != "" && cfg.CoinbaseOrigin != "" {
			rules = append(rules, Rule{
				Setting:          Allow,
				PrimaryPattern:   "chrome-extension://" + cfg.BraveExtensionID,
				SecondaryPattern: cfg.CoinbaseOrigin,
			})
		}
		return rules
	}
	return []Rule{{Setting: Allow, PrimaryPattern: "*", SecondaryPattern: "*"}}
}

func resourceDefault(d bravery.Defaults, cfg bravery.AppConfig, id string) bool {
	name, ok := cfg.ResourceName(id)
	if !ok {
		return false
	}
	return d.Resources[name]
}

func allowIf(cond bool) string {
	if cond {
		return Allow
	}
	return Block
}

func blockIf(cond bool) string {
	if cond {
		return Block
	}
	return Allow
}
