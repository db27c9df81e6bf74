// Package state owns the mutable application state: the persistent and
// temporary site-settings stores plus the global settings and resource
// toggles. Every mutation swaps in a new immutable store under a lock and is
// reported to an events.Emitter.
package state

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-shields/internal/bravery"
	"github.com/JakeFAU/site-shields/internal/clock/system"
	"github.com/JakeFAU/site-shields/internal/contentsettings"
	"github.com/JakeFAU/site-shields/internal/events"
	"github.com/JakeFAU/site-shields/internal/hostpattern"
	"github.com/JakeFAU/site-shields/internal/sitesettings"
)

// Validation errors returned by the mutating actions.
var (
	ErrInvalidPattern  = errors.New("invalid host pattern")
	ErrInvalidKey      = errors.New("invalid setting key")
	ErrInvalidURL      = errors.New("invalid url")
	ErrUnknownResource = errors.New("unknown resource")
)

// flashAlwaysTTL is how long an "always allow" Flash grant lasts.
const flashAlwaysTTL = 7 * 24 * time.Hour

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// Options carries the optional collaborators of a Manager.
type Options struct {
	Clock   Clock
	Emitter events.Emitter
	Logger  *zap.Logger
}

// Manager serializes mutations of the settings state. Reads return snapshots
// that remain valid after later mutations.
type Manager struct {
	mu         sync.RWMutex
	persistent sitesettings.Store
	temporary  sitesettings.Store

	persistentNoScript exceptions
	temporaryNoScript  exceptions
	app        bravery.AppState
	cfg        bravery.AppConfig

	clock   Clock
	emitter events.Emitter
	logger  *zap.Logger
}

// NewManager seeds a Manager with the persistent store and global state.
func NewManager(cfg bravery.AppConfig, app bravery.AppState, seed sitesettings.Store, opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = system.New()
	}
	if opts.Emitter == nil {
		opts.Emitter = events.Discard{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Manager{
		persistent: seed,
		app:        app.Clone(),
		cfg:        cfg,
		clock:      opts.Clock,
		emitter:    opts.Emitter,
		logger:     opts.Logger.Named("state"),
	}
}

// SiteSettingChange sets one key on a host pattern.
type SiteSettingChange struct {
	HostPattern string             `json:"hostPattern"`
	Key         string             `json:"key"`
	Value       sitesettings.Value `json:"value"`
	Temporary   bool               `json:"temporary"`
	SkipSync    bool               `json:"skipSync"`
}

// SiteSettingRemoval deletes one key from a host pattern.
type SiteSettingRemoval struct {
	HostPattern string `json:"hostPattern"`
	Key         string `json:"key"`
	Temporary   bool   `json:"temporary"`
	SkipSync    bool   `json:"skipSync"`
}

// SiteSettingsClear deletes one key from every host pattern.
type SiteSettingsClear struct {
	Key       string `json:"key"`
	Temporary bool   `json:"temporary"`
	SkipSync  bool   `json:"skipSync"`
}

// ChangeSiteSetting applies c to the persistent or temporary store.
func (m *Manager) ChangeSiteSetting(c SiteSettingChange) error {
	pattern, err := validPattern(c.HostPattern)
	if err != nil {
		return err
	}
	if err := validKey(c.Key); err != nil {
		return err
	}
	if !c.Value.IsValid() {
		return fmt.Errorf("setting %q: %w", c.Key, sitesettings.ErrUnsupportedValue)
	}

	m.mu.Lock()
	m.update(c.Temporary, func(s sitesettings.Store) sitesettings.Store {
		s = s.MergeOne(pattern, c.Key, c.Value)
		if c.SkipSync {
			s = s.MergeOne(pattern, sitesettings.KeySkipSync, sitesettings.Bool(true))
		}
		return s
	})
	m.mu.Unlock()

	evt := m.event(events.KindSiteSettingChanged, events.ScopeFor(c.Temporary))
	evt.Pattern, evt.Key, evt.Value, evt.SkipSync = pattern, c.Key, c.Value, c.SkipSync
	m.emit(evt)
	return nil
}

// RemoveSiteSetting applies r to the persistent or temporary store.
func (m *Manager) RemoveSiteSetting(r SiteSettingRemoval) error {
	pattern, err := validPattern(r.HostPattern)
	if err != nil {
		return err
	}
	if err := validKey(r.Key); err != nil {
		return err
	}

	m.mu.Lock()
	m.update(r.Temporary, func(s sitesettings.Store) sitesettings.Store {
		s = s.RemoveKey(pattern, r.Key)
		if r.SkipSync {
			s = s.MergeOne(pattern, sitesettings.KeySkipSync, sitesettings.Bool(true))
		}
		return s
	})
	m.dropExceptions(r.Temporary, r.Key, pattern)
	m.mu.Unlock()

	evt := m.event(events.KindSiteSettingRemoved, events.ScopeFor(r.Temporary))
	evt.Pattern, evt.Key, evt.SkipSync = pattern, r.Key, r.SkipSync
	m.emit(evt)
	return nil
}

// ClearSiteSettings removes c.Key from every pattern of the selected store.
// With SkipSync every pattern is also flagged skipSync.
func (m *Manager) ClearSiteSettings(c SiteSettingsClear) error {
	if err := validKey(c.Key); err != nil {
		return err
	}

	m.mu.Lock()
	m.update(c.Temporary, func(s sitesettings.Store) sitesettings.Store {
		s = s.ClearKey(c.Key)
		if c.SkipSync {
			for _, pattern := range s.Patterns() {
				s = s.MergeOne(pattern, sitesettings.KeySkipSync, sitesettings.Bool(true))
			}
		}
		return s
	})
	m.dropExceptions(c.Temporary, c.Key, "")
	m.mu.Unlock()

	evt := m.event(events.KindSiteSettingsCleared, events.ScopeFor(c.Temporary))
	evt.Key, evt.SkipSync = c.Key, c.SkipSync
	m.emit(evt)
	return nil
}

// AllowFlashOnce grants Flash to the origin of location until the grant is
// consumed. Private grants go to the temporary store.
func (m *Manager) AllowFlashOnce(location string, private bool) error {
	return m.allowFlash(location, private, func(time.Time) float64 { return 1 })
}

// AllowFlashAlways grants Flash to the origin of location for seven days. The
// stored value is the expiry in milliseconds since the Unix epoch.
func (m *Manager) AllowFlashAlways(location string, private bool) error {
	return m.allowFlash(location, private, func(now time.Time) float64 {
		return float64(now.Add(flashAlwaysTTL).UnixMilli())
	})
}

func (m *Manager) allowFlash(location string, private bool, value func(time.Time) float64) error {
	origin, ok := hostpattern.Origin(location)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidURL, location)
	}
	v := sitesettings.Number(value(m.clock.Now()))

	m.mu.Lock()
	m.update(private, func(s sitesettings.Store) sitesettings.Store {
		return s.MergeOne(origin, sitesettings.KeyFlash, v)
	})
	m.mu.Unlock()

	evt := m.event(events.KindFlashAllowed, events.ScopeFor(private))
	evt.Pattern, evt.Key, evt.Value = origin, sitesettings.KeyFlash, v
	m.emit(evt)
	return nil
}

// EnableUndefinedPublishers turns on ledger payments for every publisher whose
// protocol-merged pattern has no ledgerPayments value yet.
func (m *Manager) EnableUndefinedPublishers(publishers []string) error {
	patterns := make([]string, 0, len(publishers))
	for _, p := range publishers {
		p = strings.TrimSpace(p)
		if p == "" {
			return fmt.Errorf("%w: empty publisher", ErrInvalidPattern)
		}
		patterns = append(patterns, hostpattern.AnyHTTP+p)
	}

	var enabled []string
	m.mu.Lock()
	for _, pattern := range patterns {
		rec, _ := m.persistent.Get(pattern)
		if _, set := rec.Get(sitesettings.KeyLedgerPayments); set {
			continue
		}
		m.persistent = m.persistent.MergeOne(pattern, sitesettings.KeyLedgerPayments, sitesettings.Bool(true))
		enabled = append(enabled, pattern)
	}
	m.mu.Unlock()

	for _, pattern := range enabled {
		evt := m.event(events.KindPublisherEnabled, events.ScopePersistent)
		evt.Pattern, evt.Key, evt.Value = pattern, sitesettings.KeyLedgerPayments, sitesettings.Bool(true)
		m.emit(evt)
	}
	return nil
}

// ChangeLedgerPinnedPercentages stores the pinned share for each publisher.
func (m *Manager) ChangeLedgerPinnedPercentages(pins map[string]float64) error {
	for publisher := range pins {
		if strings.TrimSpace(publisher) == "" {
			return fmt.Errorf("%w: empty publisher", ErrInvalidPattern)
		}
	}

	m.mu.Lock()
	for publisher, pct := range pins {
		pattern := hostpattern.AnyHTTP + strings.TrimSpace(publisher)
		m.persistent = m.persistent.MergeOne(pattern, sitesettings.KeyLedgerPinPercentage, sitesettings.Number(pct))
	}
	m.mu.Unlock()

	for publisher, pct := range pins {
		evt := m.event(events.KindPinPercentage, events.ScopePersistent)
		evt.Pattern = hostpattern.AnyHTTP + strings.TrimSpace(publisher)
		evt.Key, evt.Value = sitesettings.KeyLedgerPinPercentage, sitesettings.Number(pct)
		m.emit(evt)
	}
	return nil
}

// ChangeSetting sets a global application setting such as
// bravery.SettingBlockCanvasFingerprinting.
func (m *Manager) ChangeSetting(key string, v sitesettings.Value) error {
	if err := validKey(key); err != nil {
		return err
	}
	if !v.IsValid() {
		return fmt.Errorf("setting %q: %w", key, sitesettings.ErrUnsupportedValue)
	}

	m.mu.Lock()
	m.app.Settings = m.app.Settings.With(key, v)
	m.mu.Unlock()

	evt := m.event(events.KindSettingChanged, events.ScopeGlobal)
	evt.Key, evt.Value = key, v
	m.emit(evt)
	return nil
}

// SetResourceEnabled toggles a configured resource by its canonical name.
func (m *Manager) SetResourceEnabled(name string, enabled bool) error {
	if _, ok := m.cfg.Resource(name); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}

	m.mu.Lock()
	next := maps.Clone(m.app.ResourceEnabled)
	if next == nil {
		next = make(map[string]bool, 1)
	}
	next[name] = enabled
	m.app.ResourceEnabled = next
	m.mu.Unlock()

	evt := m.event(events.KindResourceToggled, events.ScopeGlobal)
	evt.Key, evt.Value = name, sitesettings.Bool(enabled)
	evt.Note = fmt.Sprintf("enabled=%t", enabled)
	m.emit(evt)
	return nil
}

// SiteSettings returns the store used for regular pages, or for private pages
// the persistent store overlaid with the temporary one.
func (m *Manager) SiteSettings(private bool) sitesettings.Store {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.siteSettingsLocked(private)
}

func (m *Manager) siteSettingsLocked(private bool) sitesettings.Store {
	if private {
		return m.persistent.MergeDeep(m.temporary)
	}
	return m.persistent
}

// TemporarySiteSettings returns the temporary store alone.
func (m *Manager) TemporarySiteSettings() sitesettings.Store {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.temporary
}

// Resolve merges every stored pattern matching location.
func (m *Manager) Resolve(location string, private bool) sitesettings.Resolution {
	return sitesettings.ResolveDetailed(m.SiteSettings(private), location)
}

// Active computes the effective settings for a page view of location.
func (m *Manager) Active(location string, private bool) (bravery.Settings, sitesettings.Resolution) {
	m.mu.RLock()
	store := m.siteSettingsLocked(private)
	app := m.app.Clone()
	m.mu.RUnlock()

	res := sitesettings.ResolveDetailed(store, location)
	return bravery.ComputeActive(res.Settings, app, m.cfg), res
}

// Defaults computes the global bravery defaults.
func (m *Manager) Defaults() bravery.Defaults {
	return bravery.ComputeDefaults(m.AppState(), m.cfg)
}

// ContentSettings exports the engine rules for regular or private pages.
func (m *Manager) ContentSettings(private bool) contentsettings.ContentSettings {
	m.mu.RLock()
	store := m.siteSettingsLocked(private)
	app := m.app.Clone()
	m.mu.RUnlock()
	return contentsettings.Build(store, app, m.cfg)
}

// AppState returns a copy of the global state.
func (m *Manager) AppState() bravery.AppState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.app.Clone()
}

// Config returns the static application configuration.
func (m *Manager) Config() bravery.AppConfig {
	return m.cfg
}

// update replaces the selected store with fn's result. Callers hold mu.
func (m *Manager) update(temporary bool, fn func(sitesettings.Store) sitesettings.Store) {
	if temporary {
		m.temporary = fn(m.temporary)
		return
	}
	m.persistent = fn(m.persistent)
}

func (m *Manager) event(kind events.Kind, scope events.Scope) events.Event {
	return events.New(kind, scope, m.clock.Now())
}

func (m *Manager) emit(evt events.Event) {
	m.logger.Debug("state changed",
		zap.String("kind", string(evt.Kind)),
		zap.String("scope", string(evt.Scope)),
		zap.String("pattern", evt.Pattern),
		zap.String("key", evt.Key),
	)
	m.emitter.Emit(evt)
}

func validPattern(pattern string) (string, error) {
	p := hostpattern.NormalizePattern(pattern)
	if p == hostpattern.Global {
		return p, nil
	}
	scheme, rest, ok := strings.Cut(p, "://")
	if !ok || scheme == "" || rest == "" || strings.ContainsAny(p, " \t\n") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}
	return p, nil
}

func validKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}
