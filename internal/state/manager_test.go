package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/site-shields/internal/bravery"
	"github.com/JakeFAU/site-shields/internal/events"
	"github.com/JakeFAU/site-shields/internal/sitesettings"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type captureEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *captureEmitter) All() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Event(nil), c.events...)
}

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T) (*Manager, *captureEmitter) {
	t.Helper()
	emitter := &captureEmitter{}
	m := NewManager(bravery.DefaultAppConfig(), bravery.AppState{Locale: "en-US"}, sitesettings.Store{}, Options{
		Clock:   fixedClock{now: testNow},
		Emitter: emitter,
	})
	return m, emitter
}

func TestChangeSiteSetting(t *testing.T) {
	t.Parallel()

	m, emitter := newTestManager(t)
	require.NoError(t, m.ChangeSiteSetting(SiteSettingChange{
		HostPattern: "https://brave.com",
		Key:         sitesettings.KeyNoScript,
		Value:       sitesettings.Bool(true),
	}))

	rec, ok := m.SiteSettings(false).Get("https://brave.com")
	require.True(t, ok)
	require.Equal(t, sitesettings.Record{sitesettings.KeyNoScript: sitesettings.Bool(true)}, rec)
	require.Equal(t, 0, m.TemporarySiteSettings().Len())

	got := emitter.All()
	require.Len(t, got, 1)
	require.Equal(t, events.KindSiteSettingChanged, got[0].Kind)
	require.Equal(t, events.ScopePersistent, got[0].Scope)
	require.Equal(t, testNow, got[0].TS)
	require.NoError(t, got[0].Validate())
}

func TestChangeSiteSettingTemporaryWithSkipSync(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	require.NoError(t, m.ChangeSiteSetting(SiteSettingChange{
		HostPattern: "http?://brave.com",
		Key:         sitesettings.KeyShieldsUp,
		Value:       sitesettings.Bool(false),
		Temporary:   true,
		SkipSync:    true,
	}))

	require.Equal(t, 0, m.SiteSettings(false).Len())
	rec, ok := m.TemporarySiteSettings().Get("https?://brave.com")
	require.True(t, ok)
	skip, _ := rec.Bool(sitesettings.KeySkipSync)
	require.True(t, skip)

	res := m.Resolve("https://brave.com/page", true)
	require.True(t, res.Found())
	up, ok := res.Settings.Bool(sitesettings.KeyShieldsUp)
	require.True(t, ok)
	require.False(t, up)

	require.False(t, m.Resolve("https://brave.com/page", false).Found())
}

func TestChangeSiteSettingValidation(t *testing.T) {
	t.Parallel()

	m, emitter := newTestManager(t)
	tests := []struct {
		name string
		c    SiteSettingChange
		want error
	}{
		{name: "no pattern", c: SiteSettingChange{Key: "k", Value: sitesettings.Bool(true)}, want: ErrInvalidPattern},
		{name: "no scheme", c: SiteSettingChange{HostPattern: "brave.com", Key: "k", Value: sitesettings.Bool(true)}, want: ErrInvalidPattern},
		{name: "no key", c: SiteSettingChange{HostPattern: "https://brave.com", Value: sitesettings.Bool(true)}, want: ErrInvalidKey},
		{name: "no value", c: SiteSettingChange{HostPattern: "https://brave.com", Key: "k"}, want: sitesettings.ErrUnsupportedValue},
	}
	for _, tt := range tests {
		err := m.ChangeSiteSetting(tt.c)
		require.ErrorIs(t, err, tt.want, tt.name)
	}
	require.Empty(t, emitter.All())
	require.NoError(t, m.ChangeSiteSetting(SiteSettingChange{HostPattern: "*", Key: "k", Value: sitesettings.Bool(true)}))
}

func TestRemoveSiteSetting(t *testing.T) {
	t.Parallel()

	m, emitter := newTestManager(t)
	for _, key := range []string{sitesettings.KeyNoScript, sitesettings.KeyShieldsUp} {
		require.NoError(t, m.ChangeSiteSetting(SiteSettingChange{
			HostPattern: "https://brave.com", Key: key, Value: sitesettings.Bool(true),
		}))
	}
	before := m.SiteSettings(false)

	require.NoError(t, m.RemoveSiteSetting(SiteSettingRemoval{HostPattern: "https://brave.com", Key: sitesettings.KeyNoScript}))
	rec, ok := m.SiteSettings(false).Get("https://brave.com")
	require.True(t, ok)
	require.Equal(t, []string{sitesettings.KeyShieldsUp}, rec.Keys())

	// Earlier snapshots are unaffected.
	old, _ := before.Get("https://brave.com")
	require.Len(t, old, 2)

	require.NoError(t, m.RemoveSiteSetting(SiteSettingRemoval{HostPattern: "https://other.com", Key: "x", SkipSync: true}))
	rec, ok = m.SiteSettings(false).Get("https://other.com")
	require.True(t, ok)
	require.Equal(t, []string{sitesettings.KeySkipSync}, rec.Keys())

	require.Len(t, emitter.All(), 4)
}

func TestClearSiteSettings(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	for _, p := range []string{"https://a.com", "https://b.com"} {
		require.NoError(t, m.ChangeSiteSetting(SiteSettingChange{HostPattern: p, Key: sitesettings.KeyFlash, Value: sitesettings.Number(1)}))
	}
	require.NoError(t, m.ChangeSiteSetting(SiteSettingChange{HostPattern: "https://a.com", Key: sitesettings.KeyNoScript, Value: sitesettings.Bool(true)}))

	require.NoError(t, m.ClearSiteSettings(SiteSettingsClear{Key: sitesettings.KeyFlash, SkipSync: true}))
	store := m.SiteSettings(false)
	a, _ := store.Get("https://a.com")
	require.Equal(t, []string{sitesettings.KeyNoScript, sitesettings.KeySkipSync}, a.Keys())
	b, _ := store.Get("https://b.com")
	require.Equal(t, []string{sitesettings.KeySkipSync}, b.Keys())

	require.ErrorIs(t, m.ClearSiteSettings(SiteSettingsClear{}), ErrInvalidKey)
}

func TestAllowFlash(t *testing.T) {
	t.Parallel()

	m, emitter := newTestManager(t)
	require.NoError(t, m.AllowFlashOnce("https://www.brave.com/video?x=1", false))
	rec, ok := m.SiteSettings(false).Get("https://www.brave.com")
	require.True(t, ok)
	v, _ := rec.Number(sitesettings.KeyFlash)
	require.InDelta(t, 1.0, v, 0)

	require.NoError(t, m.AllowFlashAlways("http://example.com:8080/a", true))
	rec, ok = m.TemporarySiteSettings().Get("http://example.com:8080")
	require.True(t, ok)
	v, _ = rec.Number(sitesettings.KeyFlash)
	require.InDelta(t, float64(testNow.Add(7*24*time.Hour).UnixMilli()), v, 0)

	require.ErrorIs(t, m.AllowFlashOnce("not a url", false), ErrInvalidURL)

	got := emitter.All()
	require.Len(t, got, 2)
	require.Equal(t, events.ScopeTemporary, got[1].Scope)
	require.Equal(t, "http://example.com:8080", got[1].Pattern)
}

func TestEnableUndefinedPublishers(t *testing.T) {
	t.Parallel()

	m, emitter := newTestManager(t)
	require.NoError(t, m.ChangeSiteSetting(SiteSettingChange{
		HostPattern: "https?://brave.com", Key: sitesettings.KeyLedgerPayments, Value: sitesettings.Bool(false),
	}))

	require.NoError(t, m.EnableUndefinedPublishers([]string{"brave.com", "example.com"}))
	store := m.SiteSettings(false)
	brave, _ := store.Get("https?://brave.com")
	v, _ := brave.Bool(sitesettings.KeyLedgerPayments)
	require.False(t, v, "existing choice is kept")
	example, ok := store.Get("https?://example.com")
	require.True(t, ok)
	v, _ = example.Bool(sitesettings.KeyLedgerPayments)
	require.True(t, v)

	got := emitter.All()
	require.Len(t, got, 2)
	require.Equal(t, events.KindPublisherEnabled, got[1].Kind)

	require.ErrorIs(t, m.EnableUndefinedPublishers([]string{" "}), ErrInvalidPattern)
}

func TestChangeLedgerPinnedPercentages(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	require.NoError(t, m.ChangeLedgerPinnedPercentages(map[string]float64{"brave.com": 25}))
	rec, ok := m.SiteSettings(false).Get("https?://brave.com")
	require.True(t, ok)
	v, _ := rec.Number(sitesettings.KeyLedgerPinPercentage)
	require.InDelta(t, 25.0, v, 0)
}

func TestGlobalSettingsAffectActive(t *testing.T) {
	t.Parallel()

	m, emitter := newTestManager(t)
	active, res := m.Active("https://brave.com", false)
	require.False(t, res.Found())
	require.Equal(t, bravery.BlockAds, active.AdControl)

	require.NoError(t, m.SetResourceEnabled("adInsertion", true))
	active, _ = m.Active("https://brave.com", false)
	require.Equal(t, bravery.ShowBraveAds, active.AdControl)
	require.True(t, active.AdInsertion.Enabled)
	require.Equal(t, bravery.ShowBraveAds, m.Defaults().AdControl)

	require.NoError(t, m.ChangeSetting(bravery.SettingBlockCanvasFingerprinting, sitesettings.Bool(true)))
	require.True(t, m.Defaults().FingerprintingProtection)

	require.ErrorIs(t, m.SetResourceEnabled("nope", true), ErrUnknownResource)
	require.ErrorIs(t, m.ChangeSetting("", sitesettings.Bool(true)), ErrInvalidKey)
	require.Len(t, emitter.All(), 2)
}

func TestActiveUsesPrivateOverlay(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	require.NoError(t, m.ChangeSiteSetting(SiteSettingChange{
		HostPattern: "https?://brave.com", Key: sitesettings.KeyShieldsUp, Value: sitesettings.Bool(false), Temporary: true,
	}))

	regular, _ := m.Active("https://brave.com", false)
	require.True(t, regular.ShieldsUp)
	private, res := m.Active("https://brave.com", true)
	require.False(t, private.ShieldsUp)
	require.Equal(t, []string{"https?://brave.com"}, res.Matched)

	cs := m.ContentSettings(true)
	require.NotEmpty(t, cs["javascript"])
}

func TestAddNoScriptExceptions(t *testing.T) {
	t.Parallel()

	m, emitter := newTestManager(t)
	require.NoError(t, m.AddNoScriptExceptions(NoScriptExceptionsChange{
		HostPattern: "https://news.test",
		Origins:     map[string]bool{"https://cdn.test": true, "https://ads.test": false},
	}))
	require.NoError(t, m.AddNoScriptExceptions(NoScriptExceptionsChange{
		HostPattern: "https://news.test",
		Origins:     map[string]bool{"https://ads.test": true},
	}))
	require.Equal(t, map[string]bool{"https://cdn.test": true, "https://ads.test": true},
		m.NoScriptExceptions("https://news.test", false))

	got := emitter.All()
	require.Len(t, got, 2)
	require.Equal(t, events.KindNoScriptExceptions, got[0].Kind)
	require.Equal(t, KeyNoScriptExceptions, got[0].Key)
	require.Equal(t, "origins=https://ads.test,https://cdn.test", got[0].Note)
	require.NoError(t, got[0].Validate())

	// Site-setting records are untouched.
	require.Equal(t, 0, m.SiteSettings(false).Len())

	// Returned maps are copies.
	ex := m.NoScriptExceptions("https://news.test", false)
	ex["https://cdn.test"] = false
	require.True(t, m.NoScriptExceptions("https://news.test", false)["https://cdn.test"])

	require.NoError(t, m.AddNoScriptExceptions(NoScriptExceptionsChange{HostPattern: "https://news.test"}))
	require.Empty(t, m.NoScriptExceptions("https://news.test", false))
	require.Equal(t, "cleared", emitter.All()[2].Note)

	require.ErrorIs(t, m.AddNoScriptExceptions(NoScriptExceptionsChange{HostPattern: "bad"}), ErrInvalidPattern)
	require.ErrorIs(t, m.AddNoScriptExceptions(NoScriptExceptionsChange{
		HostPattern: "https://news.test", Origins: map[string]bool{" ": true},
	}), ErrInvalidURL)
}

func TestNoScriptExceptionsPrivateOverlayAndRemoval(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	require.NoError(t, m.AddNoScriptExceptions(NoScriptExceptionsChange{
		HostPattern: "https://news.test", Origins: map[string]bool{"https://cdn.test": true},
	}))
	require.NoError(t, m.AddNoScriptExceptions(NoScriptExceptionsChange{
		HostPattern: "https://news.test", Origins: map[string]bool{"https://cdn.test": false}, Temporary: true,
	}))
	require.True(t, m.NoScriptExceptions("https://news.test", false)["https://cdn.test"])
	require.False(t, m.NoScriptExceptions("https://news.test", true)["https://cdn.test"])

	require.NoError(t, m.RemoveSiteSetting(SiteSettingRemoval{HostPattern: "https://news.test", Key: KeyNoScriptExceptions}))
	require.Empty(t, m.NoScriptExceptions("https://news.test", false))
	require.Len(t, m.NoScriptExceptions("https://news.test", true), 1)

	require.NoError(t, m.ClearSiteSettings(SiteSettingsClear{Key: KeyNoScriptExceptions, Temporary: true}))
	require.Empty(t, m.NoScriptExceptions("https://news.test", true))
}

func TestSetResourceEnabledNote(t *testing.T) {
	t.Parallel()

	m, emitter := newTestManager(t)
	require.NoError(t, m.SetResourceEnabled("flash", true))
	require.NoError(t, m.SetResourceEnabled("flash", false))
	got := emitter.All()
	require.Equal(t, "enabled=true", got[0].Note)
	require.Equal(t, "enabled=false", got[1].Note)
}

func TestActiveIsStableAcrossReads(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	require.NoError(t, m.ChangeSiteSetting(SiteSettingChange{
		HostPattern: "https?://brave.com", Key: sitesettings.KeyAdControl, Value: sitesettings.String(string(bravery.ShowBraveAds)),
	}))
	first, _ := m.Active("https://brave.com/a", false)
	second, _ := m.Active("https://brave.com/b", false)
	require.True(t, first.Equal(second))

	require.NoError(t, m.SetResourceEnabled("flash", true))
	third, _ := m.Active("https://brave.com/a", false)
	require.False(t, first.Equal(third))
}

func TestAppStateIsACopy(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	require.NoError(t, m.SetResourceEnabled("flash", true))
	st := m.AppState()
	st.ResourceEnabled["flash"] = false
	require.True(t, m.AppState().ResourceEnabled["flash"])
}

func TestConcurrentMutations(t *testing.T) {
	t.Parallel()

	m, emitter := newTestManager(t)
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.ChangeSiteSetting(SiteSettingChange{
				HostPattern: "https://brave.com",
				Key:         sitesettings.KeyLedgerPinPercentage,
				Value:       sitesettings.Number(float64(i)),
			})
			_ = m.Resolve("https://brave.com", false)
		}()
	}
	wg.Wait()
	require.Len(t, emitter.All(), 20)
	require.Equal(t, 1, m.SiteSettings(false).Len())
}
