package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-shields/internal/bravery"
	"github.com/JakeFAU/site-shields/internal/config"
	"github.com/JakeFAU/site-shields/internal/sitesettings"
	"github.com/JakeFAU/site-shields/internal/state"
)

type fakeApp struct {
	manager *state.Manager
	closed  bool
}

func (f *fakeApp) Config() config.Config {
	return config.Config{Server: config.ServerConfig{Port: 8080, ShutdownTimeoutSeconds: 1}}
}

func (f *fakeApp) Logger() *zap.Logger {
	return zap.NewNop()
}

func (f *fakeApp) Manager() *state.Manager {
	return f.manager
}

func (f *fakeApp) Close(context.Context) error {
	f.closed = true
	return nil
}

// withFakeApp swaps the application factory for the duration of the test.
func withFakeApp(t *testing.T, seed sitesettings.Store) *fakeApp {
	t.Helper()
	fake := &fakeApp{
		manager: state.NewManager(bravery.DefaultAppConfig(), bravery.AppState{Locale: "en-US"}, seed, state.Options{}),
	}
	orig := newApp
	newApp = func(string) (App, error) { return fake, nil }
	t.Cleanup(func() { newApp = orig })
	return fake
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPatternsCommand(t *testing.T) {
	withFakeApp(t, sitesettings.Store{})

	out, err := run(t, "patterns", "https://www.brave.com/path")
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
	require.Equal(t, "https://www.brave.com", string(lines[0]))
	require.Equal(t, "*", string(lines[len(lines)-1]))
}

func TestPatternsCommandRejectsRelativeURL(t *testing.T) {
	withFakeApp(t, sitesettings.Store{})

	_, err := run(t, "patterns", "not a url")
	require.Error(t, err)
}

func TestResolveCommandJSON(t *testing.T) {
	fake := withFakeApp(t, sitesettings.NewStore(map[string]sitesettings.Record{
		"https?://brave.com": {sitesettings.KeyShieldsUp: sitesettings.Bool(false)},
	}))

	out, err := run(t, "resolve", "--json", "https://brave.com/")
	require.NoError(t, err)
	require.True(t, fake.closed)

	var got struct {
		URL     string         `json:"url"`
		Matched []string       `json:"matched"`
		Site    map[string]any `json:"site"`
		Active  map[string]any `json:"active"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, []string{"https?://brave.com"}, got.Matched)
	require.Equal(t, false, got.Site[sitesettings.KeyShieldsUp])
	require.Equal(t, false, got.Active[sitesettings.KeyShieldsUp])
}

func TestResolveCommandText(t *testing.T) {
	withFakeApp(t, sitesettings.Store{})

	out, err := run(t, "resolve", "https://example.com/")
	require.NoError(t, err)
	require.Contains(t, out, "matched: (none)")
	require.Contains(t, out, "shieldsUp")
	require.Contains(t, out, "adInsertion")
}

func TestRootFailsWhenFactoryFails(t *testing.T) {
	orig := newApp
	newApp = func(string) (App, error) { return nil, errors.New("boom") }
	t.Cleanup(func() { newApp = orig })

	_, err := run(t, "patterns", "https://brave.com")
	require.ErrorContains(t, err, "boom")
}
