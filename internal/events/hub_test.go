package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHubBatchBySize(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{BufferSize: 8, MaxBatchEvents: 2, MaxBatchWait: time.Minute}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent())
	hub.Emit(sampleEvent())
	require.Eventually(t, func() bool {
		b := sink.Batches()
		return len(b) == 1 && len(b[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestHubBatchByTimer(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{BufferSize: 4, MaxBatchEvents: 10, MaxBatchWait: 20 * time.Millisecond}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent())
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestHubEmitNeverBlocks(t *testing.T) {
	t.Parallel()

	hub := &Hub{queue: make(chan Event), logger: zap.NewNop()}
	start := time.Now()
	hub.Emit(sampleEvent())
	hub.Emit(sampleEvent())
	require.Less(t, time.Since(start), 50*time.Millisecond)
	require.EqualValues(t, 1, hub.dropped.Load(), "first drop is logged and reset")
}

func TestHubFlushOnClose(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{BufferSize: 4, MaxBatchEvents: 100, MaxBatchWait: time.Minute}, sink)
	hub.Emit(sampleEvent())

	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
	require.True(t, sink.Closed())

	// Emit after Close is ignored, and Close is idempotent.
	hub.Emit(sampleEvent())
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
}

func TestHubDropsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{MaxBatchEvents: 1}, sink)
	hub.Emit(Event{Kind: KindSettingChanged})
	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.Batches())
}

func TestNilHubIsSafe(t *testing.T) {
	t.Parallel()

	var hub *Hub
	hub.Emit(sampleEvent())
	require.NoError(t, hub.Close(context.Background()))
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tests := []struct {
		name    string
		evt     Event
		wantErr bool
	}{
		{name: "valid change", evt: withPattern(New(KindSiteSettingChanged, ScopePersistent, now), "https://a.com", "noScript")},
		{name: "change without key", evt: withPattern(New(KindSiteSettingChanged, ScopePersistent, now), "https://a.com", ""), wantErr: true},
		{name: "flash needs pattern", evt: New(KindFlashAllowed, ScopeTemporary, now), wantErr: true},
		{name: "clear needs key", evt: New(KindSiteSettingsCleared, ScopePersistent, now), wantErr: true},
		{name: "unknown kind", evt: New(Kind("NOPE"), ScopeGlobal, now), wantErr: true},
		{name: "unknown scope", evt: withPattern(New(KindFlashAllowed, Scope("x"), now), "https://a.com", ""), wantErr: true},
		{name: "missing id", evt: Event{TS: now, Kind: KindSettingChanged, Scope: ScopeGlobal, Key: "k"}, wantErr: true},
		{name: "missing ts", evt: Event{ID: uuid.New(), Kind: KindSettingChanged, Scope: ScopeGlobal, Key: "k"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.evt.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNewUsesTimeOrderedIDs(t *testing.T) {
	t.Parallel()

	evt := New(KindSettingChanged, ScopeGlobal, time.Now())
	require.Equal(t, uuid.Version(7), evt.ID.Version())
	require.Equal(t, time.UTC, evt.TS.Location())
	require.Equal(t, ScopeTemporary, ScopeFor(true))
	require.Equal(t, ScopePersistent, ScopeFor(false))
}

type recordingSink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  bool
}

func (s *recordingSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *recordingSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]Event(nil), s.batches...)
}

func (s *recordingSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func withPattern(evt Event, pattern, key string) Event {
	evt.Pattern = pattern
	evt.Key = key
	return evt
}

func sampleEvent() Event {
	evt := New(KindSiteSettingChanged, ScopePersistent, time.Now())
	evt.Pattern = "https?://brave.com"
	evt.Key = "shieldsUp"
	return evt
}
