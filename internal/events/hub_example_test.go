package events

import (
	"context"
	"fmt"
	"time"
)

type sinkFunc func(context.Context, []Event) error

func (f sinkFunc) Consume(ctx context.Context, batch []Event) error {
	return f(ctx, batch)
}

func (sinkFunc) Close(context.Context) error {
	return nil
}

// ExampleHub_Emit forwards a change event and flushes it via Close.
func ExampleHub_Emit() {
	var kinds []Kind
	hub := NewHub(Config{BufferSize: 2, MaxBatchEvents: 1, MaxBatchWait: time.Second},
		sinkFunc(func(_ context.Context, batch []Event) error {
			for _, evt := range batch {
				kinds = append(kinds, evt.Kind)
			}
			return nil
		}))

	evt := New(KindResourceToggled, ScopeGlobal, time.Unix(0, 0))
	evt.Key = "adblock"
	hub.Emit(evt)
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Println(kinds)
	// Output:
	// [RESOURCE_TOGGLED]
}
