package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/site-shields/internal/events"
)

// PrometheusSink counts applied changes by kind and scope.
type PrometheusSink struct {
	changes     *prometheus.CounterVec
	lastChange  prometheus.Gauge
	skippedSync prometheus.Counter
}

// NewPrometheusSink registers the collectors against reg, or the default
// registerer when reg is nil.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shields_setting_changes_total",
			Help: "Applied settings changes partitioned by kind and scope.",
		}, []string{"kind", "scope"}),
		lastChange: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shields_last_change_timestamp_seconds",
			Help: "Unix time of the most recently applied change.",
		}),
		skippedSync: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shields_skip_sync_changes_total",
			Help: "Changes flagged to be excluded from sync.",
		}),
	}
	for _, c := range []prometheus.Collector{s.changes, s.lastChange, s.skippedSync} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register events collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []events.Event) error {
	for _, evt := range batch {
		s.changes.WithLabelValues(string(evt.Kind), string(evt.Scope)).Inc()
		if evt.SkipSync {
			s.skippedSync.Inc()
		}
		if !evt.TS.IsZero() {
			s.lastChange.Set(float64(evt.TS.UnixNano()) / 1e9)
		}
	}
	return nil
}

// Close implements events.Sink.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
