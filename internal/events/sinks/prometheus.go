package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/odanko/outagebot/internal/events"
)

// PrometheusSink exports monitoring metrics. It owns all collectors for
// cycles, per-subscription polls and notification deliveries.
type PrometheusSink struct {
	cycles        prometheus.Counter
	cycleDuration prometheus.Histogram
	activeSubs    prometheus.Gauge
	polls         *prometheus.CounterVec
	pollDuration  *prometheus.HistogramVec
	notifications *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outagebot_cycles_total",
			Help: "Total completed poll cycles.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "outagebot_cycle_duration_seconds",
			Help:    "Wall time per completed poll cycle.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		activeSubs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outagebot_active_subscriptions",
			Help: "Active subscriptions seen at the start of the last cycle.",
		}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outagebot_polls_total",
			Help: "Per-subscription poll completions partitioned by outcome.",
		}, []string{"outcome"}),
		pollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "outagebot_poll_duration_seconds",
			Help:    "Poll duration partitioned by outcome.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outagebot_notifications_total",
			Help: "Notification deliveries partitioned by result.",
		}, []string{"result"}),
	}
	for _, collector := range []prometheus.Collector{
		s.cycles,
		s.cycleDuration,
		s.activeSubs,
		s.polls,
		s.pollDuration,
		s.notifications,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register monitor collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []events.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt events.Event) {
	switch evt.Stage {
	case events.StageCycleStart:
		s.activeSubs.Set(float64(evt.Subscriptions))
	case events.StageCycleDone:
		s.cycles.Inc()
		if evt.Dur > 0 {
			s.cycleDuration.Observe(evt.Dur.Seconds())
		}
	case events.StagePollOK:
		s.observePoll(evt, "unchanged")
	case events.StagePollChange:
		s.observePoll(evt, "changed")
	case events.StagePollError:
		s.observePoll(evt, "error")
	case events.StageNotifySent:
		s.notifications.WithLabelValues("sent").Inc()
	case events.StageNotifyFailed:
		s.notifications.WithLabelValues("failed").Inc()
	}
}

func (s *PrometheusSink) observePoll(evt events.Event, outcome string) {
	s.polls.WithLabelValues(outcome).Inc()
	if evt.Dur > 0 {
		s.pollDuration.WithLabelValues(outcome).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
