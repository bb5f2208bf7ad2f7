// Package monitor runs the fixed-cadence poll loop that detects schedule
// changes for every active subscription and notifies each subscriber exactly
// once per change.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/odanko/outagebot/internal/events"
	"github.com/odanko/outagebot/internal/schedule"
	"github.com/odanko/outagebot/internal/store"
)

// Fetcher retrieves the current shutdown schedule for a street.
type Fetcher interface {
	FetchSchedule(ctx context.Context, street string) (*schedule.Payload, error)
}

// Notifier delivers a message to a subscriber.
type Notifier interface {
	Send(ctx context.Context, subscriberID, text string) error
}

// Formatter renders subscriber-facing messages from poll results.
type Formatter interface {
	FormatChange(sub store.Subscription, payload *schedule.Payload) string
	FormatError(sub store.Subscription, errText string) string
}

// Config controls the poll loop cadence and parallelism.
type Config struct {
	// PollInterval is the fixed cadence between cycle starts (default 5m).
	PollInterval time.Duration
	// InitialDelay postpones the first cycle after startup (default 15s).
	InitialDelay time.Duration
	// Concurrency bounds simultaneous polls within a cycle (default 2).
	Concurrency int
}

const (
	defaultPollInterval = 5 * time.Minute
	defaultInitialDelay = 15 * time.Second
	defaultConcurrency  = 2
)

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.InitialDelay < 0 {
		c.InitialDelay = defaultInitialDelay
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
}

// Monitor owns the cycle loop. One Monitor serves all subscriptions.
type Monitor struct {
	cfg       Config
	store     store.Store
	fetcher   Fetcher
	notifier  Notifier
	formatter Formatter
	emitter   events.Emitter
	logger    *zap.Logger
}

// New assembles a Monitor. All collaborators are required except emitter and
// logger, which default to no-ops.
func New(cfg Config, st store.Store, fetcher Fetcher, notifier Notifier, formatter Formatter, emitter events.Emitter, logger *zap.Logger) (*Monitor, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if formatter == nil {
		return nil, errors.New("formatter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	return &Monitor{
		cfg:       cfg,
		store:     st,
		fetcher:   fetcher,
		notifier:  notifier,
		formatter: formatter,
		emitter:   emitter,
		logger:    logger,
	}, nil
}

// Run blocks until ctx is cancelled, executing one poll cycle per tick. The
// cadence is fixed: a slow cycle does not shift subsequent tick times.
func (m *Monitor) Run(ctx context.Context) error {
	if m.cfg.InitialDelay > 0 {
		select {
		case <-time.After(m.cfg.InitialDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.RunCycle(ctx)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.RunCycle(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunCycle performs one full poll pass over every active subscription.
// Failures are contained per subscription; the cycle always completes.
func (m *Monitor) RunCycle(ctx context.Context) {
	cycleID := events.NewCycleID()
	started := time.Now()

	subs, err := m.store.List(ctx)
	if err != nil {
		m.logger.Error("listing subscriptions failed", zap.Error(err))
		return
	}
	active := make([]store.Subscription, 0, len(subs))
	for _, sub := range subs {
		if sub.Active() {
			active = append(active, sub)
		}
	}

	m.emit(events.Event{
		CycleID:       cycleID,
		TS:            started,
		Stage:         events.StageCycleStart,
		Subscriptions: len(active),
	})

	sem := make(chan struct{}, m.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, sub := range active {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(sub store.Subscription) {
			defer wg.Done()
			defer func() { <-sem }()
			m.pollOne(ctx, cycleID, sub)
		}(sub)
	}
	wg.Wait()

	m.emit(events.Event{
		CycleID: cycleID,
		TS:      time.Now(),
		Stage:   events.StageCycleDone,
		Dur:     time.Since(started),
	})
}

// CheckNow performs an immediate fetch for one subscriber and returns the
// rendered schedule without touching change-detection state.
func (m *Monitor) CheckNow(ctx context.Context, subscriberID string) (string, error) {
	sub, ok, err := m.store.Get(ctx, subscriberID)
	if err != nil {
		return "", fmt.Errorf("loading subscription: %w", err)
	}
	if !ok || !sub.Active() {
		return "", store.ErrNotSubscribed
	}
	payload, err := m.fetcher.FetchSchedule(ctx, sub.Address.Street)
	if err != nil {
		return "", fmt.Errorf("fetching schedule: %w", err)
	}
	return m.formatter.FormatChange(sub, payload), nil
}

func (m *Monitor) pollOne(ctx context.Context, cycleID [16]byte, sub store.Subscription) {
	started := time.Now()
	payload, err := m.fetcher.FetchSchedule(ctx, sub.Address.Street)
	dur := time.Since(started)

	if err != nil {
		m.handlePollError(ctx, cycleID, sub, err, dur)
		return
	}

	marker := schedule.Marker(payload)
	changed := marker != sub.LastMarker
	errorCleared := sub.LastError != ""

	if !changed && !errorCleared {
		m.emit(events.Event{
			CycleID:      cycleID,
			TS:           time.Now(),
			Stage:        events.StagePollOK,
			SubscriberID: sub.SubscriberID,
			Street:       sub.Address.Street,
			Marker:       marker,
			Dur:          dur,
		})
		return
	}

	// Re-read before writing so concurrent updates (for example a fresh
	// /set from the bot) are lost for at most one cycle. A record whose
	// address no longer matches the one polled belongs to a new
	// registration; its reset state must survive, so this result is
	// discarded.
	fresh, ok, err := m.store.Get(ctx, sub.SubscriberID)
	if err != nil || !ok || !fresh.Active() || fresh.Address != sub.Address {
		if err != nil {
			m.logger.Error("reloading subscription failed",
				zap.String("subscriber_id", sub.SubscriberID), zap.Error(err))
		}
		return
	}
	fresh.LastMarker = marker
	fresh.LastUpdateTimestamp = payload.UpdateTimestamp
	fresh.LastError = ""
	if err := m.store.Put(ctx, fresh); err != nil {
		// State must be durable before the subscriber hears about it,
		// otherwise a crash would repeat the notification.
		m.logger.Error("persisting subscription state failed",
			zap.String("subscriber_id", sub.SubscriberID), zap.Error(err))
		return
	}

	stage := events.StagePollOK
	if changed {
		stage = events.StagePollChange
	}
	m.emit(events.Event{
		CycleID:      cycleID,
		TS:           time.Now(),
		Stage:        stage,
		SubscriberID: sub.SubscriberID,
		Street:       sub.Address.Street,
		Marker:       marker,
		Dur:          dur,
	})

	if changed {
		text := m.formatter.FormatChange(fresh, payload)
		m.notify(ctx, cycleID, fresh, text)
	}
}

func (m *Monitor) handlePollError(ctx context.Context, cycleID [16]byte, sub store.Subscription, pollErr error, dur time.Duration) {
	errText := pollErr.Error()
	if errText == sub.LastError {
		// Same failure as last cycle: stay quiet until it changes shape
		// or the fetch recovers.
		return
	}

	fresh, ok, err := m.store.Get(ctx, sub.SubscriberID)
	if err != nil || !ok || !fresh.Active() || fresh.Address != sub.Address {
		if err != nil {
			m.logger.Error("reloading subscription failed",
				zap.String("subscriber_id", sub.SubscriberID), zap.Error(err))
		}
		return
	}
	fresh.LastError = errText
	if err := m.store.Put(ctx, fresh); err != nil {
		m.logger.Error("persisting subscription state failed",
			zap.String("subscriber_id", sub.SubscriberID), zap.Error(err))
		return
	}

	m.emit(events.Event{
		CycleID:      cycleID,
		TS:           time.Now(),
		Stage:        events.StagePollError,
		SubscriberID: sub.SubscriberID,
		Street:       sub.Address.Street,
		Dur:          dur,
		Note:         errText,
	})

	text := m.formatter.FormatError(fresh, errText)
	m.notify(ctx, cycleID, fresh, text)
}

func (m *Monitor) notify(ctx context.Context, cycleID [16]byte, sub store.Subscription, text string) {
	stage := events.StageNotifySent
	if err := m.notifier.Send(ctx, sub.SubscriberID, text); err != nil {
		stage = events.StageNotifyFailed
		m.logger.Warn("notification delivery failed",
			zap.String("subscriber_id", sub.SubscriberID), zap.Error(err))
	}
	m.emit(events.Event{
		CycleID:      cycleID,
		TS:           time.Now(),
		Stage:        stage,
		SubscriberID: sub.SubscriberID,
		Street:       sub.Address.Street,
	})
}

func (m *Monitor) emit(evt events.Event) {
	if m.emitter == nil {
		return
	}
	m.emitter.Emit(evt)
}
