package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubSink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  bool
}

func (s *stubSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := append([]Event(nil), batch...)
	s.batches = append(s.batches, copied)
	return nil
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) totalEvents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func (s *stubSink) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func (s *stubSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func testEvent(stage Stage, sub string) Event {
	return Event{
		CycleID:      NewCycleID(),
		TS:           time.Now(),
		Stage:        stage,
		SubscriberID: sub,
	}
}

func TestHubBatchBySize(t *testing.T) {
	t.Parallel()

	sink := &stubSink{}
	hub := NewHub(Config{
		BufferSize:     64,
		MaxBatchEvents: 4,
		MaxBatchWait:   time.Hour,
	}, sink)

	for i := 0; i < 4; i++ {
		hub.Emit(testEvent(StagePollOK, "sub-1"))
	}

	require.Eventually(t, func() bool {
		return sink.totalEvents() == 4
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 1, sink.batchCount())

	require.NoError(t, hub.Close(context.Background()))
}

func TestHubBatchByTimer(t *testing.T) {
	t.Parallel()

	sink := &stubSink{}
	hub := NewHub(Config{
		BufferSize:     64,
		MaxBatchEvents: 100,
		MaxBatchWait:   50 * time.Millisecond,
	}, sink)

	hub.Emit(testEvent(StageCycleStart, ""))
	hub.Emit(testEvent(StageCycleDone, ""))

	require.Eventually(t, func() bool {
		return sink.totalEvents() == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Close(context.Background()))
}

func TestHubFlushOnClose(t *testing.T) {
	t.Parallel()

	sink := &stubSink{}
	hub := NewHub(Config{
		BufferSize:     64,
		MaxBatchEvents: 100,
		MaxBatchWait:   time.Hour,
	}, sink)

	hub.Emit(testEvent(StagePollChange, "sub-1"))
	hub.Emit(testEvent(StageNotifySent, "sub-1"))

	require.NoError(t, hub.Close(context.Background()))
	require.Equal(t, 2, sink.totalEvents())
	require.True(t, sink.isClosed())
}

func TestHubDropsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &stubSink{}
	hub := NewHub(Config{MaxBatchWait: 20 * time.Millisecond}, sink)

	// Poll events without a subscriber ID fail validation.
	hub.Emit(Event{CycleID: NewCycleID(), TS: time.Now(), Stage: StagePollOK})
	hub.Emit(Event{Stage: StageCycleStart})

	require.NoError(t, hub.Close(context.Background()))
	require.Zero(t, sink.totalEvents())
}

func TestHubEmitNeverBlocks(t *testing.T) {
	t.Parallel()

	blocker := make(chan struct{})
	slow := sinkFunc(func(ctx context.Context, _ []Event) error {
		select {
		case <-blocker:
		case <-ctx.Done():
		}
		return nil
	})
	hub := NewHub(Config{
		BufferSize:     2,
		MaxBatchEvents: 1,
		MaxBatchWait:   time.Millisecond,
		SinkTimeout:    time.Hour,
	}, slow)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			hub.Emit(testEvent(StagePollOK, "sub-1"))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked under backpressure")
	}
	close(blocker)
	require.NoError(t, hub.Close(context.Background()))
}

func TestHubEmitAfterClose(t *testing.T) {
	t.Parallel()

	sink := &stubSink{}
	hub := NewHub(Config{}, sink)
	require.NoError(t, hub.Close(context.Background()))

	hub.Emit(testEvent(StagePollOK, "sub-1"))
	require.Zero(t, sink.totalEvents())
}

type sinkFunc func(ctx context.Context, batch []Event) error

func (f sinkFunc) Consume(ctx context.Context, batch []Event) error { return f(ctx, batch) }
func (f sinkFunc) Close(context.Context) error                      { return nil }
