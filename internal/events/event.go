// Package events defines the monitoring events emitted by poll cycles and
// the hub that fans them out to observability sinks.
//
// Events are observability-only: user-facing notifications are delivered
// synchronously by the monitor and never ride this lossy path.
package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported stages.
const (
	StageCycleStart   Stage = "CYCLE_START"
	StageCycleDone    Stage = "CYCLE_DONE"
	StagePollOK       Stage = "POLL_OK"
	StagePollChange   Stage = "POLL_CHANGE"
	StagePollError    Stage = "POLL_ERROR"
	StageNotifySent   Stage = "NOTIFY_SENT"
	StageNotifyFailed Stage = "NOTIFY_FAILED"
)

// Event captures a single monitoring milestone.
type Event struct {
	// CycleID identifies the poll cycle this event belongs to (16-byte UUID).
	CycleID [16]byte
	// TS is the timestamp recorded by the emitter.
	TS time.Time
	// Stage is the milestone kind.
	Stage Stage
	// SubscriberID scopes poll/notify events to one subscription.
	SubscriberID string
	// Street is the polled street for poll events.
	Street string
	// Marker is the fingerprint observed by a successful poll.
	Marker string
	// Subscriptions is the number of active subscriptions in a cycle event.
	Subscriptions int
	// Dur is the execution latency of the poll or the whole cycle.
	Dur time.Duration
	// Note carries low-volume context, typically error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.CycleID == [16]byte{} {
		return errors.New("cycle id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageCycleStart, StageCycleDone:
	case StagePollOK, StagePollChange, StagePollError, StageNotifySent, StageNotifyFailed:
		if e.SubscriberID == "" {
			return fmt.Errorf("%s requires subscriber id", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// CycleUUID converts the binary cycle ID to uuid.UUID.
func (e Event) CycleUUID() uuid.UUID {
	return uuid.UUID(e.CycleID)
}

// NewCycleID produces a fresh cycle identifier in Event form.
func NewCycleID() [16]byte {
	id := uuid.New()
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
