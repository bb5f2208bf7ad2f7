// Package store defines durable subscription persistence.
//
// Implementations guarantee atomic replace semantics: a crash between Put
// calls never yields a torn record visible to Get or List.
package store

import (
	"context"
	"errors"

	"github.com/odanko/outagebot/internal/address"
)

// ErrNotSubscribed reports an operation on a subscriber without a registered
// address.
var ErrNotSubscribed = errors.New("no address registered for this subscriber")

// Subscription is one subscriber's watched address plus monitoring state.
type Subscription struct {
	SubscriberID        string          `json:"subscriber_id"`
	Address             address.Address `json:"address"`
	LastMarker          string          `json:"last_marker"`
	LastUpdateTimestamp string          `json:"last_update_timestamp"`
	LastError           string          `json:"last_error"`
}

// Active reports whether this subscription is polled by the monitor.
func (s Subscription) Active() bool {
	return !s.Address.IsZero()
}

// ResetState clears monitoring state so the next poll always reports the
// current schedule once. Called when an address is registered or replaced.
func (s *Subscription) ResetState() {
	s.LastMarker = ""
	s.LastUpdateTimestamp = ""
	s.LastError = ""
}

// Store is the durable map from subscriber identity to Subscription.
type Store interface {
	// List returns a snapshot of all subscriptions; iteration order is
	// unspecified.
	List(ctx context.Context) ([]Subscription, error)

	// Get returns the subscription for id; ok is false when none exists.
	Get(ctx context.Context, id string) (sub Subscription, ok bool, err error)

	// Put fully replaces the record keyed by sub.SubscriberID.
	Put(ctx context.Context, sub Subscription) error

	// Delete removes the record; deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error
}
