// Package memory provides an in-memory subscription store for tests and
// local development.
package memory

import (
	"context"
	"sync"

	"github.com/odanko/outagebot/internal/store"
)

// Store keeps subscriptions in a map. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	subs map[string]store.Subscription
}

// New creates an empty Store.
func New() *Store {
	return &Store{subs: make(map[string]store.Subscription)}
}

// List returns a snapshot of all subscriptions.
func (s *Store) List(context.Context) ([]store.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	return out, nil
}

// Get returns the subscription for id.
func (s *Store) Get(_ context.Context, id string) (store.Subscription, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[id]
	return sub, ok, nil
}

// Put replaces the record for sub.SubscriberID.
func (s *Store) Put(_ context.Context, sub store.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.SubscriberID] = sub
	return nil
}

// Delete removes the record for id.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
	return nil
}
