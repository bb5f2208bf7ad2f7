// Package file persists subscriptions as one JSON document with atomic
// whole-file replacement: every write lands in a temp file in the same
// directory and is renamed over the live one, so a crash mid-write never
// exposes a torn document.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/odanko/outagebot/internal/store"
)

// envelopeVersion is bumped when the on-disk shape changes; older documents
// without the field load as version 0 and are rewritten on the next Put.
const envelopeVersion = 1

type envelope struct {
	Version       int                           `json:"version"`
	Subscriptions map[string]store.Subscription `json:"subscriptions"`
}

// Store is a file-backed subscription store. Safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	path string
	subs map[string]store.Subscription
}

// Open loads the document at path, creating parent directories as needed.
// A missing file is an empty store.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path must not be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	s := &Store{path: path, subs: make(map[string]store.Subscription)}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read store file: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode store file %s: %w", path, err)
	}
	if env.Subscriptions != nil {
		s.subs = env.Subscriptions
	}
	return s, nil
}

// List returns a snapshot of all subscriptions.
func (s *Store) List(context.Context) ([]store.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	return out, nil
}

// Get returns the subscription for id.
func (s *Store) Get(_ context.Context, id string) (store.Subscription, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	return sub, ok, nil
}

// Put replaces the record for sub.SubscriberID and rewrites the document.
func (s *Store) Put(_ context.Context, sub store.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.subs[sub.SubscriberID]
	s.subs[sub.SubscriberID] = sub
	if err := s.flushLocked(); err != nil {
		// Keep memory and disk consistent so an unpersisted update is not
		// observable as applied.
		if had {
			s.subs[sub.SubscriberID] = prev
		} else {
			delete(s.subs, sub.SubscriberID)
		}
		return err
	}
	return nil
}

// Delete removes the record for id and rewrites the document.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.subs[id]
	if !had {
		return nil
	}
	delete(s.subs, id)
	if err := s.flushLocked(); err != nil {
		s.subs[id] = prev
		return err
	}
	return nil
}

func (s *Store) flushLocked() error {
	raw, err := json.MarshalIndent(envelope{
		Version:       envelopeVersion,
		Subscriptions: s.subs,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp store file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}
