// Package store persists the multi-session registry as a single versioned
// JSON snapshot per feature. The plain-chat and vision features each open
// their own file; registries are never shared between them.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Anurag-122004/CIRC/internal/chat"
)

// SnapshotVersion tags the on-disk schema so future structural changes to
// Session can migrate old data instead of silently failing to parse.
const SnapshotVersion = 1

// ErrSessionNotFound is returned by Select for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

type snapshot struct {
	Version  int        `json:"version"`
	Sessions []*Session `json:"sessions"`
}

// Store is the durable multi-session registry. Sessions keep their insertion
// order; mutating a session does not move it.
type Store struct {
	path string

	mu       sync.Mutex
	sessions []*Session
	index    map[string]*Session
}

// Open creates a store backed by the snapshot file at path and loads whatever
// is already there. A missing or corrupted snapshot yields an empty registry,
// never an error: worst case the history works this run only.
func Open(path string) *Store {
	s := &Store{
		path:  path,
		index: map[string]*Session{},
	}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", s.path).Msg("read session snapshot failed, starting empty")
		}
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil || snap.Version == 0 {
		// The original frontends persisted a bare array with no schema tag.
		// Accept that shape and migrate it on the next save.
		var legacy []*Session
		if lerr := json.Unmarshal(data, &legacy); lerr != nil {
			log.Warn().Err(err).Str("path", s.path).Msg("corrupted session snapshot, starting empty")
			return
		}
		snap.Sessions = legacy
	}

	for _, sess := range snap.Sessions {
		if sess == nil || sess.ID == "" {
			continue
		}
		if sess.Messages == nil {
			sess.Messages = []chat.Message{}
		}
		s.sessions = append(s.sessions, sess)
		s.index[sess.ID] = sess
	}
}

// Save writes the whole registry snapshot. Last write wins; there is no merge.
func (s *Store) Save() error {
	s.mu.Lock()
	snap := snapshot{Version: SnapshotVersion, Sessions: make([]*Session, len(s.sessions))}
	for i, sess := range s.sessions {
		snap.Sessions[i] = sess.clone()
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("writing session snapshot: %w", err)
	}
	return nil
}

// Upsert creates the session if absent (with a generated title and an empty
// message list) or applies mutate to the existing one. Position in the
// registry is fixed at creation time.
func (s *Store) Upsert(id string, mutate func(*Session)) *Session {
	s.mu.Lock()
	sess, ok := s.index[id]
	if !ok {
		sess = newSession(id)
		s.sessions = append(s.sessions, sess)
		s.index[id] = sess
	}
	if mutate != nil {
		mutate(sess)
	}
	cp := sess.clone()
	s.mu.Unlock()
	return cp
}

// Select returns a copy of the session with the given id.
func (s *Store) Select(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess.clone(), nil
}

// Sessions returns the registry in insertion order.
func (s *Store) Sessions() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Session, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = sess.clone()
	}
	return out
}

// Len returns the number of sessions in the registry.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// FindByPrefix resolves a session by id prefix for the CLI. A minimum of four
// characters keeps accidental matches unlikely.
func (s *Store) FindByPrefix(prefix string) (*Session, error) {
	if len(prefix) < 4 {
		return nil, fmt.Errorf("session id prefix must be at least 4 characters (got %d)", len(prefix))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var match *Session
	for _, sess := range s.sessions {
		if len(sess.ID) >= len(prefix) && sess.ID[:len(prefix)] == prefix {
			if match != nil {
				return nil, fmt.Errorf("ambiguous session id prefix %q", prefix)
			}
			match = sess
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, prefix)
	}
	return match.clone(), nil
}
