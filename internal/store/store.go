package store

import (
	"errors"
	"sync"
	"time"

	"intervue/voice/internal/types"
)

var (
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")
)

// maxEvents caps the per-session event log; the oldest entries are dropped
// and a single truncation marker is kept at the end.
const maxEvents = 200

const truncatedEvent = "events_truncated"

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*types.Session
	events   map[string][]types.Event
}

func New() *Store {
	return &Store{
		sessions: make(map[string]*types.Session),
		events:   make(map[string][]types.Event),
	}
}

func (s *Store) CreateSession(sess *types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return ErrSessionExists
	}
	s.sessions[sess.ID] = sess
	s.events[sess.ID] = []types.Event{}
	return nil
}

// GetSession returns a copy of the session, or nil.
func (s *Store) GetSession(id string) *types.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	return clone(sess)
}

// Update runs fn on the stored session under the write lock. fn must not
// block. A non-nil error from fn is returned as is; changes fn already made
// stay applied.
func (s *Store) Update(id string, fn func(*types.Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	return fn(sess)
}

func (s *Store) AppendEvent(sessionID, typ string, payload map[string]any) types.Event {
	evt := types.Event{Type: typ, Ts: time.Now().UTC(), Payload: payload}
	s.mu.Lock()
	defer s.mu.Unlock()
	log := append(s.events[sessionID], evt)
	if len(log) > maxEvents {
		log = truncate(sessionID, log)
	}
	s.events[sessionID] = log
	return evt
}

func (s *Store) ListEvents(sessionID string) []types.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.events[sessionID]
	out := make([]types.Event, len(src))
	copy(out, src)
	return out
}

func (s *Store) ListSessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		out = append(out, id)
	}
	return out
}

// truncate folds earlier markers into one and keeps the newest entries.
func truncate(sessionID string, log []types.Event) []types.Event {
	dropped := 0
	kept := make([]types.Event, 0, len(log))
	for _, e := range log {
		if e.Type == truncatedEvent {
			if n, ok := e.Payload["dropped"].(int); ok {
				dropped += n
			}
			continue
		}
		kept = append(kept, e)
	}
	keep := maxEvents - 1
	if len(kept) > keep {
		dropped += len(kept) - keep
		kept = kept[len(kept)-keep:]
	}
	return append(kept, types.Event{
		Type:    truncatedEvent,
		Ts:      time.Now().UTC(),
		Payload: map[string]any{"session_id": sessionID, "dropped": dropped, "kept": len(kept)},
	})
}

func clone(sess *types.Session) *types.Session {
	c := *sess
	c.History = append([]types.Message(nil), sess.History...)
	if sess.EndedAt != nil {
		t := *sess.EndedAt
		c.EndedAt = &t
	}
	return &c
}
