package sessions

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondo/internal/models"
)

// entry pairs a session with its request lock. reqMu serializes the whole
// ask pipeline for one session; session data itself is guarded by the
// store's map lock, so Append and History stay callable under reqMu.
type entry struct {
	reqMu   sync.Mutex
	session *models.Session
}

// Store is an in-memory session store. A global mutex guards the session
// map and turn data; a per-session mutex serializes request handling within
// one session so different sessions never block each other.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	logger  arbor.ILogger
}

// NewStore creates an empty session store
func NewStore(logger arbor.ILogger) *Store {
	return &Store{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// getOrCreateEntry returns the entry for the given ID, creating it on first
// reference.
func (s *Store) getOrCreateEntry(sessionID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sessionID]
	if !ok {
		now := time.Now().UTC()
		e = &entry{
			session: &models.Session{
				ID:         sessionID,
				CreatedAt:  now,
				LastActive: now,
			},
		}
		s.entries[sessionID] = e
		s.logger.Debug().Str("session_id", sessionID).Msg("Session created")
	}
	return e
}

// GetOrCreate returns the session for the given ID, creating an empty one
// on first reference.
func (s *Store) GetOrCreate(sessionID string) *models.Session {
	return s.getOrCreateEntry(sessionID).session
}

// History returns a snapshot of the session's turns in append order.
// A missing session yields an empty history.
func (s *Store) History(sessionID string) []models.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sessionID]
	if !ok {
		return nil
	}

	turns := make([]models.ConversationTurn, len(e.session.Turns))
	copy(turns, e.session.Turns)
	return turns
}

// Append adds a turn to the end of the session's history and refreshes the
// session's last-active time.
func (s *Store) Append(sessionID string, turn models.ConversationTurn) {
	e := s.getOrCreateEntry(sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()

	e.session.Turns = append(e.session.Turns, turn)
	e.session.LastActive = time.Now().UTC()
}

// WithLock runs fn while holding the session's request lock, serializing
// concurrent requests against the same session ID. fn may call History and
// Append on the same store.
func (s *Store) WithLock(sessionID string, fn func() error) error {
	e := s.getOrCreateEntry(sessionID)

	e.reqMu.Lock()
	defer e.reqMu.Unlock()

	return fn()
}

// Count reports the number of live sessions
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Reset discards all sessions
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.entries)
	s.entries = make(map[string]*entry)

	s.logger.Info().Int("discarded", count).Msg("Session store reset")
}

// SweepIdle removes sessions whose last activity is older than ttl.
// Returns the number of sessions removed.
func (s *Store) SweepIdle(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}

	cutoff := time.Now().UTC().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if e.session.LastActive.Before(cutoff) {
			delete(s.entries, id)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info().Int("removed", removed).Dur("ttl", ttl).Msg("Idle sessions swept")
	}
	return removed
}
