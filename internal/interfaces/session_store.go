package interfaces

import (
	"github.com/ternarybob/respondo/internal/models"
)

// SessionStore maps session identifiers to ordered conversation histories.
// Sessions are created lazily on first reference. Appends within one session
// are serialized; different sessions never block each other.
type SessionStore interface {
	// GetOrCreate returns the session for the given ID, creating an empty one
	// on first reference.
	GetOrCreate(sessionID string) *models.Session

	// History returns a snapshot of the session's turns in append order.
	// A missing session yields an empty history.
	History(sessionID string) []models.ConversationTurn

	// Append adds a turn to the end of the session's history.
	Append(sessionID string, turn models.ConversationTurn)

	// WithLock runs fn while holding the session's lock, serializing
	// concurrent requests against the same session ID.
	WithLock(sessionID string, fn func() error) error

	// Count reports the number of live sessions.
	Count() int

	// Reset discards all sessions.
	Reset()
}
