package models

import "time"

// TurnRole identifies the author of a conversation turn.
type TurnRole string

const (
	// RoleUser marks a turn authored by the caller
	RoleUser TurnRole = "user"

	// RoleAssistant marks a turn authored by the answer synthesizer
	RoleAssistant TurnRole = "assistant"
)

// ConversationTurn is a single message within a session. Turns are append-only
// and strictly chronological within their session.
type ConversationTurn struct {
	Role      TurnRole  `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is an isolated, ordered conversation history keyed by an opaque
// identifier. Sessions are created lazily on first reference and live for the
// lifetime of the session store unless an eviction sweep removes them.
type Session struct {
	ID         string             `json:"id"`
	Turns      []ConversationTurn `json:"turns"`
	CreatedAt  time.Time          `json:"created_at"`
	LastActive time.Time          `json:"last_active"`
}
