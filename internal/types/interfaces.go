// internal/types/interfaces.go
package types

import "context"

// ConversationStore persists sessions and their ordered turn history.
// Implementations must be safe for concurrent use across sessions.
type ConversationStore interface {
	// CreateSession creates a session under id, or under a fresh id when id
	// is empty. Creating an id that already exists returns the existing
	// session with created=false.
	CreateSession(ctx context.Context, id SessionID, title string) (sess *Session, created bool, err error)
	// GetSession returns ErrSessionNotFound for unknown ids.
	GetSession(ctx context.Context, id SessionID) (*Session, error)
	ListSessions(ctx context.Context) ([]*Session, error)
	DeleteSession(ctx context.Context, id SessionID) error

	// AppendTurn assigns the next sequence number and stores the turn.
	AppendTurn(ctx context.Context, turn *Turn) error
	// ListTurns returns every turn of the session in append order.
	ListTurns(ctx context.Context, id SessionID) ([]*Turn, error)
}
