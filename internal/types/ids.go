// internal/types/ids.go
package types

import (
	"strings"

	"github.com/google/uuid"
)

type SessionKey string
type SessionID string
type RunID string
type TaskID string

func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

func NewRunID() RunID {
	return RunID(uuid.New().String())
}

func NewTaskID() TaskID {
	return TaskID(uuid.New().String())
}

// NewSessionKey joins transport-specific parts into a stable key,
// e.g. "telegram:<user>:<chat>".
func NewSessionKey(parts ...string) SessionKey {
	return SessionKey(strings.Join(parts, ":"))
}

// SessionID maps a transport key onto the conversation it names. Keys are
// stable, so the same chat always resumes the same conversation.
func (k SessionKey) SessionID() SessionID {
	return SessionID(k)
}
