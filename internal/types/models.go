// internal/types/models.go
package types

import (
	"encoding/json"
	"time"
)

// DefaultSessionTitle is the title given to conversations created on connect.
const DefaultSessionTitle = "New Chat Session"

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session is the persisted header of a conversation. Its turns are kept
// separately and only ever appended to.
type Session struct {
	ID        SessionID `json:"session_id"`
	Title     string    `json:"title"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	TurnCount int64     `json:"turn_count"`
}

// Turn is one immutable message in a conversation.
type Turn struct {
	Seq       int64     `json:"seq"`
	SessionID SessionID `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	At        time.Time `json:"at"`
}

// Title returns the short label stored alongside a turn.
func (t Turn) Title() string {
	if t.Role == RoleAssistant {
		return "LLM Response"
	}
	r := []rune(t.Content)
	if len(r) > 50 {
		r = r[:50]
	}
	return string(r)
}

// InboundEvent is a user message arriving from any transport.
type InboundEvent struct {
	Source     string          `json:"source"`
	SessionKey SessionKey      `json:"session_key"`
	UserID     string          `json:"user_id"`
	Text       string          `json:"text"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}
