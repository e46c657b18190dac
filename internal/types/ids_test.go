// internal/types/ids_test.go
package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSessionID(t *testing.T) {
	id := NewSessionID()
	assert.Len(t, string(id), 36)
	assert.NotEqual(t, id, NewSessionID())
}

func TestSessionKeyFormat(t *testing.T) {
	key := NewSessionKey("telegram", "123", "456")
	assert.Equal(t, SessionKey("telegram:123:456"), key)
	assert.Equal(t, SessionID("telegram:123:456"), key.SessionID())
}
