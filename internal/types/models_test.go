// internal/types/models_test.go
package types

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTurnTitle(t *testing.T) {
	long := strings.Repeat("é", 80)
	assert.Equal(t, strings.Repeat("é", 50), Turn{Role: RoleUser, Content: long}.Title())
	assert.Equal(t, "short", Turn{Role: RoleUser, Content: "short"}.Title())
	assert.Equal(t, "LLM Response", Turn{Role: RoleAssistant, Content: long}.Title())
}

func TestErrorKindsWrap(t *testing.T) {
	err := fmt.Errorf("expanding query: %w", ErrEmptyResponse)
	assert.True(t, errors.Is(err, ErrEmptyResponse))
	assert.False(t, errors.Is(err, ErrUpstreamError))
}
