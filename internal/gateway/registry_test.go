package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/user/gophersearch/internal/types"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", "s-b")
	r.Register("c2", "s-a")
	r.Register("c3", "s-b")

	id, ok := r.Lookup("c3")
	assert.True(t, ok)
	assert.Equal(t, types.SessionID("s-b"), id)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []types.SessionID{"s-a", "s-b"}, r.Sessions())

	r.Unregister("c1")
	r.Unregister("c3")
	_, ok = r.Lookup("c3")
	assert.False(t, ok)
	assert.Equal(t, []types.SessionID{"s-a"}, r.Sessions())
}
