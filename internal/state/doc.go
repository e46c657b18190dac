// Package state provides filesystem-backed storage implementations.
// The SQL-backed conversation store lives in state/sqlite.
package state

import "github.com/user/gophersearch/internal/types"

// Compile-time interface compliance checks.
var _ types.ConversationStore = (*FileStore)(nil)
