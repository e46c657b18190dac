// Package storetest holds behaviour tests shared by every
// types.ConversationStore implementation.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/gophersearch/internal/types"
)

// Run exercises store semantics against a fresh store from newStore.
func Run(t *testing.T, newStore func(t *testing.T) types.ConversationStore) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("CreateGeneratesID", func(t *testing.T) { testCreateGeneratesID(t, newStore(t)) })
	t.Run("GetUnknown", func(t *testing.T) { testGetUnknown(t, newStore(t)) })
	t.Run("AppendOrder", func(t *testing.T) { testAppendOrder(t, newStore(t)) })
	t.Run("AppendUnknownSession", func(t *testing.T) { testAppendUnknown(t, newStore(t)) })
	t.Run("ConcurrentAppends", func(t *testing.T) { testConcurrentAppends(t, newStore(t)) })
	t.Run("ListAndDelete", func(t *testing.T) { testListAndDelete(t, newStore(t)) })
	t.Run("OddIDs", func(t *testing.T) { testOddIDs(t, newStore(t)) })
}

func testCreateAndGet(t *testing.T, store types.ConversationStore) {
	ctx := context.Background()

	sess, created, err := store.CreateSession(ctx, "42", "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, types.SessionID("42"), sess.ID)
	assert.Equal(t, types.DefaultSessionTitle, sess.Title)

	again, created, err := store.CreateSession(ctx, "42", "ignored")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, types.DefaultSessionTitle, again.Title)

	got, err := store.GetSession(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.False(t, got.CreatedAt.IsZero())
}

func testCreateGeneratesID(t *testing.T, store types.ConversationStore) {
	sess, created, err := store.CreateSession(context.Background(), "", "Research")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, string(sess.ID), 36)
	assert.Equal(t, "Research", sess.Title)
}

func testGetUnknown(t *testing.T, store types.ConversationStore) {
	ctx := context.Background()

	_, err := store.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrSessionNotFound)

	_, err = store.ListTurns(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrSessionNotFound)
}

func testAppendOrder(t *testing.T, store types.ConversationStore) {
	ctx := context.Background()
	_, _, err := store.CreateSession(ctx, "s1", "")
	require.NoError(t, err)

	turns, err := store.ListTurns(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, turns)

	contents := []string{"hello", "hi there", "what is RRF?", "Reciprocal Rank Fusion..."}
	for i, c := range contents {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAssistant
		}
		turn := &types.Turn{SessionID: "s1", Role: role, Content: c}
		require.NoError(t, store.AppendTurn(ctx, turn))
		assert.Equal(t, int64(i+1), turn.Seq)
	}

	turns, err = store.ListTurns(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, len(contents))
	for i, turn := range turns {
		assert.Equal(t, contents[i], turn.Content)
		assert.Equal(t, int64(i+1), turn.Seq)
		assert.False(t, turn.At.IsZero())
	}
	assert.Equal(t, types.RoleAssistant, turns[1].Role)

	sess, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), sess.TurnCount)
}

func testAppendUnknown(t *testing.T, store types.ConversationStore) {
	err := store.AppendTurn(context.Background(), &types.Turn{SessionID: "nope", Role: types.RoleUser, Content: "x"})
	assert.ErrorIs(t, err, types.ErrSessionNotFound)
}

func testConcurrentAppends(t *testing.T, store types.ConversationStore) {
	ctx := context.Background()
	for _, id := range []types.SessionID{"a", "b"} {
		_, _, err := store.CreateSession(ctx, id, "")
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := types.SessionID("a")
			if i%2 == 1 {
				id = "b"
			}
			assert.NoError(t, store.AppendTurn(ctx, &types.Turn{SessionID: id, Role: types.RoleUser, Content: fmt.Sprint(i)}))
		}(i)
	}
	wg.Wait()

	for _, id := range []types.SessionID{"a", "b"} {
		turns, err := store.ListTurns(ctx, id)
		require.NoError(t, err)
		require.Len(t, turns, 10)
		for i, turn := range turns {
			assert.Equal(t, int64(i+1), turn.Seq)
		}
	}
}

func testListAndDelete(t *testing.T, store types.ConversationStore) {
	ctx := context.Background()
	for _, id := range []types.SessionID{"one", "two"} {
		_, _, err := store.CreateSession(ctx, id, "")
		require.NoError(t, err)
	}
	require.NoError(t, store.AppendTurn(ctx, &types.Turn{SessionID: "one", Role: types.RoleUser, Content: "x"}))

	list, err := store.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, types.SessionID("one"), list[0].ID, "most recently updated first")

	require.NoError(t, store.DeleteSession(ctx, "one"))
	_, err = store.GetSession(ctx, "one")
	assert.ErrorIs(t, err, types.ErrSessionNotFound)
	assert.ErrorIs(t, store.DeleteSession(ctx, "one"), types.ErrSessionNotFound)

	list, err = store.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func testOddIDs(t *testing.T, store types.ConversationStore) {
	ctx := context.Background()
	for _, id := range []types.SessionID{"telegram:1:2", "../escape", "a/b"} {
		_, _, err := store.CreateSession(ctx, id, "")
		require.NoError(t, err)
		require.NoError(t, store.AppendTurn(ctx, &types.Turn{SessionID: id, Role: types.RoleUser, Content: string(id)}))

		turns, err := store.ListTurns(ctx, id)
		require.NoError(t, err)
		require.Len(t, turns, 1)
		assert.Equal(t, string(id), turns[0].Content)
	}
}
