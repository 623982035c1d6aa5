package scorestore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupDirect creates a Direct store over a fresh in-memory scoreboard.
func setupDirect(t *testing.T) (*Direct, *MemoryScoreboard) {
	t.Helper()
	board := NewMemoryScoreboard()
	return NewDirect(board), board
}

func TestDirectSetGet(t *testing.T) {
	store, _ := setupDirect(t)
	ctx := context.Background()

	t.Run("set creates the table lazily", func(t *testing.T) {
		err := store.Set(ctx, "players", 5, map[string]any{"name": "alex"})
		require.NoError(t, err)

		payload, err := store.Get(ctx, "players", 5)
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"alex"}`, string(payload))
	})

	t.Run("get from absent table is not found", func(t *testing.T) {
		_, err := store.Get(ctx, "nope", 1)
		assert.True(t, IsNotFound(err))
	})

	t.Run("get of absent id is not found", func(t *testing.T) {
		_, err := store.Get(ctx, "players", 999)
		assert.True(t, IsNotFound(err))
	})

	t.Run("oversized payload is rejected", func(t *testing.T) {
		big := make([]byte, MaxPayloadLen+10)
		for i := range big {
			big[i] = 'a'
		}
		err := store.Set(ctx, "players", 6, string(big))

		var tooLarge *EncodingTooLargeError
		assert.ErrorAs(t, err, &tooLarge)
	})
}

func TestDirectOverwrite(t *testing.T) {
	store, board := setupDirect(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "players", 5, "A"))
	require.NoError(t, store.Set(ctx, "players", 5, "B"))

	payload, err := store.Get(ctx, "players", 5)
	require.NoError(t, err)
	assert.Equal(t, `"B"`, string(payload))

	// The direct backend removes the old participant on overwrite; no
	// orphan remains.
	obj, err := board.GetObjective("players")
	require.NoError(t, err)
	participants, err := obj.Participants()
	require.NoError(t, err)
	assert.Len(t, participants, 1)
}

func TestDirectExists(t *testing.T) {
	store, _ := setupDirect(t)
	ctx := context.Background()

	exists, err := store.Exists(ctx, "players", 5)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Set(ctx, "players", 5, "A"))

	exists, err = store.Exists(ctx, "players", 5)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDirectDelete(t *testing.T) {
	store, _ := setupDirect(t)
	ctx := context.Background()

	t.Run("delete is verified", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "players", 5, "A"))
		require.NoError(t, store.Delete(ctx, "players", 5))

		exists, err := store.Exists(ctx, "players", 5)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("deleting an absent record succeeds", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, "players", 123))
	})

	t.Run("deleting from an absent table succeeds", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, "ghosts", 1))
	})
}

func TestDirectList(t *testing.T) {
	store, board := setupDirect(t)
	ctx := context.Background()

	t.Run("absent table lists empty", func(t *testing.T) {
		result, err := store.List(ctx, "nope")
		require.NoError(t, err)
		assert.Equal(t, 0, result.Count)
		assert.Empty(t, result.Items)
	})

	t.Run("lists all records", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "players", 1, map[string]any{"n": 1}))
		require.NoError(t, store.Set(ctx, "players", 2, map[string]any{"n": 2}))

		result, err := store.List(ctx, "players")
		require.NoError(t, err)
		assert.Equal(t, 2, result.Count)
	})

	t.Run("corrupt rows are skipped, not fatal", func(t *testing.T) {
		obj, err := board.GetObjective("players")
		require.NoError(t, err)
		require.NoError(t, obj.SetScore("this is not json", 99))

		result, err := store.List(ctx, "players")
		require.NoError(t, err)
		assert.Equal(t, 2, result.Count)
		assert.Equal(t, []int32{99}, result.Skipped)
		for _, rec := range result.Items {
			assert.NotEqual(t, int32(99), rec.ID)
			assert.True(t, json.Valid(rec.Payload))
		}
	})
}

func TestDirectClear(t *testing.T) {
	store, _ := setupDirect(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "players", 1, "A"))
	require.NoError(t, store.Set(ctx, "players", 2, "B"))
	require.NoError(t, store.Clear(ctx, "players"))

	result, err := store.List(ctx, "players")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Count)

	t.Run("clearing an absent table succeeds", func(t *testing.T) {
		assert.NoError(t, store.Clear(ctx, "ghosts"))
	})
}
