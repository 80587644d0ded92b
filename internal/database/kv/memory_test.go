package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/wordsync/internal/apperrors"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	value := []byte("v1")
	require.NoError(t, store.Put(ctx, "b", value))
	require.NoError(t, store.Put(ctx, "a", []byte("v2")))
	value[0] = 'X'

	got, err := store.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got), "stored values are copied")

	keys, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, store.Delete(ctx, "a"))
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, store.Truncate(ctx))
	count, _ = store.Count(ctx)
	assert.Zero(t, count)
}
