package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_SeedIsCopied(t *testing.T) {
	seed := map[string]any{"chunking.size": int64(300)}
	store := NewConfigStore(seed)
	seed["chunking.size"] = 1

	v, ok := store.Get("chunking.size")
	assert.True(t, ok)
	assert.Equal(t, int64(300), v)
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_SetAndUnset(t *testing.T) {
	store := NewConfigStore(nil)

	require.NoError(t, store.Set("retrieval.k", 8))
	v, _ := store.Get("retrieval.k")
	assert.Equal(t, 8, v)

	require.NoError(t, store.Unset("retrieval.k"))
	_, ok := store.Get("retrieval.k")
	assert.False(t, ok)

	assert.NoError(t, store.Unset("never.set"))
}
