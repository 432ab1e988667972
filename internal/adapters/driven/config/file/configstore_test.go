package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, s *ConfigStore, key string) any {
	t.Helper()
	v, ok := s.Get(key)
	require.True(t, ok, "missing %s", key)
	return v
}

func TestNewConfigStore_Path(t *testing.T) {
	dir := t.TempDir()

	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())
}

func TestNewConfigStore_RagbotHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RAGBOT_HOME", dir)

	store, err := NewConfigStore("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())
}

func TestConfigStore_ReadsTablesAsDottedKeys(t *testing.T) {
	dir := t.TempDir()
	content := `
[chunking]
size = 800

[retrieval]
lambda = 0.7
diversity = false

[embedding]
providers = ["openai", "gemini", "local"]

[providers.ollama]
base_url = "http://gpu-box:11434"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, int64(800), get(t, store, "chunking.size"))
	assert.Equal(t, 0.7, get(t, store, "retrieval.lambda"))
	assert.Equal(t, false, get(t, store, "retrieval.diversity"))
	assert.Equal(t, []any{"openai", "gemini", "local"}, get(t, store, "embedding.providers"))
	assert.Equal(t, "http://gpu-box:11434", get(t, store, "providers.ollama.base_url"))
}

func TestConfigStore_SetWritesTables(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("retrieval.k", int64(6)))
	require.NoError(t, store.Set("storage.backend", "memory"))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[retrieval]")
	assert.Contains(t, string(raw), "[storage]")

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(6), get(t, reloaded, "retrieval.k"))
	assert.Equal(t, "memory", get(t, reloaded, "storage.backend"))
}

func TestConfigStore_Unset(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set("watch.dir", "/docs"))

	require.NoError(t, store.Unset("watch.dir"))
	require.NoError(t, store.Unset("watch.dir"))

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	_, ok := reloaded.Get("watch.dir")
	assert.False(t, ok)
}

func TestConfigStore_LoadEmptyFile(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(store.Path(), nil, 0o600))
	require.NoError(t, store.Load())
	_, ok := store.Get("anything")
	assert.False(t, ok)
}

func TestNewConfigStore_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[[not toml"), 0o600))

	_, err := NewConfigStore(dir)
	assert.Error(t, err)
}

func TestConfigStore_ConcurrentAccess(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = store.Set("n", int64(i))
		}(i)
		go func() {
			defer wg.Done()
			_, _ = store.Get("n")
		}()
	}
	wg.Wait()
}

func TestFlattenNest(t *testing.T) {
	tree := map[string]any{
		"a": map[string]any{"b": int64(1), "c": map[string]any{"d": "x"}},
		"e": true,
	}
	flat := map[string]any{}
	flatten(flat, "", tree)

	assert.Equal(t, map[string]any{"a.b": int64(1), "a.c.d": "x", "e": true}, flat)
	assert.Equal(t, tree, nest(flat))
}
