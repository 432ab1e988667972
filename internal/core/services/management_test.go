package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
)

func newManagement(env *ingestEnv) *ManagementService {
	return NewManagementService(env.svc, env.index, env.docs)
}

func TestManagement_DeleteThenStats(t *testing.T) {
	env := newIngestEnv(t)
	mgmt := newManagement(env)
	ctx := context.Background()

	_, err := env.svc.Ingest(ctx, writeFile(t, env.dir, "keep.txt", longText(3)))
	require.NoError(t, err)

	before, err := mgmt.Stats(ctx)
	require.NoError(t, err)

	added, err := env.svc.Ingest(ctx, writeFile(t, env.dir, "policy.txt", longText(9)))
	require.NoError(t, err)

	during, err := mgmt.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.TotalFiles+1, during.TotalFiles)
	assert.Equal(t, before.TotalChunks+added.ChunksCreated, during.TotalChunks)
	assert.Greater(t, during.IndexSize, before.IndexSize)

	res, err := mgmt.DeleteFile(ctx, "/uploads/policy.txt")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, res.Status)
	assert.Equal(t, added.ChunksCreated, res.ChunksRemoved)

	after, err := mgmt.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, during.TotalFiles-1, after.TotalFiles)
	assert.Equal(t, during.TotalChunks-added.ChunksCreated, after.TotalChunks)
	assert.Equal(t, *before, *after)

	_, err = mgmt.DeleteFile(ctx, "policy.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManagement_ListFiles(t *testing.T) {
	env := newIngestEnv(t)
	mgmt := newManagement(env)
	ctx := context.Background()

	for _, name := range []string{"b.md", "a.txt"} {
		_, err := env.svc.Ingest(ctx, writeFile(t, env.dir, name, "Whole life insurance lasts for life."))
		require.NoError(t, err)
	}

	files, err := mgmt.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.txt", files[0].Filename)
	assert.Equal(t, "b.md", files[1].Filename)
	assert.Equal(t, 1, files[0].Chunks)
	assert.Equal(t, "md", files[1].FileType)
}

func TestManagement_EmptyStats(t *testing.T) {
	env := newIngestEnv(t)
	stats, err := newManagement(env).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.IndexStats{}, *stats)
}

func TestManagement_Rebuild(t *testing.T) {
	env := newIngestEnv(t)
	mgmt := newManagement(env)
	ctx := context.Background()

	kept := writeFile(t, env.dir, "kept.txt", longText(4))
	gone := writeFile(t, env.dir, "gone.txt", "Term life insurance expires.")
	keptResult, err := env.svc.Ingest(ctx, kept)
	require.NoError(t, err)
	_, err = env.svc.Ingest(ctx, gone)
	require.NoError(t, err)
	require.NoError(t, os.Remove(gone))

	n, err := mgmt.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := mgmt.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalFiles)
	assert.Equal(t, keptResult.ChunksCreated, stats.TotalChunks)

	_, err = env.docs.GetDocument(ctx, filepath.Base(gone))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, env.index.Verify(ctx))
}
