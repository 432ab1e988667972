package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
)

const testDebounce = 30 * time.Millisecond

// mockIngestion records calls and supports .txt and .pdf files.
type mockIngestion struct {
	mu       sync.Mutex
	ingested []string
	deleted  []string
	err      error
}

func (m *mockIngestion) Ingest(_ context.Context, path string) (*domain.IngestResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingested = append(m.ingested, path)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.IngestResult{Status: domain.StatusSuccess, DocumentID: filepath.Base(path), ChunksCreated: 1}, nil
}

func (m *mockIngestion) Delete(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	if id == "never-indexed.txt" {
		return 0, domain.ErrNotFound
	}
	return 2, nil
}

func (m *mockIngestion) List(context.Context) ([]domain.DocumentSummary, error) { return nil, nil }

func (m *mockIngestion) Supports(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".txt" || ext == ".pdf"
}

func (m *mockIngestion) Ingested() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ingested...)
}

func startWatcher(t *testing.T, ingest *mockIngestion) (string, <-chan Event) {
	t.Helper()
	dir := t.TempDir()
	w := New(dir, testDebounce, ingest)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = w.Close()
	})
	events, err := w.Run(ctx)
	require.NoError(t, err)
	return dir, events
}

func next(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for watcher event")
		return Event{}
	}
}

func TestWatcher_IngestsNewFileOnceAfterBurst(t *testing.T) {
	ingest := &mockIngestion{}
	dir, events := startWatcher(t, ingest)

	path := filepath.Join(dir, "policy.txt")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("draft"), 0o600))
	}

	ev := next(t, events)
	assert.Equal(t, ChangeIndexed, ev.Type)
	assert.Equal(t, path, ev.Path)
	require.NotNil(t, ev.Result)
	assert.Equal(t, "policy.txt", ev.Result.DocumentID)

	time.Sleep(3 * testDebounce)
	assert.Equal(t, []string{path}, ingest.Ingested())
}

func TestWatcher_RemoveDeletesDocument(t *testing.T) {
	ingest := &mockIngestion{}
	dir, events := startWatcher(t, ingest)

	path := filepath.Join(dir, "rider.pdf")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	require.Equal(t, ChangeIndexed, next(t, events).Type)

	require.NoError(t, os.Remove(path))
	ev := next(t, events)
	assert.Equal(t, ChangeRemoved, ev.Type)
	assert.Equal(t, 2, ev.ChunksRemoved)
	assert.Equal(t, []string{"rider.pdf"}, ingest.deleted)
}

func TestWatcher_FailuresAreReported(t *testing.T) {
	ingest := &mockIngestion{err: domain.ErrCorruptFile}
	dir, events := startWatcher(t, ingest)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.txt"), []byte("x"), 0o600))
	ev := next(t, events)
	assert.Equal(t, ChangeFailed, ev.Type)
	assert.ErrorIs(t, ev.Err, domain.ErrCorruptFile)
}

func TestWatcher_Classify(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, testDebounce, &mockIngestion{})

	file := filepath.Join(dir, "plan.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	sub := filepath.Join(dir, "nested.txt")
	require.NoError(t, os.Mkdir(sub, 0o700))

	tests := []struct {
		name string
		path string
		op   fsnotify.Op
		want action
	}{
		{"create", file, fsnotify.Create, actionIngest},
		{"write", file, fsnotify.Write, actionIngest},
		{"write and chmod", file, fsnotify.Write | fsnotify.Chmod, actionIngest},
		{"chmod only", file, fsnotify.Chmod, actionNone},
		{"remove", filepath.Join(dir, "gone.txt"), fsnotify.Remove, actionDelete},
		{"rename", filepath.Join(dir, "old.txt"), fsnotify.Rename, actionDelete},
		{"directory", sub, fsnotify.Create, actionNone},
		{"unsupported", filepath.Join(dir, "image.png"), fsnotify.Create, actionNone},
		{"office lock file", filepath.Join(dir, "~$plan.txt"), fsnotify.Create, actionNone},
		{"hidden remove", filepath.Join(dir, ".plan.txt"), fsnotify.Remove, actionNone},
		{"vanished before stat", filepath.Join(dir, "vanished.txt"), fsnotify.Create, actionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.classify(fsnotify.Event{Name: tt.path, Op: tt.op}))
		})
	}
}

func TestWatcher_DeleteOfUnindexedFileIsNotAFailure(t *testing.T) {
	w := New(t.TempDir(), testDebounce, &mockIngestion{})
	ev := w.remove(context.Background(), "/docs/never-indexed.txt")
	assert.Equal(t, ChangeRemoved, ev.Type)
	assert.NoError(t, ev.Err)
}

func TestWatcher_Scan(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.pdf", ".DS_Store", "~$lock.txt", "notes.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.txt"), 0o700))

	ingest := &mockIngestion{}
	n, err := New(dir, 0, ingest).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.pdf")}, ingest.Ingested())

	ingest.err = errors.New("boom")
	n, err = New(dir, 0, ingest).Scan(context.Background())
	assert.Zero(t, n)
	assert.ErrorContains(t, err, "a.txt: boom")
}

func TestWatcher_RunErrors(t *testing.T) {
	_, err := New("/non/existent/path", 0, &mockIngestion{}).Run(context.Background())
	assert.ErrorContains(t, err, "root path error")

	w := New(t.TempDir(), 0, &mockIngestion{})
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "close is idempotent")
	_, err = w.Run(context.Background())
	assert.ErrorContains(t, err, "closed")
}

func TestWatcher_ChannelClosesOnCancel(t *testing.T) {
	w := New(t.TempDir(), 0, &mockIngestion{})
	defer w.Close()
	ctx, cancel := context.WithCancel(context.Background())
	events, err := w.Run(ctx)
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel did not close after context cancellation")
	}
}

func TestIgnored(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/docs/policy.pdf", false},
		{"/docs/.DS_Store", true},
		{"/docs/~$rates.xlsx", true},
		{"/docs/draft.txt~", true},
		{"/docs/upload.tmp", true},
		{"/docs/.policy.txt.swp", true},
		{"rates.xlsx", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Ignored(tt.path))
		})
	}
}
