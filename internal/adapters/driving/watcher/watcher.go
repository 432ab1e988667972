// Package watcher keeps the index in step with a directory. New and
// modified files are ingested after a quiet period; removed or renamed
// files are deleted from the index.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driving"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/logger"
)

// DefaultDebounce is used when no debounce is configured.
const DefaultDebounce = 500 * time.Millisecond

// eventBuffer is the capacity of the outgoing event channel.
const eventBuffer = 16

// ChangeType describes what the watcher did with a file.
type ChangeType string

// Change types.
const (
	ChangeIndexed ChangeType = "indexed"
	ChangeRemoved ChangeType = "removed"
	ChangeFailed  ChangeType = "failed"
)

// Event reports one processed file.
type Event struct {
	Path          string
	Type          ChangeType
	Result        *domain.IngestResult
	ChunksRemoved int
	Err           error
}

type action int

const (
	actionNone action = iota
	actionIngest
	actionDelete
)

// Watcher mirrors a directory into the index.
type Watcher struct {
	dir      string
	debounce time.Duration
	ingest   driving.IngestionService

	mu      sync.Mutex
	closed  bool
	fsw     *fsnotify.Watcher
	pending map[string]*time.Timer
}

// New creates a watcher for dir. A non-positive debounce uses DefaultDebounce.
func New(dir string, debounce time.Duration, ingest driving.IngestionService) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		ingest:   ingest,
		pending:  make(map[string]*time.Timer),
	}
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Scan ingests every supported file already in the directory.
// Individual failures are returned joined; the scan does not stop.
func (w *Watcher) Scan(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, fmt.Errorf("root path error: %w", err)
	}

	var (
		indexed int
		errs    []error
	)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		path := filepath.Join(w.dir, e.Name())
		if e.IsDir() || Ignored(path) || !w.ingest.Supports(path) {
			continue
		}
		if _, err := w.ingest.Ingest(ctx, path); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}
		indexed++
	}
	return indexed, errors.Join(errs...)
}

// Run starts watching. The returned channel reports every processed file
// and is closed when ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) (<-chan Event, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, errors.New("watcher is closed")
	}
	if w.fsw != nil {
		return nil, errors.New("watcher already running")
	}

	info, err := os.Stat(w.dir)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path error: %s is not a directory", w.dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.fsw = fsw

	out := make(chan Event, eventBuffer)
	go w.loop(ctx, fsw, out)
	logger.Info("watching %s", w.dir)
	return out, nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, out chan<- Event) {
	defer close(out)
	defer w.stopTimers()

	fire := make(chan string, eventBuffer)
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			switch w.classify(ev) {
			case actionIngest:
				w.schedule(ctx, ev.Name, fire)
			case actionDelete:
				w.cancel(ev.Name)
				w.emit(ctx, out, w.remove(ctx, ev.Name))
			}

		case path := <-fire:
			w.emit(ctx, out, w.index(ctx, path))

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("watch error: %v", err)
		}
	}
}

// classify decides what an fsnotify event means for the index.
func (w *Watcher) classify(ev fsnotify.Event) action {
	if Ignored(ev.Name) || !w.ingest.Supports(ev.Name) {
		return actionNone
	}
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		return actionDelete
	}
	if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
		info, err := os.Stat(ev.Name)
		if err != nil || !info.Mode().IsRegular() {
			return actionNone
		}
		return actionIngest
	}
	return actionNone
}

// schedule (re)starts the quiet period for path.
func (w *Watcher) schedule(ctx context.Context, path string, fire chan<- string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		select {
		case fire <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) index(ctx context.Context, path string) Event {
	res, err := w.ingest.Ingest(ctx, path)
	if err != nil {
		logger.Warn("ingest %s: %v", path, err)
		return Event{Path: path, Type: ChangeFailed, Err: err}
	}
	return Event{Path: path, Type: ChangeIndexed, Result: res}
}

// remove deletes a file's chunks. A file that was never indexed is not
// an error.
func (w *Watcher) remove(ctx context.Context, path string) Event {
	n, err := w.ingest.Delete(ctx, domain.DocumentIDFromPath(path))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.Warn("delete %s: %v", path, err)
		return Event{Path: path, Type: ChangeFailed, Err: err}
	}
	return Event{Path: path, Type: ChangeRemoved, ChunksRemoved: n}
}

func (w *Watcher) emit(ctx context.Context, out chan<- Event, ev Event) {
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

// Ignored reports whether path is a hidden, editor or office temp file.
func Ignored(path string) bool {
	base := filepath.Base(path)
	switch {
	case base == "." || base == "":
		return true
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasPrefix(base, "~$"):
		return true
	case strings.HasSuffix(base, "~"):
		return true
	case strings.HasSuffix(base, ".tmp"), strings.HasSuffix(base, ".swp"):
		return true
	default:
		return false
	}
}
