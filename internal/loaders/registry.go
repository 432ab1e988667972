package loaders

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.LoaderRegistry = (*Registry)(nil)

// Registry maps file extensions to loaders.
// When several loaders claim an extension the highest priority wins.
type Registry struct {
	mu      sync.RWMutex
	byExt   map[string][]driven.Loader
	ignored []string
}

// DefaultIgnoredPrefixes are filename prefixes never ingested: Office
// lock files and macOS metadata.
var DefaultIgnoredPrefixes = []string{"~$", ".DS_Store", "Thumbs.db", "._"}

// NewRegistry creates an empty registry.
func NewRegistry(loaders ...driven.Loader) *Registry {
	r := &Registry{
		byExt:   make(map[string][]driven.Loader),
		ignored: DefaultIgnoredPrefixes,
	}
	for _, l := range loaders {
		r.Register(l)
	}
	return r
}

// Register adds a loader for each of its extensions.
func (r *Registry) Register(loader driven.Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ext := range loader.SupportedExtensions() {
		ext = strings.ToLower(strings.TrimPrefix(ext, "."))
		list := append(r.byExt[ext], loader)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority() > list[j].Priority()
		})
		r.byExt[ext] = list
	}
}

// For returns the loader for path's extension.
func (r *Registry) For(path string) (driven.Loader, error) {
	name := domain.DocumentIDFromPath(path)
	for _, prefix := range r.ignored {
		if strings.HasPrefix(name, prefix) {
			return nil, fmt.Errorf("%w: %s is a temporary or system file", domain.ErrUnsupportedFormat, name)
		}
	}

	ext := domain.FileTypeFromPath(path)

	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.byExt[ext]
	if len(list) == 0 {
		if ext == "" {
			return nil, fmt.Errorf("%w: %s has no extension", domain.ErrUnsupportedFormat, name)
		}
		return nil, fmt.Errorf("%w: .%s", domain.ErrUnsupportedFormat, ext)
	}
	return list[0], nil
}

// Supports reports whether path can be loaded.
func (r *Registry) Supports(path string) bool {
	_, err := r.For(path)
	return err == nil
}

// Extensions returns every registered extension, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
