package file

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
)

//go:embed prompts/*.txt prompts/README.md
var defaults embed.FS

const promptExt = ".txt"

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore serves prompt templates from a user-editable directory.
// Missing or blank files fall back to the built-in text. The directory is
// seeded with the built-ins on first use so users have something to edit.
type PromptStore struct {
	dir string

	seed    sync.Once
	seedErr error

	mu     sync.RWMutex
	loaded map[string]string
}

// NewPromptStore creates a store over dir, or <config dir>/prompts when
// dir is empty. Nothing is written until the first Load.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, "prompts")
	}
	return &PromptStore{dir: dir, loaded: map[string]string{}}, nil
}

// DefaultPrompt returns the built-in text for name.
func DefaultPrompt(name string) (string, bool) {
	data, err := defaults.ReadFile("prompts/" + name + promptExt)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// Load returns the template called name.
func (s *PromptStore) Load(name string) (string, error) {
	s.seed.Do(func() { s.seedErr = s.writeDefaults() })

	s.mu.RLock()
	text, ok := s.loaded[name]
	s.mu.RUnlock()
	if ok {
		return text, nil
	}

	text, err := s.read(name)
	if err != nil {
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.loaded[name]; ok {
		return prev, nil
	}
	s.loaded[name] = text
	return text, nil
}

// read prefers the user's file and falls back to the built-in.
func (s *PromptStore) read(name string) (string, error) {
	if s.seedErr == nil {
		data, err := os.ReadFile(filepath.Join(s.dir, name+promptExt))
		if text := strings.TrimSpace(string(data)); err == nil && text != "" {
			return text, nil
		}
	}
	if text, ok := DefaultPrompt(name); ok {
		return text, nil
	}
	if s.seedErr != nil {
		return "", s.seedErr
	}
	return "", domain.ErrNotFound
}

// Reload forgets every loaded template.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	clear(s.loaded)
	s.mu.Unlock()
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

// writeDefaults copies each built-in file that the user has not got yet.
func (s *PromptStore) writeDefaults() error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create prompt directory: %w", err)
	}
	entries, err := defaults.ReadDir("prompts")
	if err != nil {
		return err
	}
	for _, e := range entries {
		dst := filepath.Join(s.dir, e.Name())
		if _, err := os.Stat(dst); !errors.Is(err, fs.ErrNotExist) {
			continue
		}
		data, err := defaults.ReadFile("prompts/" + e.Name())
		if err != nil {
			return err
		}
		if err := os.WriteFile(dst, data, 0o600); err != nil {
			return fmt.Errorf("write default %s: %w", e.Name(), err)
		}
	}
	return nil
}
