// Package pdf provides a PDF loader producing one segment per page.
//
// Text is extracted natively with github.com/ledongthuc/pdf. When that
// fails, or yields no text, the loader falls back to poppler's pdftotext
// if it is installed.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/logger"
)

// Ensure Loader implements the interface.
var _ driven.Loader = (*Loader)(nil)

// ErrPDFToolNotFound indicates pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// pdftotextCmd is the poppler command used for fallback extraction.
const pdftotextCmd = "pdftotext"

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// pageExtractor returns the text of every page, index 0 = page 1.
type pageExtractor func(ctx context.Context, path string) ([]string, error)

// Loader extracts PDF text page by page.
type Loader struct {
	extractors []pageExtractor
	runner     CommandRunner
}

// New creates a PDF loader using native extraction, with pdftotext as the
// fallback when it is available.
func New() *Loader {
	l := &Loader{runner: execRunner{}}
	l.extractors = []pageExtractor{extractNative}
	if CheckAvailable() == nil {
		l.extractors = append(l.extractors, l.extractWithTool)
	}
	return l
}

// NewWithRunner creates a loader that only uses pdftotext through runner.
func NewWithRunner(runner CommandRunner) *Loader {
	l := &Loader{runner: runner}
	l.extractors = []pageExtractor{l.extractWithTool}
	return l
}

// CheckAvailable returns ErrPDFToolNotFound when pdftotext is missing.
func CheckAvailable() error {
	if _, err := exec.LookPath(pdftotextCmd); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// Name returns the loader name.
func (l *Loader) Name() string {
	return "pdf"
}

// SupportedExtensions returns the extensions this loader handles.
func (l *Loader) SupportedExtensions() []string {
	return []string{"pdf"}
}

// Priority returns the selection priority.
func (l *Loader) Priority() int {
	return 50
}

// Load returns one segment per non-empty page with its 1-based page number.
func (l *Loader) Load(ctx context.Context, path string) ([]domain.Segment, error) {
	source := domain.DocumentIDFromPath(path)

	var lastErr error
	for _, extract := range l.extractors {
		pages, err := extract(ctx, path)
		if err != nil {
			logger.Debug("pdf: extractor failed for %s: %v", source, err)
			lastErr = err
			continue
		}
		segments := toSegments(source, pages)
		if len(segments) > 0 {
			return segments, nil
		}
		lastErr = errors.New("no extractable text")
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptFile, source, lastErr)
}

func toSegments(source string, pages []string) []domain.Segment {
	segments := make([]domain.Segment, 0, len(pages))
	for i, text := range pages {
		text = cleanPageText(text)
		if text == "" {
			continue
		}
		segments = append(segments, domain.Segment{
			Text: text,
			Metadata: domain.SegmentMetadata{
				Source: source,
				Page:   i + 1,
			},
		})
	}
	return segments
}

// cleanPageText normalises line endings and trims trailing spaces per line.
func cleanPageText(text string) string {
	text = strings.ToValidUTF8(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// extractNative reads pages with ledongthuc/pdf. The parser panics on some
// malformed inputs, so panics are converted to errors.
func extractNative(ctx context.Context, path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	n := reader.NumPage()
	pages = make([]string, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages[i-1] = text
	}
	return pages, nil
}

// extractWithTool runs pdftotext, which separates pages with form feeds.
func (l *Loader) extractWithTool(ctx context.Context, path string) ([]string, error) {
	out, err := l.runner.Run(ctx, pdftotextCmd, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, err
	}
	pages := strings.Split(string(out), "\f")
	// pdftotext terminates the last page with a form feed too.
	if len(pages) > 0 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages, nil
}

// InstallInstructions returns platform-specific installation instructions
// for the optional pdftotext fallback.
func InstallInstructions() string {
	return `pdftotext (optional) improves extraction for unusual PDFs. Install poppler:
  macOS:   brew install poppler
  Ubuntu:  apt install poppler-utils
  Fedora:  dnf install poppler-utils`
}
