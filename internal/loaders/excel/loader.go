// Package excel provides a spreadsheet loader producing one segment per
// data row, using github.com/xuri/excelize/v2.
package excel

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
)

// Ensure Loader implements the interface.
var _ driven.Loader = (*Loader)(nil)

// DefaultMaxCellLength caps cell text so a single wide cell cannot
// dominate a chunk.
const DefaultMaxCellLength = 100

// Loader reads workbooks sheet by sheet. The first non-empty row of each
// sheet is its header; every following non-empty row becomes a segment
// "Sheet: <name> | <header>: <value> | ...".
type Loader struct {
	maxCell int
}

// New creates an Excel loader.
func New() *Loader {
	return &Loader{maxCell: DefaultMaxCellLength}
}

// Name returns the loader name.
func (l *Loader) Name() string {
	return "excel"
}

// SupportedExtensions returns the extensions this loader handles.
// Legacy binary .xls workbooks are not supported.
func (l *Loader) SupportedExtensions() []string {
	return []string{"xlsx", "xlsm", "xltx", "xltm"}
}

// Priority returns the selection priority.
func (l *Loader) Priority() int {
	return 50
}

// Load extracts one segment per data row.
func (l *Loader) Load(ctx context.Context, path string) ([]domain.Segment, error) {
	source := domain.DocumentIDFromPath(path)

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptFile, source, err)
	}
	defer f.Close()

	var segments []domain.Segment
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: sheet %q: %v", domain.ErrCorruptFile, source, sheet, err)
		}
		segments = append(segments, l.sheetSegments(source, sheet, rows)...)
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %s: no data rows", domain.ErrCorruptFile, source)
	}
	return segments, nil
}

func (l *Loader) sheetSegments(source, sheet string, rows [][]string) []domain.Segment {
	var (
		header   []string
		segments []domain.Segment
	)
	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		if header == nil {
			header = headerFrom(row)
			continue
		}

		parts := []string{"Sheet: " + sheet}
		var columns []string
		for c, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			col := columnName(header, c)
			columns = append(columns, col)
			parts = append(parts, col+": "+truncate(cell, l.maxCell))
		}
		segments = append(segments, domain.Segment{
			Text: strings.Join(parts, " | "),
			Metadata: domain.SegmentMetadata{
				Source:  source,
				Sheet:   sheet,
				Row:     i + 1,
				Columns: columns,
			},
		})
	}

	// A sheet holding only a header still carries information.
	if len(segments) == 0 && header != nil {
		segments = append(segments, domain.Segment{
			Text:     "Sheet: " + sheet + " | Columns: " + strings.Join(header, ", "),
			Metadata: domain.SegmentMetadata{Source: source, Sheet: sheet, Row: 1, Columns: header},
		})
	}
	return segments
}

func headerFrom(row []string) []string {
	header := make([]string, len(row))
	for i, cell := range row {
		header[i] = strings.TrimSpace(cell)
	}
	return header
}

// columnName falls back to the spreadsheet letter for unnamed columns.
func columnName(header []string, idx int) string {
	if idx < len(header) && header[idx] != "" {
		return header[idx]
	}
	name, err := excelize.ColumnNumberToName(idx + 1)
	if err != nil {
		return fmt.Sprintf("Column %d", idx+1)
	}
	return name
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
