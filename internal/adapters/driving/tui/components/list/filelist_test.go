package list

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
)

func sampleFiles() []domain.DocumentSummary {
	return []domain.DocumentSummary{
		{Filename: "policy.pdf", FileType: "pdf", Chunks: 12, SizeBytes: 250_000},
		{Filename: "rates.xlsx", FileType: "xlsx", Chunks: 40, SizeBytes: 2_500_000},
		{Filename: "faq.txt", FileType: "txt", Chunks: 3, SizeBytes: 900},
	}
}

func TestNewFileList(t *testing.T) {
	l := NewFileList(nil)

	require.NotNil(t, l)
	assert.Nil(t, l.Selected())
	assert.Contains(t, l.View(), "No documents indexed")
}

func TestFileList_Navigation(t *testing.T) {
	l := NewFileList(nil)
	l.SetFiles(sampleFiles())

	l, _ = l.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, l.SelectedIndex())

	l, _ = l.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	l, _ = l.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	assert.Equal(t, 2, l.SelectedIndex(), "selection stops at the last file")

	l, _ = l.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")})
	assert.Equal(t, "rates.xlsx", l.Selected().Filename)

	l.MoveUp()
	l.MoveUp()
	assert.Equal(t, 0, l.SelectedIndex())
}

func TestFileList_SetFilesClampsSelection(t *testing.T) {
	l := NewFileList(nil)
	l.SetFiles(sampleFiles())
	l.MoveDown()
	l.MoveDown()

	l.SetFiles(sampleFiles()[:1])
	assert.Equal(t, 0, l.SelectedIndex())

	l.SetFiles(nil)
	assert.Equal(t, 0, l.SelectedIndex())
	assert.Nil(t, l.Selected())
}

func TestFileList_View(t *testing.T) {
	l := NewFileList(nil)
	l.SetSize(100, 20)
	l.SetFiles(sampleFiles())

	view := l.View()

	assert.Contains(t, view, "> policy.pdf")
	assert.Contains(t, view, "40 chunks")
	assert.Contains(t, view, "2.4 MiB")
	assert.NotContains(t, view, "of 3]")
}

func TestFileList_ViewScrolls(t *testing.T) {
	l := NewFileList(nil)
	l.SetSize(100, 4)
	l.SetFiles(sampleFiles())
	l.MoveDown()
	l.MoveDown()

	view := l.View()

	assert.NotContains(t, view, "policy.pdf")
	assert.Contains(t, view, "faq.txt")
	assert.Contains(t, view, "[2-3 of 3]")
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "900 B", HumanSize(900))
	assert.Equal(t, "1.0 KiB", HumanSize(1024))
	assert.Equal(t, "1.5 MiB", HumanSize(1536*1024))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short.pdf", truncate("short.pdf", 20))
	assert.Equal(t, "กรมธรรม์...", truncate("กรมธรรม์ประกันชีวิต.pdf", 11))
}
