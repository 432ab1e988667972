package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
)

func TestExtractFilename(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{
			name:     "valid file URI",
			uri:      "ragbot://files/policy.pdf",
			expected: "policy.pdf",
		},
		{
			name:     "percent-encoded name",
			uri:      "ragbot://files/health%20rider.txt",
			expected: "health rider.txt",
		},
		{
			name:     "invalid prefix",
			uri:      "file://files/policy.pdf",
			expected: "",
		},
		{
			name:     "nested path",
			uri:      "ragbot://files/a/b.pdf",
			expected: "",
		},
		{
			name:     "empty URI",
			uri:      "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractFilename(tt.uri))
		})
	}
}

func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleFilesResource(t *testing.T) {
	ctx := context.Background()

	t.Run("empty index returns empty list", func(t *testing.T) {
		server, err := newTestServer(&mockAskService{}, &mockManagementService{}, nil)
		require.NoError(t, err)

		result, err := server.handleFilesResource(ctx, makeReadResourceRequest("ragbot://files"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})

	t.Run("returns files", func(t *testing.T) {
		mgmt := &mockManagementService{files: []domain.DocumentSummary{{Filename: "policy.pdf", Chunks: 12, FileType: "pdf"}}}
		server, err := newTestServer(&mockAskService{}, mgmt, nil)
		require.NoError(t, err)

		result, err := server.handleFilesResource(ctx, makeReadResourceRequest("ragbot://files"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Contains(t, result.Contents[0].Text, `"filename": "policy.pdf"`)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)
	})

	t.Run("returns error on list failure", func(t *testing.T) {
		mgmt := &mockManagementService{err: errors.New("database error")}
		server, err := newTestServer(&mockAskService{}, mgmt, nil)
		require.NoError(t, err)

		_, err = server.handleFilesResource(ctx, makeReadResourceRequest("ragbot://files"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "listing files")
	})
}

func TestServer_handleStatsResource(t *testing.T) {
	mgmt := &mockManagementService{stats: &domain.IndexStats{TotalFiles: 1, TotalChunks: 9}}
	server, err := newTestServer(&mockAskService{}, mgmt, nil)
	require.NoError(t, err)

	result, err := server.handleStatsResource(context.Background(), makeReadResourceRequest("ragbot://stats"))

	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Contains(t, result.Contents[0].Text, `"total_chunks": 9`)
	assert.Contains(t, result.Contents[0].Text, `"queries": 2`)
}

func TestServer_handleFileResource(t *testing.T) {
	ctx := context.Background()
	mgmt := &mockManagementService{files: []domain.DocumentSummary{{Filename: "policy.pdf", Chunks: 12}}}
	server, err := newTestServer(&mockAskService{}, mgmt, nil)
	require.NoError(t, err)

	t.Run("known file", func(t *testing.T) {
		result, err := server.handleFileResource(ctx, makeReadResourceRequest("ragbot://files/policy.pdf"))
		require.NoError(t, err)
		assert.Contains(t, result.Contents[0].Text, `"chunks": 12`)
	})

	t.Run("unknown file returns not found", func(t *testing.T) {
		_, err := server.handleFileResource(ctx, makeReadResourceRequest("ragbot://files/other.pdf"))
		require.Error(t, err)
	})

	t.Run("invalid URI returns not found", func(t *testing.T) {
		_, err := server.handleFileResource(ctx, makeReadResourceRequest("ragbot://invalid"))
		require.Error(t, err)
	})
}
