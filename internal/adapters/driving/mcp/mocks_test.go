package mcp

import (
	"context"
	"fmt"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
)

// mockAskService is a mock implementation of driving.AskService.
type mockAskService struct {
	answer  *domain.Answer
	gotOpts domain.AskOptions
	err     error
}

func (m *mockAskService) Ask(_ context.Context, _ string, opts domain.AskOptions) (*domain.Answer, error) {
	m.gotOpts = opts
	return m.answer, m.err
}

func (m *mockAskService) Quality() domain.QualitySummary {
	return domain.QualitySummary{Queries: 2, AvgSources: 3}
}

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	result *domain.IngestResult
	err    error
}

func (m *mockIngestionService) Ingest(_ context.Context, _ string) (*domain.IngestResult, error) {
	return m.result, m.err
}

func (m *mockIngestionService) Delete(_ context.Context, _ string) (int, error) {
	return 0, m.err
}

func (m *mockIngestionService) List(_ context.Context) ([]domain.DocumentSummary, error) {
	return nil, m.err
}

func (m *mockIngestionService) Supports(_ string) bool {
	return true
}

// mockManagementService is a mock implementation of driving.ManagementService.
type mockManagementService struct {
	files []domain.DocumentSummary
	stats *domain.IndexStats
	err   error
}

func (m *mockManagementService) Stats(_ context.Context) (*domain.IndexStats, error) {
	return m.stats, m.err
}

func (m *mockManagementService) ListFiles(_ context.Context) ([]domain.DocumentSummary, error) {
	return m.files, m.err
}

func (m *mockManagementService) DeleteFile(_ context.Context, filename string) (*domain.DeleteResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, f := range m.files {
		if f.Filename == filename {
			return &domain.DeleteResult{Status: domain.StatusSuccess, ChunksRemoved: f.Chunks}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, filename)
}

func (m *mockManagementService) Rebuild(_ context.Context) (int, error) {
	return 0, m.err
}

func newTestServer(ask *mockAskService, mgmt *mockManagementService, ingest *mockIngestionService) (*Server, error) {
	ports := &Ports{Ask: ask, Management: mgmt}
	if ingest != nil {
		ports.Ingestion = ingest
	}
	return NewServer(ports)
}
