package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question     string `json:"question" jsonschema:"the question to answer from the insurance documents"`
	Language     string `json:"language,omitempty" jsonschema:"answer language: english or thai (default: detected from the question)"`
	K            int    `json:"k,omitempty" jsonschema:"number of passages to retrieve (default from configuration)"`
	UseWebSearch bool   `json:"use_web_search,omitempty" jsonschema:"allow web search (currently has no effect)"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer      string          `json:"answer"`
	Sources     []domain.Source `json:"sources"`
	State       string          `json:"state"`
	Degraded    bool            `json:"degraded"`
	Cached      bool            `json:"cached"`
	Language    string          `json:"language,omitempty"`
	Suggestions []string        `json:"suggestions,omitempty"`
}

// IngestInput is the input schema for the ingest_file tool.
type IngestInput struct {
	Path string `json:"path" jsonschema:"absolute path of a PDF, TXT, CSV or XLSX file to index"`
}

// DeleteInput is the input schema for the delete_file tool.
type DeleteInput struct {
	Filename string `json:"filename" jsonschema:"filename of the indexed document to remove"`
}

// FilesOutput is the output schema for the list_files tool.
type FilesOutput struct {
	Files []domain.DocumentSummary `json:"files"`
	Count int                      `json:"count"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.sdk, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the indexed insurance documents, with cited sources",
	}, s.handleAsk)

	mcp.AddTool(s.sdk, &mcp.Tool{
		Name:        "list_files",
		Description: "List indexed documents with chunk counts and sizes",
	}, s.handleListFiles)

	mcp.AddTool(s.sdk, &mcp.Tool{
		Name:        "delete_file",
		Description: "Remove an indexed document and all of its chunks",
	}, s.handleDeleteFile)

	mcp.AddTool(s.sdk, &mcp.Tool{
		Name:        "stats",
		Description: "Summarise the index: files, chunks and size",
	}, s.handleStats)

	if s.ports.Ingestion != nil {
		mcp.AddTool(s.sdk, &mcp.Tool{
			Name:        "ingest_file",
			Description: "Index a local file so it can be used to answer questions",
		}, s.handleIngest)
	}
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	lang, err := domain.ParseLanguage(input.Language)
	if err != nil {
		return nil, AskOutput{}, err
	}

	answer, err := s.ports.Ask.Ask(ctx, input.Question, domain.AskOptions{
		UseWebSearch: input.UseWebSearch,
		Language:     lang,
		K:            input.K,
	})
	if err != nil {
		return nil, AskOutput{}, err
	}

	sources := answer.Sources
	if sources == nil {
		sources = []domain.Source{}
	}
	return nil, AskOutput{
		Answer:      answer.Text,
		Sources:     sources,
		State:       string(answer.State),
		Degraded:    answer.Degraded,
		Cached:      answer.Cached,
		Language:    string(answer.Language),
		Suggestions: answer.Suggestions,
	}, nil
}

// handleIngest handles the ingest_file tool invocation.
func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, domain.IngestResult, error) {
	res, err := s.ports.Ingestion.Ingest(ctx, input.Path)
	if err != nil {
		return nil, domain.IngestResult{}, err
	}
	return nil, *res, nil
}

// handleListFiles handles the list_files tool invocation.
func (s *Server) handleListFiles(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ struct{},
) (*mcp.CallToolResult, FilesOutput, error) {
	files, err := s.ports.Management.ListFiles(ctx)
	if err != nil {
		return nil, FilesOutput{}, err
	}
	if files == nil {
		files = []domain.DocumentSummary{}
	}
	return nil, FilesOutput{Files: files, Count: len(files)}, nil
}

// handleDeleteFile handles the delete_file tool invocation.
func (s *Server) handleDeleteFile(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DeleteInput,
) (*mcp.CallToolResult, domain.DeleteResult, error) {
	res, err := s.ports.Management.DeleteFile(ctx, input.Filename)
	if err != nil {
		return nil, domain.DeleteResult{}, err
	}
	return nil, *res, nil
}

// handleStats handles the stats tool invocation.
func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ struct{},
) (*mcp.CallToolResult, domain.IndexStats, error) {
	stats, err := s.ports.Management.Stats(ctx)
	if err != nil {
		return nil, domain.IndexStats{}, err
	}
	return nil, *stats, nil
}
