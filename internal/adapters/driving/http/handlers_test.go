package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
)

// ==================== Mocks ====================

type mockAsk struct {
	gotQuestion string
	gotOpts     domain.AskOptions
	err         error
	panic       bool
}

func (m *mockAsk) Ask(_ context.Context, q string, opts domain.AskOptions) (*domain.Answer, error) {
	if m.panic {
		panic("boom")
	}
	m.gotQuestion, m.gotOpts = q, opts
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Answer{
		Status:   domain.StatusSuccess,
		Question: q,
		Text:     "The waiting period is 30 days.",
		Sources:  []domain.Source{{Filename: "policy.pdf", Page: 3, Score: 0.9}},
		State:    domain.StateSucceeded,
	}, nil
}

func (m *mockAsk) Quality() domain.QualitySummary {
	return domain.QualitySummary{Queries: 4, CacheHitRate: 0.25}
}

type mockIngestion struct {
	gotPath string
	err     error
}

func (m *mockIngestion) Ingest(_ context.Context, path string) (*domain.IngestResult, error) {
	m.gotPath = path
	if m.err != nil {
		return nil, m.err
	}
	return &domain.IngestResult{Status: domain.StatusSuccess, DocumentID: filepath.Base(path), ChunksCreated: 3}, nil
}

func (m *mockIngestion) Delete(context.Context, string) (int, error)              { return 0, nil }
func (m *mockIngestion) List(context.Context) ([]domain.DocumentSummary, error) { return nil, nil }
func (m *mockIngestion) Supports(path string) bool                                { return filepath.Ext(path) == ".txt" }

type mockManagement struct {
	files []domain.DocumentSummary
	err   error
}

func (m *mockManagement) Stats(context.Context) (*domain.IndexStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.IndexStats{TotalFiles: len(m.files), TotalChunks: 7, IndexSize: 4096}, nil
}

func (m *mockManagement) ListFiles(context.Context) ([]domain.DocumentSummary, error) {
	return m.files, m.err
}

func (m *mockManagement) DeleteFile(_ context.Context, filename string) (*domain.DeleteResult, error) {
	if filename != "policy.pdf" {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, filename)
	}
	return &domain.DeleteResult{Status: domain.StatusSuccess, ChunksRemoved: 5}, nil
}

func (m *mockManagement) Rebuild(context.Context) (int, error) { return 0, nil }

type fixture struct {
	server *Server
	ask    *mockAsk
	ingest *mockIngestion
	mgmt   *mockManagement
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{ask: &mockAsk{}, ingest: &mockIngestion{}, mgmt: &mockManagement{}}
	s, err := NewServer(cfg, Services{Ask: f.ask, Ingestion: f.ingest, Management: f.mgmt})
	require.NoError(t, err)
	f.server = s
	return f
}

func (f *fixture) do(method, path string, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// ==================== Tests ====================

func TestNewServer_RequiresServices(t *testing.T) {
	_, err := NewServer(DefaultConfig(), Services{})
	assert.Error(t, err)
}

func TestHealthAndVersion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Version = "1.2.3"
	f := newFixture(t, cfg)

	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	rec = f.do(http.MethodGet, "/version", "")
	assert.Equal(t, "1.2.3", decode[map[string]string](t, rec)["version"])
}

func TestHandleAsk(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	rec := f.do(http.MethodPost, "/api/ask",
		`{"question":"What is the waiting period?","options":{"language":"th","k":3,"diversity":false}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	answer := decode[domain.Answer](t, rec)
	assert.Equal(t, domain.StatusSuccess, answer.Status)
	assert.Equal(t, "The waiting period is 30 days.", answer.Text)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, 3, answer.Sources[0].Page)

	assert.Equal(t, "What is the waiting period?", f.ask.gotQuestion)
	assert.Equal(t, domain.LanguageThai, f.ask.gotOpts.Language)
	assert.Equal(t, 3, f.ask.gotOpts.K)
	require.NotNil(t, f.ask.gotOpts.Diversity)
	assert.False(t, *f.ask.gotOpts.Diversity)
}

func TestHandleAsk_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
	}{
		{"malformed body", `{"question":`, nil, http.StatusBadRequest},
		{"unknown language", `{"question":"hi","options":{"language":"fr"}}`, nil, http.StatusBadRequest},
		{"invalid query", `{"question":""}`, fmt.Errorf("%w: empty", domain.ErrInvalidQuery), http.StatusBadRequest},
		{"no embedder", `{"question":"hi"}`, domain.ErrEmbeddingUnavailable, http.StatusServiceUnavailable},
		{"unexpected", `{"question":"hi"}`, fmt.Errorf("disk gone"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, DefaultConfig())
			f.ask.err = tt.err

			rec := f.do(http.MethodPost, "/api/ask", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			resp := decode[domain.ErrorResponse](t, rec)
			assert.Equal(t, domain.StatusError, resp.Status)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestHandleQuality(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	rec := f.do(http.MethodGet, "/api/quality", "")
	require.Equal(t, http.StatusOK, rec.Code)
	q := decode[domain.QualitySummary](t, rec)
	assert.Equal(t, 4, q.Queries)
	assert.InDelta(t, 0.25, q.CacheHitRate, 1e-9)
}

func TestHandleIngest_Path(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	rec := f.do(http.MethodPost, "/api/ingest", `{"path":"/docs/rider.txt"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[domain.IngestResult](t, rec)
	assert.Equal(t, "rider.txt", res.DocumentID)
	assert.Equal(t, 3, res.ChunksCreated)
	assert.Equal(t, "/docs/rider.txt", f.ingest.gotPath)

	rec = f.do(http.MethodPost, "/api/ingest", `{"path":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleIngest_ErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
	}{
		{domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType},
		{domain.ErrCorruptFile, http.StatusUnprocessableEntity},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrInvalidInput, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			f := newFixture(t, DefaultConfig())
			f.ingest.err = fmt.Errorf("%w: rider.txt", tt.err)
			rec := f.do(http.MethodPost, "/api/ingest", `{"path":"rider.txt"}`)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func multipartUpload(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/ingest", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestHandleIngest_Upload(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UploadDir = t.TempDir()
	f := newFixture(t, cfg)

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, multipartUpload(t, "../../etc/rider.txt", "Accidental death benefit."))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	want := filepath.Join(cfg.UploadDir, "rider.txt")
	assert.Equal(t, want, f.ingest.gotPath)
	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "Accidental death benefit.", string(data))

	rec = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, multipartUpload(t, "photo.png", "x"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, multipartUpload(t, ".hidden.txt", "x"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleIngest_UploadDisabled(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, multipartUpload(t, "rider.txt", "x"))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Empty(t, f.ingest.gotPath)
}

func TestHandleFiles(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	rec := f.do(http.MethodGet, "/api/files", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	f.mgmt.files = []domain.DocumentSummary{{Filename: "policy.pdf", Chunks: 5, FileType: "pdf"}}
	rec = f.do(http.MethodGet, "/api/files", "")
	files := decode[[]domain.DocumentSummary](t, rec)
	require.Len(t, files, 1)
	assert.Equal(t, "policy.pdf", files[0].Filename)
}

func TestHandleDeleteFile(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	rec := f.do(http.MethodDelete, "/api/files/policy.pdf", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, decode[domain.DeleteResult](t, rec).ChunksRemoved)

	rec = f.do(http.MethodDelete, "/api/files/missing.pdf", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.StatusError, decode[domain.ErrorResponse](t, rec).Status)
}

func TestHandleStats(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	rec := f.do(http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[domain.IndexStats](t, rec)
	assert.Equal(t, 7, stats.TotalChunks)
	assert.Equal(t, int64(4096), stats.IndexSize)

	f.mgmt.err = domain.ErrIndexCorruption
	rec = f.do(http.MethodGet, "/api/stats", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouting(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	rec := f.do(http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "route not found", decode[domain.ErrorResponse](t, rec).Message)

	rec = f.do(http.MethodGet, "/api/ask", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = f.do(http.MethodOptions, "/api/ask", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "preflight is not routed without CORS")
}

func TestCORS(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedOrigins = []string{"http://localhost:3000"}
	f := newFixture(t, cfg)

	r := httptest.NewRequest(http.MethodOptions, "/api/ask", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, r)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, r)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
}

func TestRecoveryMiddleware(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.ask.panic = true
	rec := f.do(http.MethodPost, "/api/ask", `{"question":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decode[domain.ErrorResponse](t, rec).Message)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
