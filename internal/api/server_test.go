package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sessionapi "github.com/futig/doctalk-backend/internal/api/session"
	"github.com/futig/doctalk-backend/internal/config"
	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/futig/doctalk-backend/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeUsecase struct {
	lastSession string
	lastQuery   string
	requests    []*entity.IngestRequest

	ingestErr  error
	failAfter  int
	answer     *entity.Answer
	answerErr  error
	info       *entity.SessionInfo
	entries    []entity.TranscriptEntry
	lookupErr  error
	endedCalls int
}

func (f *fakeUsecase) IngestBatch(_ context.Context, sessionID string, reqs []*entity.IngestRequest) (*entity.IngestSummary, error) {
	f.lastSession = sessionID
	f.requests = reqs
	summary := &entity.IngestSummary{Documents: []entity.DocumentRef{}}
	for i, r := range reqs {
		if f.ingestErr != nil && i == f.failAfter {
			return summary, f.ingestErr
		}
		summary.Documents = append(summary.Documents, entity.DocumentRef{ID: fmt.Sprintf("doc-%d", i), Filename: r.Filename, Seq: i})
		summary.FilesProcessed++
		summary.ChunksProcessed += 2
	}
	return summary, nil
}

func (f *fakeUsecase) AnswerQuery(_ context.Context, sessionID, query string) (*entity.Answer, error) {
	f.lastSession = sessionID
	f.lastQuery = query
	return f.answer, f.answerErr
}

func (f *fakeUsecase) EndSession(_ context.Context, sessionID string) error {
	f.lastSession = sessionID
	f.endedCalls++
	return nil
}

func (f *fakeUsecase) GetSession(_ context.Context, sessionID string) (*entity.SessionInfo, error) {
	f.lastSession = sessionID
	return f.info, f.lookupErr
}

func (f *fakeUsecase) GetTranscript(_ context.Context, sessionID string) ([]entity.TranscriptEntry, error) {
	f.lastSession = sessionID
	return f.entries, f.lookupErr
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		FileUploadCfg: config.FileUploadConfig{
			MaxFileSize:   1 << 20,
			MaxTotalSize:  2 << 20,
			MaxFileCount:  4,
			MaxUploadSize: 4 << 20,
		},
		AuthCfg: config.AuthConfig{Tokens: []string{"secret"}},
	}
}

func newTestRouter(cfg *config.Config, uc *fakeUsecase) http.Handler {
	h := sessionapi.NewHandler(uc, validator.NewFileValidator(cfg.FileUploadCfg), cfg.FileUploadCfg.MaxUploadSize)
	return SetupRouter(cfg, h, func() int { return 3 }, zap.NewNop())
}

func do(t *testing.T, router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func chatRequest(sessionID, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}
	return req
}

func uploadRequest(t *testing.T, sessionID string, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Session-ID", sessionID)
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) entity.ErrorResponse {
	t.Helper()
	var resp entity.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestRouter(testConfig(), &fakeUsecase{}), httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp entity.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, entity.HealthResponse{Status: "ok", Service: "doctalk-api", Sessions: 3}, resp)
}

func TestChat(t *testing.T) {
	uc := &fakeUsecase{answer: &entity.Answer{
		Text:      "No, Offline Mode was removed.",
		Citations: []string{"doc-2"},
		Sources:   []entity.Citation{{DocumentID: "doc-2", Source: "update.md", Text: "Offline Mode: removed"}},
		Usage:     entity.Usage{PromptTokens: 120, CompletionTokens: 8},
	}}
	router := newTestRouter(testConfig(), uc)

	rec := do(t, router, chatRequest("team-1", `{"message":"  Is Offline Mode in v1? "}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp entity.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "team-1", resp.SessionID)
	assert.Equal(t, "No, Offline Mode was removed.", resp.Answer)
	require.Len(t, resp.Citations, 1)
	assert.Equal(t, "update.md", resp.Citations[0].Source)
	assert.False(t, resp.Refused)

	assert.Equal(t, "team-1", uc.lastSession)
	assert.Equal(t, "Is Offline Mode in v1?", uc.lastQuery)
}

func TestChat_Refusal(t *testing.T) {
	uc := &fakeUsecase{answer: entity.NewRefusal(entity.RefusalConfidentialContent, "I can't answer that.")}

	rec := do(t, newTestRouter(testConfig(), uc), chatRequest("s1", `{"message":"merger target?"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"session_id": "s1",
		"answer": "I can't answer that.",
		"citations": [],
		"refused": true,
		"refusal_reason": "CONFIDENTIAL_CONTENT",
		"usage": {"prompt_tokens": 0, "completion_tokens": 0}
	}`, rec.Body.String())
}

func TestChat_Errors(t *testing.T) {
	tests := []struct {
		name       string
		sessionID  string
		body       string
		answerErr  error
		wantStatus int
		wantMsg    string
	}{
		{"missing session header", "", `{"message":"hi"}`, nil, http.StatusBadRequest, "X-Session-ID"},
		{"bad json", "s1", `{"message":`, nil, http.StatusBadRequest, "invalid request body"},
		{"empty message", "s1", `{"message":"  "}`, nil, http.StatusBadRequest, "message"},
		{
			"provider down", "s1", `{"message":"hi"}`,
			fmt.Errorf("%w: openai: HTTP 503: overloaded", entity.ErrEmbeddingProvider),
			http.StatusServiceUnavailable, "service temporarily unavailable",
		},
		{
			"generation failed", "s1", `{"message":"hi"}`,
			fmt.Errorf("%w: connection reset", entity.ErrGeneration),
			http.StatusServiceUnavailable, "service temporarily unavailable",
		},
		{"unexpected", "s1", `{"message":"hi"}`, errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &fakeUsecase{answer: &entity.Answer{}, answerErr: tt.answerErr}
			rec := do(t, newTestRouter(testConfig(), uc), chatRequest(tt.sessionID, tt.body))

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeError(t, rec)
			assert.Contains(t, resp.Message, tt.wantMsg)
			assert.NotContains(t, resp.Message, "overloaded")
		})
	}
}

func TestUpload(t *testing.T) {
	uc := &fakeUsecase{}
	router := newTestRouter(testConfig(), uc)

	rec := do(t, router, uploadRequest(t, "s1",
		map[string]string{"document_type": "update", "confidential": "true"},
		map[string]string{"status.md": "Offline Mode: removed"},
	))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp entity.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.FilesProcessed)
	assert.Equal(t, 2, resp.ChunksProcessed)
	assert.Equal(t, "s1", resp.SessionID)

	require.Len(t, uc.requests, 1)
	assert.Equal(t, "status.md", uc.requests[0].Filename)
	assert.Equal(t, []byte("Offline Mode: removed"), uc.requests[0].Content)
	assert.Equal(t, entity.DocumentTypeUpdate, uc.requests[0].DocumentType)
	assert.True(t, uc.requests[0].Confidential)
}

func TestUpload_Errors(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]string
		files      map[string]string
		ingestErr  error
		wantStatus int
	}{
		{"no files", nil, nil, nil, http.StatusBadRequest},
		{"legacy doc", nil, map[string]string{"old.doc": "x"}, nil, http.StatusBadRequest},
		{"bad document type", map[string]string{"document_type": "novel"}, map[string]string{"a.md": "x"}, nil, http.StatusBadRequest},
		{"bad confidential flag", map[string]string{"confidential": "maybe"}, map[string]string{"a.md": "x"}, nil, http.StatusBadRequest},
		{"extraction failure", nil, map[string]string{"a.pdf": "x"}, fmt.Errorf("file a.pdf: %w", entity.ErrExtraction), http.StatusUnprocessableEntity},
		{"empty document", nil, map[string]string{"a.md": " "}, fmt.Errorf("file a.md: %w", entity.ErrEmptyDocument), http.StatusUnprocessableEntity},
		{"provider down", nil, map[string]string{"a.md": "x"}, entity.ErrEmbeddingProvider, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &fakeUsecase{ingestErr: tt.ingestErr}
			rec := do(t, newTestRouter(testConfig(), uc), uploadRequest(t, "s1", tt.fields, tt.files))
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestUpload_PartialBatchReportsIngestedFiles(t *testing.T) {
	uc := &fakeUsecase{failAfter: 1, ingestErr: fmt.Errorf("file b.pdf: %w", entity.ErrExtraction)}
	rec := do(t, newTestRouter(testConfig(), uc), uploadRequest(t, "s1", nil,
		map[string]string{"a.md": "Offline Mode: removed", "b.pdf": "not a pdf"},
	))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var resp entity.UploadErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "b.pdf")
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, 1, resp.FilesProcessed)
	assert.Equal(t, 2, resp.ChunksProcessed)
	require.Len(t, resp.Documents, 1)
	assert.Equal(t, "doc-0", resp.Documents[0].ID)
}

func TestSessionEndpoints(t *testing.T) {
	uc := &fakeUsecase{info: &entity.SessionInfo{ID: "s1", ChunkCount: 4, Questions: 1}}
	router := newTestRouter(testConfig(), uc)

	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set("X-Session-ID", "s1")
	rec := do(t, router, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"chunk_count":4`)

	req = httptest.NewRequest(http.MethodDelete, "/session", nil)
	req.Header.Set("X-Session-ID", "s1")
	rec = do(t, router, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, uc.endedCalls)
}

func TestSession_NotFound(t *testing.T) {
	uc := &fakeUsecase{lookupErr: entity.ErrSessionNotFound}
	router := newTestRouter(testConfig(), uc)

	for _, path := range []string{"/session", "/session/transcript"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Session-ID", "ghost")
		rec := do(t, router, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestTranscript(t *testing.T) {
	uc := &fakeUsecase{entries: []entity.TranscriptEntry{{
		Question: "Who is the QA?",
		Answer:   entity.Answer{Text: "Bob"},
	}}}
	router := newTestRouter(testConfig(), uc)

	req := httptest.NewRequest(http.MethodGet, "/session/transcript", nil)
	req.Header.Set("X-Session-ID", "telegram:42")
	rec := do(t, router, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="transcript_telegram_42.md"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "## 1. Who is the QA?")

	req = httptest.NewRequest(http.MethodGet, "/session/transcript?format=json", nil)
	req.Header.Set("X-Session-ID", "telegram:42")
	rec = do(t, router, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	req = httptest.NewRequest(http.MethodGet, "/session/transcript?format=html", nil)
	req.Header.Set("X-Session-ID", "telegram:42")
	rec = do(t, router, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// docx needs a unidoc license key
	req = httptest.NewRequest(http.MethodGet, "/session/transcript?format=docx", nil)
	req.Header.Set("X-Session-ID", "telegram:42")
	rec = do(t, router, req)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "not enabled")
}

func TestAuth_Production(t *testing.T) {
	cfg := testConfig()
	cfg.Environment = "production"
	uc := &fakeUsecase{answer: &entity.Answer{Text: "ok"}}
	router := newTestRouter(cfg, uc)

	rec := do(t, router, chatRequest("s1", `{"message":"hi"}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := chatRequest("s1", `{"message":"hi"}`)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, do(t, router, req).Code)

	req = chatRequest("s1", `{"message":"hi"}`)
	req.Header.Set("Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, do(t, router, req).Code)

	// health stays public
	rec = do(t, router, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_ProductionWithoutTokensFailsClosed(t *testing.T) {
	cfg := testConfig()
	cfg.Environment = "production"
	cfg.AuthCfg.Tokens = []string{" "}
	router := newTestRouter(cfg, &fakeUsecase{answer: &entity.Answer{Text: "ok"}})

	rec := do(t, router, chatRequest("s1", `{"message":"hi"}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := chatRequest("s1", `{"message":"hi"}`)
	req.Header.Set("Authorization", "Bearer ")
	assert.Equal(t, http.StatusUnauthorized, do(t, router, req).Code)
}

func TestAuth_DisabledOutsideProduction(t *testing.T) {
	uc := &fakeUsecase{answer: &entity.Answer{Text: "ok"}}
	rec := do(t, newTestRouter(testConfig(), uc), chatRequest("s1", `{"message":"hi"}`))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	rec := do(t, newTestRouter(testConfig(), &fakeUsecase{}), req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Session-ID")
}

func TestDocs_ServesSpecWithoutAuth(t *testing.T) {
	router := newTestRouter(testConfig(), &fakeUsecase{})

	rec := do(t, router, httptest.NewRequest(http.MethodGet, "/docs/swagger.yaml", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "/session/transcript:")

	rec = do(t, router, httptest.NewRequest(http.MethodGet, "/docs", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/docs/index.html", rec.Header().Get("Location"))
}
