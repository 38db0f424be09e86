package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revradar/revradar/internal/analysis"
	"github.com/revradar/revradar/internal/extract"
	_ "github.com/revradar/revradar/internal/testing/guard"
)

type memStore struct {
	mu       sync.Mutex
	sessions map[string]analysis.Session
	messages map[string][]analysis.Message
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[string]analysis.Session),
		messages: make(map[string][]analysis.Message),
	}
}

func (m *memStore) UpsertReport(_ context.Context, sessionID string, patch analysis.ReportPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		s = analysis.Session{SessionID: sessionID, Status: analysis.StatusGenerating, CreatedAt: time.Now().UTC()}
	}
	if patch.Status != nil && !(s.Status.Terminal() && !patch.Status.Terminal()) {
		s.Status = *patch.Status
	}
	if patch.ReportText != nil {
		s.ReportText = *patch.ReportText
	}
	if patch.ReportStructured != nil {
		s.ReportStructured = patch.ReportStructured
	}
	if patch.OpenAIStatus != nil {
		s.OpenAIStatus = *patch.OpenAIStatus
	}
	if patch.FilesCount != nil {
		s.FilesCount = *patch.FilesCount
	}
	if patch.FilesData != nil {
		s.FilesData = patch.FilesData
	}
	if patch.CompletedAt != nil {
		s.CompletedAt = patch.CompletedAt
	}
	m.sessions[sessionID] = s
	return nil
}

func (m *memStore) AppendMessage(_ context.Context, sessionID, role string, content any) (analysis.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, _ := json.Marshal(content)
	msg := analysis.Message{
		SessionID: sessionID,
		Role:      role,
		Content:   raw,
		Order:     len(m.messages[sessionID]) + 1,
	}
	m.messages[sessionID] = append(m.messages[sessionID], msg)
	return msg, nil
}

func (m *memStore) InsertFile(_ context.Context, _ analysis.FileRecord) error { return nil }

func (m *memStore) ListRecent(_ context.Context, limit int) ([]analysis.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []analysis.Session
	for _, s := range m.sessions {
		if len(out) == limit {
			break
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) GetBySession(_ context.Context, sessionID string) (analysis.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return analysis.Session{}, analysis.ErrNotFound
	}
	return s, nil
}

func (m *memStore) ListMessages(_ context.Context, sessionID string) ([]analysis.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[sessionID], nil
}

func (m *memStore) ListFiles(_ context.Context, _ string) ([]analysis.FileRecord, error) {
	return nil, nil
}

func (m *memStore) CascadeDelete(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	delete(m.messages, sessionID)
	return ok, nil
}

type emptyExtractor struct{}

func (emptyExtractor) Process(_ context.Context, files []extract.Input) ([]extract.FileResult, error) {
	results := make([]extract.FileResult, 0, len(files))
	for _, f := range files {
		results = append(results, extract.FileResult{SourceFile: f.Name})
	}
	return results, nil
}

func newTestRouter(t *testing.T) (chi.Router, *memStore) {
	t.Helper()
	store := newMemStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := analysis.NewService(logger, store, emptyExtractor{}, nil, analysis.NewRegistry())
	handler := NewHandler(logger, svc, 50<<20)
	r := chi.NewRouter()
	r.Route("/api", handler.MountRoutes)
	return r, store
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, value := range fields {
		require.NoError(t, writer.WriteField(name, value))
	}
	for name, data := range files {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestSubmitAccepted(t *testing.T) {
	router, store := newTestRouter(t)

	body, contentType := multipartBody(t,
		map[string]string{"sessionId": "sess-1", "comment": "март-апрель"},
		map[string][]byte{"stmt.pdf": []byte("%PDF-")})
	req := httptest.NewRequest(http.MethodPost, "/api/analysis", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sess-1", resp["sessionId"])
	assert.Equal(t, "generating", resp["status"])

	require.Eventually(t, func() bool {
		s, err := store.GetBySession(context.Background(), "sess-1")
		return err == nil && s.Status.Terminal()
	}, 5*time.Second, 5*time.Millisecond)
}

func TestSubmitWithoutFiles(t *testing.T) {
	router, _ := newTestRouter(t)

	body, contentType := multipartBody(t, map[string]string{"comment": "пусто"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/analysis", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILES_REQUIRED", decodeErrorCode(t, rec))
}

func TestSubmitFileTooLarge(t *testing.T) {
	store := newMemStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := analysis.NewService(logger, store, emptyExtractor{}, nil, analysis.NewRegistry())
	handler := NewHandler(logger, svc, 16) // 16-byte limit for the test
	router := chi.NewRouter()
	router.Route("/api", handler.MountRoutes)

	body, contentType := multipartBody(t, nil, map[string][]byte{
		"big.pdf": bytes.Repeat([]byte("x"), 17),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/analysis", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE_TOO_LARGE", decodeErrorCode(t, rec))
}

func TestSubmitDuplicateConflicts(t *testing.T) {
	router, store := newTestRouter(t)

	// Pin the claim so the first submission is still running.
	status := analysis.StatusGenerating
	require.NoError(t, store.UpsertReport(context.Background(), "busy", analysis.ReportPatch{Status: &status}))

	first, contentType := multipartBody(t, map[string]string{"sessionId": "busy"},
		map[string][]byte{"stmt.pdf": []byte("%PDF-")})
	req := httptest.NewRequest(http.MethodPost, "/api/analysis", first)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(httptest.NewRecorder(), req)

	second, contentType2 := multipartBody(t, map[string]string{"sessionId": "busy"},
		map[string][]byte{"stmt.pdf": []byte("%PDF-")})
	req2 := httptest.NewRequest(http.MethodPost, "/api/analysis", second)
	req2.Header.Set("Content-Type", contentType2)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)

	// Either the duplicate raced in before the first finished (409) or the
	// first already completed (202); both are valid per the dedup contract.
	if rec2.Code == http.StatusConflict {
		assert.Equal(t, "ANALYSIS_IN_PROGRESS", decodeErrorCode(t, rec2))
	} else {
		assert.Equal(t, http.StatusAccepted, rec2.Code)
	}
}

func TestGetUnknownSession(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/ghost", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "REPORT_NOT_FOUND", decodeErrorCode(t, rec))
}

func TestGetSession(t *testing.T) {
	router, store := newTestRouter(t)
	status := analysis.StatusCompleted
	text := "Отчет о выручке"
	require.NoError(t, store.UpsertReport(context.Background(), "done", analysis.ReportPatch{
		Status:     &status,
		ReportText: &text,
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/reports/done", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp analysis.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, analysis.StatusCompleted, resp.Status)
	assert.Equal(t, text, resp.ReportText)
}

func TestListReports(t *testing.T) {
	router, store := newTestRouter(t)
	status := analysis.StatusCompleted
	require.NoError(t, store.UpsertReport(context.Background(), "a", analysis.ReportPatch{Status: &status}))

	req := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Reports []analysis.Session `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Reports, 1)
}

func TestMessagesOrdered(t *testing.T) {
	router, store := newTestRouter(t)
	status := analysis.StatusCompleted
	require.NoError(t, store.UpsertReport(context.Background(), "s", analysis.ReportPatch{Status: &status}))
	_, err := store.AppendMessage(context.Background(), "s", "user", map[string]string{"text": "вопрос"})
	require.NoError(t, err)
	_, err = store.AppendMessage(context.Background(), "s", "assistant", map[string]string{"text": "ответ"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/s/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []analysis.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, 1, resp.Messages[0].Order)
	assert.Equal(t, "user", resp.Messages[0].Role)
	assert.Equal(t, 2, resp.Messages[1].Order)
}

func TestDeleteSession(t *testing.T) {
	router, store := newTestRouter(t)
	status := analysis.StatusCompleted
	require.NoError(t, store.UpsertReport(context.Background(), "gone", analysis.ReportPatch{Status: &status}))

	req := httptest.NewRequest(http.MethodDelete, "/api/reports/gone", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req2 := httptest.NewRequest(http.MethodDelete, "/api/reports/gone", nil)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusNotFound, rec2.Code)
}
