// Package http exposes the analysis API surface: submission, listing,
// per-session reads, and deletion.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/revradar/revradar/internal/analysis"
	"github.com/revradar/revradar/internal/platform/httpx"
)

// multipartMemory is the in-memory threshold for multipart parsing; larger
// parts spill to temp files.
const multipartMemory = 32 << 20

// Handler wires the analysis endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *analysis.Service
	validator   *validator.Validate
	maxFileSize int64
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *analysis.Service, maxFileSize int64) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		validator:   validator.New(),
		maxFileSize: maxFileSize,
	}
}

// MountRoutes registers the analysis routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/analysis", h.submit)
	r.Get("/reports", h.list)
	r.Get("/reports/{sessionID}", h.get)
	r.Get("/reports/{sessionID}/messages", h.messages)
	r.Delete("/reports/{sessionID}", h.delete)
}

type submitForm struct {
	SessionID string `validate:"omitempty,max=128"`
	Comment   string `validate:"max=10240"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "malformed multipart body")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeFilesRequired, "at least one file is required")
		return
	}

	form := submitForm{
		SessionID: strings.TrimSpace(r.FormValue("sessionId")),
		Comment:   r.FormValue("comment"),
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "invalid sessionId or comment")
		return
	}

	var metadata map[string]any
	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "metadata is not a JSON object")
			return
		}
	}

	uploads := make([]analysis.Upload, 0, len(headers))
	for _, header := range headers {
		if header.Size > h.maxFileSize {
			httpx.Error(w, http.StatusBadRequest, httpx.CodeFileTooLarge, header.Filename+" exceeds the size limit")
			return
		}
		upload, err := readUpload(header)
		if err != nil {
			h.logger.Error("read upload", slog.String("file", header.Filename), slog.Any("error", err))
			httpx.Error(w, http.StatusBadRequest, httpx.CodeValidation, "unreadable file "+header.Filename)
			return
		}
		uploads = append(uploads, upload)
	}

	sessionID, err := h.service.Submit(r.Context(), analysis.SubmitInput{
		SessionID: form.SessionID,
		Comment:   form.Comment,
		Metadata:  metadata,
		Uploads:   uploads,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusAccepted, map[string]any{
		"sessionId": sessionID,
		"status":    analysis.StatusGenerating,
	})
}

func readUpload(header *multipart.FileHeader) (analysis.Upload, error) {
	f, err := header.Open()
	if err != nil {
		return analysis.Upload{}, err
	}
	defer func() {
		_ = f.Close()
	}()
	data, err := io.ReadAll(f)
	if err != nil {
		return analysis.Upload{}, err
	}
	return analysis.Upload{
		Name: header.Filename,
		Size: header.Size,
		Mime: header.Header.Get("Content-Type"),
		Data: data,
	}, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.ListRecent(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	if sessions == nil {
		sessions = []analysis.Session{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reports": sessions})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	sess, files, err := h.service.Get(r.Context(), sessionID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{Session: sess, Files: files})
}

// sessionResponse enriches the session row with its file records.
type sessionResponse struct {
	analysis.Session
	Files []analysis.FileRecord `json:"files,omitempty"`
}

func (h *Handler) messages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	messages, err := h.service.Messages(r.Context(), sessionID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if messages == nil {
		messages = []analysis.Message{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.service.Delete(r.Context(), sessionID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analysis.ErrNotFound):
		httpx.Error(w, http.StatusNotFound, httpx.CodeReportNotFound, "session not found")
	case errors.Is(err, analysis.ErrSessionRunning):
		httpx.Error(w, http.StatusConflict, httpx.CodeAnalysisInProgress, "analysis for this session is already running")
	case errors.Is(err, analysis.ErrNoFiles):
		httpx.Error(w, http.StatusBadRequest, httpx.CodeFilesRequired, "at least one file is required")
	case errors.Is(err, analysis.ErrFileTooLarge):
		httpx.Error(w, http.StatusBadRequest, httpx.CodeFileTooLarge, "file exceeds the size limit")
	case errors.Is(err, analysis.ErrUpstream):
		httpx.Error(w, http.StatusBadGateway, httpx.CodeUpstream, "upstream service unavailable")
	default:
		h.logger.Error("analysis api error", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, httpx.CodeAnalysisFailed, "internal error")
	}
}
