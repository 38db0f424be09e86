// Package analysis owns the session lifecycle: persistence of submissions,
// the background extraction/classification pipeline, and the in-process
// registry that deduplicates running sessions.
package analysis

import (
	"encoding/json"
	"errors"
	"time"
)

// Session statuses. Transitions are monotonic: generating moves to exactly
// one of completed or failed and never back.
type Status string

const (
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status will never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// OpenAIStatus tracks the LLM call outcome, orthogonal to the session status.
type OpenAIStatus string

const (
	OpenAISkipped   OpenAIStatus = "skipped"
	OpenAICompleted OpenAIStatus = "completed"
	OpenAIPartial   OpenAIStatus = "partial"
	OpenAIFailed    OpenAIStatus = "failed"
)

// File categories assigned at ingest.
type Category string

const (
	CategoryStatements    Category = "statements"
	CategoryTaxes         Category = "taxes"
	CategoryFinancial     Category = "financial"
	CategoryConverted     Category = "converted-statement"
	CategoryUncategorized Category = "uncategorized"
)

// Classification sources.
type Source string

const (
	SourceHeuristic     Source = "heuristic"
	SourceAgent         Source = "agent"
	SourceAgentMissing  Source = "agent-missing"
	SourceAgentRequired Source = "agent-required"
)

// Sentinel errors surfaced to the ingress layer.
var (
	ErrNotFound       = errors.New("analysis: session not found")
	ErrSessionRunning = errors.New("analysis: session already running")
	ErrNoFiles        = errors.New("analysis: submission carries no files")
	ErrFileTooLarge   = errors.New("analysis: file exceeds the size limit")
	ErrUpstream       = errors.New("analysis: upstream service unavailable")
)

// Upload is one file received with a submission.
type Upload struct {
	Name string
	Size int64
	Mime string
	Data []byte
}

// Transaction is one credit-side entry in flight through the pipeline.
// Transactions are never persisted individually; only the aggregated report
// survives.
type Transaction struct {
	ID                 string
	RawAmount          string
	Amount             float64
	Date               *time.Time
	Purpose            string
	Sender             string
	Correspondent      string
	BIN                string
	Source             Source
	Reason             string
	PossibleNonRevenue bool
}

// FileSummary is the canonical files-data element. Every write path uses
// this shape.
type FileSummary struct {
	Name           string   `json:"name"`
	Size           int64    `json:"size"`
	Mime           string   `json:"mime"`
	Category       Category `json:"category"`
	ExternalFileID string   `json:"externalFileId,omitempty"`
}

// FileRecord is a persisted file row.
type FileRecord struct {
	ID             int64     `json:"id"`
	SessionID      string    `json:"sessionId"`
	ExternalFileID string    `json:"externalFileId,omitempty"`
	Name           string    `json:"name"`
	Size           int64     `json:"size"`
	Mime           string    `json:"mime"`
	Category       Category  `json:"category"`
	UploadedAt     time.Time `json:"uploadedAt"`
}

// Message is a persisted conversational entry. Orders are dense 1..N per
// session.
type Message struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"sessionId"`
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	Order     int             `json:"order"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Session is the durable unit of work: one submission, one report.
type Session struct {
	SessionID        string          `json:"sessionId"`
	Status           Status          `json:"status"`
	Comment          string          `json:"comment,omitempty"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
	FilesCount       int             `json:"filesCount"`
	FilesData        []FileSummary   `json:"filesData,omitempty"`
	ReportText       string          `json:"reportText,omitempty"`
	ReportStructured json.RawMessage `json:"reportStructured,omitempty"`
	TaxReport        json.RawMessage `json:"taxReport,omitempty"`
	FinancialReport  json.RawMessage `json:"financialReport,omitempty"`
	OpenAIStatus     OpenAIStatus    `json:"openaiStatus,omitempty"`
	OpenAIResponseID string          `json:"-"`
	CreatedAt        time.Time       `json:"createdAt"`
	CompletedAt      *time.Time      `json:"completedAt,omitempty"`
}

// ReportPatch is the upsert payload. Nil fields preserve the stored value
// (COALESCE on update); a terminal stored status is only replaced by another
// terminal status.
type ReportPatch struct {
	Status           *Status
	Comment          *string
	Metadata         map[string]any
	FilesCount       *int
	FilesData        []FileSummary
	ReportText       *string
	ReportStructured json.RawMessage
	TaxReport        json.RawMessage
	FinancialReport  json.RawMessage
	OpenAIStatus     *OpenAIStatus
	OpenAIResponseID *string
	CompletedAt      *time.Time
}
