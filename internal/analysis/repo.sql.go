package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/revradar/revradar/internal/platform/db"
)

// Repository persists sessions, files, and messages.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const upsertReportSQL = `
INSERT INTO sessions (session_id, status, comment, metadata, files_count, files_data,
                      report_text, report_structured, tax_report, financial_report,
                      openai_status, openai_response_id, completed_at)
VALUES ($1, COALESCE($2, 'generating'), $3, $4, COALESCE($5, 0), $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (session_id) DO UPDATE SET
  status = CASE
    WHEN sessions.status IN ('completed','failed') AND ($2::text IS NULL OR $2::text NOT IN ('completed','failed'))
      THEN sessions.status
    ELSE COALESCE($2::text, sessions.status)
  END,
  comment            = COALESCE($3, sessions.comment),
  metadata           = COALESCE($4, sessions.metadata),
  files_count        = COALESCE($5, sessions.files_count),
  files_data         = COALESCE($6, sessions.files_data),
  report_text        = COALESCE($7, sessions.report_text),
  report_structured  = COALESCE($8, sessions.report_structured),
  tax_report         = COALESCE($9, sessions.tax_report),
  financial_report   = COALESCE($10, sessions.financial_report),
  openai_status      = COALESCE($11, sessions.openai_status),
  openai_response_id = COALESCE($12, sessions.openai_response_id),
  completed_at       = COALESCE($13, sessions.completed_at)`

// UpsertReport applies a patch to the session row, inserting it on first
// touch. Nil patch fields preserve existing values; a terminal status never
// regresses to generating. Safe to repeat.
func (r *Repository) UpsertReport(ctx context.Context, sessionID string, patch ReportPatch) error {
	metadata, err := nullableJSON(patch.Metadata)
	if err != nil {
		return fmt.Errorf("analysis: encode metadata: %w", err)
	}
	filesData, err := nullableJSON(patch.FilesData)
	if err != nil {
		return fmt.Errorf("analysis: encode files data: %w", err)
	}

	_, err = r.pool.Exec(ctx, upsertReportSQL,
		sessionID,
		(*string)(patch.Status),
		patch.Comment,
		metadata,
		patch.FilesCount,
		filesData,
		patch.ReportText,
		[]byte(patch.ReportStructured),
		[]byte(patch.TaxReport),
		[]byte(patch.FinancialReport),
		(*string)(patch.OpenAIStatus),
		patch.OpenAIResponseID,
		patch.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("analysis: upsert report: %w", err)
	}
	return nil
}

const appendMessageSQL = `
INSERT INTO session_messages (session_id, role, content, message_order)
VALUES ($1, $2, $3,
        (SELECT COALESCE(MAX(message_order), 0) + 1 FROM session_messages WHERE session_id = $1))
RETURNING id, message_order, created_at`

// AppendMessage atomically allocates the next message order for the session.
// A unique-violation race on the order retries the allocation.
func (r *Repository) AppendMessage(ctx context.Context, sessionID, role string, content any) (Message, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return Message{}, fmt.Errorf("analysis: encode message content: %w", err)
	}

	msg := Message{SessionID: sessionID, Role: role, Content: raw}
	for attempt := 0; attempt < 3; attempt++ {
		err = r.pool.QueryRow(ctx, appendMessageSQL, sessionID, role, raw).
			Scan(&msg.ID, &msg.Order, &msg.CreatedAt)
		if err == nil {
			return msg, nil
		}
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
			break
		}
	}
	return Message{}, fmt.Errorf("analysis: append message: %w", err)
}

const sessionColumns = `session_id, status, comment, metadata, files_count, files_data,
       report_text, report_structured, tax_report, financial_report,
       openai_status, openai_response_id, created_at, completed_at`

// ListRecent returns the newest sessions first. Limit is capped at 100.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("analysis: list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// GetBySession returns the full session row or ErrNotFound.
func (r *Repository) GetBySession(ctx context.Context, sessionID string) (Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = $1`, sessionID)
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return s, err
}

// ListMessages returns the session's messages ordered by message order.
func (r *Repository) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, role, content, message_order, created_at
		   FROM session_messages WHERE session_id = $1 ORDER BY message_order`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("analysis: list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Order, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// InsertFile appends one file row.
func (r *Repository) InsertFile(ctx context.Context, rec FileRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_files (session_id, external_file_id, original_name, size_bytes, mime_type, category)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)`,
		rec.SessionID, rec.ExternalFileID, rec.Name, rec.Size, rec.Mime, string(rec.Category))
	if err != nil {
		return fmt.Errorf("analysis: insert file: %w", err)
	}
	return nil
}

// ListFiles returns the session's file rows in insertion order.
func (r *Repository) ListFiles(ctx context.Context, sessionID string) ([]FileRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, COALESCE(external_file_id, ''), original_name, size_bytes,
		        COALESCE(mime_type, ''), category, uploaded_at
		   FROM session_files WHERE session_id = $1 ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("analysis: list files: %w", err)
	}
	defer rows.Close()

	var files []FileRecord
	for rows.Next() {
		var f FileRecord
		if err := rows.Scan(&f.ID, &f.SessionID, &f.ExternalFileID, &f.Name, &f.Size, &f.Mime, &f.Category, &f.UploadedAt); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// CascadeDelete removes the session with its messages and files in one
// transaction. Reports whether the session row existed.
func (r *Repository) CascadeDelete(ctx context.Context, sessionID string) (bool, error) {
	var existed bool
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM session_messages WHERE session_id = $1`, sessionID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM session_files WHERE session_id = $1`, sessionID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
		if err != nil {
			return err
		}
		existed = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("analysis: cascade delete: %w", err)
	}
	return existed, nil
}

func scanSession(row pgx.Row) (Session, error) {
	var (
		s           Session
		comment     *string
		metadata    []byte
		filesData   []byte
		reportText  *string
		structured  []byte
		taxReport   []byte
		finReport   []byte
		oaiStatus   *string
		oaiResponse *string
	)
	err := row.Scan(&s.SessionID, &s.Status, &comment, &metadata, &s.FilesCount, &filesData,
		&reportText, &structured, &taxReport, &finReport,
		&oaiStatus, &oaiResponse, &s.CreatedAt, &s.CompletedAt)
	if err != nil {
		return Session{}, err
	}
	if comment != nil {
		s.Comment = *comment
	}
	if reportText != nil {
		s.ReportText = *reportText
	}
	if oaiStatus != nil {
		s.OpenAIStatus = OpenAIStatus(*oaiStatus)
	}
	if oaiResponse != nil {
		s.OpenAIResponseID = *oaiResponse
	}
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &s.Metadata)
	}
	if len(filesData) > 0 {
		_ = json.Unmarshal(filesData, &s.FilesData)
	}
	s.ReportStructured = structured
	s.TaxReport = taxReport
	s.FinancialReport = finReport
	return s, nil
}

// nullableJSON encodes v as JSONB, mapping Go nil to SQL NULL so COALESCE
// keeps the stored value.
func nullableJSON(v any) ([]byte, error) {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return nil, nil
		}
	case []FileSummary:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
