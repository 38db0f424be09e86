package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/revradar/revradar/internal/agent"
	"github.com/revradar/revradar/internal/classify"
	"github.com/revradar/revradar/internal/extract"
	"github.com/revradar/revradar/internal/normalize"
	"github.com/revradar/revradar/internal/report"
)

// Store is the persistence surface the orchestrator needs.
type Store interface {
	UpsertReport(ctx context.Context, sessionID string, patch ReportPatch) error
	AppendMessage(ctx context.Context, sessionID, role string, content any) (Message, error)
	InsertFile(ctx context.Context, rec FileRecord) error
	ListRecent(ctx context.Context, limit int) ([]Session, error)
	GetBySession(ctx context.Context, sessionID string) (Session, error)
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)
	ListFiles(ctx context.Context, sessionID string) ([]FileRecord, error)
	CascadeDelete(ctx context.Context, sessionID string) (bool, error)
}

// Agent resolves ambiguous transactions and reports provider-side response
// status.
type Agent interface {
	CreateResponse(ctx context.Context, instructions, input string) (agent.Response, error)
	ResponseStatus(ctx context.Context, id string) (string, error)
}

// Service is the session orchestrator: it claims sessions, runs the
// background pipeline, and answers reads.
type Service struct {
	logger    *slog.Logger
	store     Store
	extractor extract.Extractor
	agent     Agent
	registry  *Registry

	refreshGroup singleflight.Group
	now          func() time.Time
}

// NewService constructs the orchestrator. The agent may be nil when no LLM
// key is configured; sessions with ambiguous transactions then fail.
func NewService(logger *slog.Logger, store Store, extractor extract.Extractor, llm Agent, registry *Registry) *Service {
	return &Service{
		logger:    logger,
		store:     store,
		extractor: extractor,
		agent:     llm,
		registry:  registry,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SubmitInput is one analysis submission.
type SubmitInput struct {
	SessionID string
	Comment   string
	Metadata  map[string]any
	Uploads   []Upload
}

// Submit claims the session, persists the initial generating row, and starts
// the background pipeline. Returns the session id immediately.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (string, error) {
	if len(in.Uploads) == 0 {
		return "", ErrNoFiles
	}
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if !s.registry.Claim(sessionID) {
		return "", ErrSessionRunning
	}

	status := StatusGenerating
	count := len(in.Uploads)
	patch := ReportPatch{
		Status:     &status,
		Metadata:   in.Metadata,
		FilesCount: &count,
		FilesData:  Summarize(in.Uploads),
	}
	if comment := strings.TrimSpace(in.Comment); comment != "" {
		patch.Comment = &comment
	}
	if err := s.store.UpsertReport(ctx, sessionID, patch); err != nil {
		s.registry.Release(sessionID)
		return "", fmt.Errorf("analysis: persist submission: %w", err)
	}

	go s.run(sessionID, in)
	return sessionID, nil
}

// run is the background task for one session. The claim is released on every
// exit path; panics mark the session failed.
func (s *Service) run(sessionID string, in SubmitInput) {
	ctx := context.Background()
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("analysis pipeline panicked",
				slog.String("session", sessionID), slog.Any("panic", rec))
			s.markFailed(ctx, sessionID, fmt.Sprintf("внутренняя ошибка анализа: %v", rec), nil)
		}
		s.registry.Release(sessionID)
	}()

	if err := s.process(ctx, sessionID, in); err != nil {
		s.logger.Error("analysis pipeline failed",
			slog.String("session", sessionID), slog.Any("error", err))
	}
}

func (s *Service) process(ctx context.Context, sessionID string, in SubmitInput) error {
	txns, currency, err := s.ingest(ctx, sessionID, in)
	if err != nil {
		s.markFailed(ctx, sessionID, err.Error(), nil)
		return err
	}

	revenue, nonRevenue, ambiguous := s.partition(txns)
	s.logger.Info("heuristic classification done",
		slog.String("session", sessionID),
		slog.Int("revenue", len(revenue)),
		slog.Int("nonRevenue", len(nonRevenue)),
		slog.Int("ambiguous", len(ambiguous)))

	oaiStatus := OpenAISkipped
	if len(ambiguous) > 0 {
		var resolvedRev, resolvedNon []Transaction
		resolvedRev, resolvedNon, oaiStatus, err = s.review(ctx, sessionID, in.Comment, ambiguous)
		if err != nil {
			s.markFailed(ctx, sessionID, err.Error(), &oaiStatus)
			return err
		}
		revenue = append(revenue, resolvedRev...)
		nonRevenue = append(nonRevenue, resolvedNon...)
	}

	summary := report.Build(entries(revenue), entries(nonRevenue), currency, s.now())
	text := report.Render(summary)
	structured, err := json.Marshal(summary)
	if err != nil {
		s.markFailed(ctx, sessionID, fmt.Sprintf("ошибка сериализации отчета: %v", err), &oaiStatus)
		return err
	}

	status := StatusCompleted
	completedAt := s.now()
	final := ReportPatch{
		Status:           &status,
		ReportText:       &text,
		ReportStructured: structured,
		OpenAIStatus:     &oaiStatus,
		CompletedAt:      &completedAt,
	}
	if err := s.store.UpsertReport(ctx, sessionID, final); err != nil {
		// The one critical write. The row stays generating for the reconciler.
		return fmt.Errorf("analysis: final report upsert: %w", err)
	}
	s.logger.Info("analysis completed",
		slog.String("session", sessionID),
		slog.String("openaiStatus", string(oaiStatus)),
		slog.Int("transactions", summary.Stats.Total))
	return nil
}

// ingest stores file rows, sends PDFs through the extractor, and normalizes
// the returned records into transactions.
func (s *Service) ingest(ctx context.Context, sessionID string, in SubmitInput) ([]Transaction, string, error) {
	var pdfs []extract.Input
	for _, u := range in.Uploads {
		rec := FileRecord{
			SessionID: sessionID,
			Name:      u.Name,
			Size:      u.Size,
			Mime:      u.Mime,
			Category:  Categorize(u.Name, u.Mime),
		}
		if err := s.store.InsertFile(ctx, rec); err != nil {
			s.logger.Warn("file record insert skipped",
				slog.String("session", sessionID), slog.String("file", u.Name), slog.Any("error", err))
		}
		if IsPDF(u.Name, u.Mime) {
			pdfs = append(pdfs, extract.Input{Name: u.Name, Data: u.Data})
		}
	}

	if len(pdfs) == 0 {
		return nil, "KZT", nil
	}

	results, err := s.extractor.Process(ctx, pdfs)
	if err != nil {
		return nil, "", fmt.Errorf("%w: извлечение из PDF не удалось: %v", ErrUpstream, err)
	}

	currency := "KZT"
	var txns []Transaction
	index := 0
	for _, res := range results {
		if res.Error != "" {
			s.logger.Warn("extractor failed for file",
				slog.String("session", sessionID),
				slog.String("file", res.SourceFile),
				slog.String("error", res.Error))
			continue
		}
		if c, ok := res.Metadata["currency"].(string); ok && strings.TrimSpace(c) != "" && currency == "KZT" {
			currency = strings.ToUpper(strings.TrimSpace(c))
		}
		if res.Excel != nil {
			rec := FileRecord{
				SessionID: sessionID,
				Name:      res.Excel.Name,
				Size:      res.Excel.Size,
				Mime:      res.Excel.Mime,
				Category:  CategoryConverted,
			}
			if err := s.store.InsertFile(ctx, rec); err != nil {
				s.logger.Warn("converted statement record insert skipped",
					slog.String("session", sessionID), slog.Any("error", err))
			}
		}
		for _, record := range res.Transactions {
			index++
			txns = append(txns, normalizeRecord(sessionID, index, record))
		}
	}
	return txns, currency, nil
}

// normalizeRecord canonicalizes one free-form extractor record.
func normalizeRecord(sessionID string, index int, rec map[string]any) Transaction {
	txn := Transaction{
		ID:            fmt.Sprintf("%s_%d", sessionID, index),
		Purpose:       normalize.RecordPurpose(rec),
		Sender:        normalize.RecordSender(rec),
		Correspondent: normalize.RecordCorrespondent(rec),
		BIN:           normalize.RecordBIN(rec),
	}
	txn.RawAmount, txn.Amount = normalize.RecordAmount(rec)
	if d, ok := normalize.RecordDate(rec); ok {
		txn.Date = &d
	}
	return txn
}

func (s *Service) partition(txns []Transaction) (revenue, nonRevenue, ambiguous []Transaction) {
	for _, txn := range txns {
		v := classify.Classify(txn.Purpose, txn.Sender)
		txn.Reason = v.Reason
		txn.PossibleNonRevenue = v.PossibleNonRevenue
		switch v.Class {
		case classify.Revenue:
			txn.Source = SourceHeuristic
			revenue = append(revenue, txn)
		case classify.NonRevenue:
			txn.Source = SourceHeuristic
			nonRevenue = append(nonRevenue, txn)
		default:
			txn.Source = SourceAgentRequired
			ambiguous = append(ambiguous, txn)
		}
	}
	return revenue, nonRevenue, ambiguous
}

// review sends the ambiguous subset to the LLM and folds decisions back.
// Items without a decision become non-revenue with source agent-missing.
func (s *Service) review(ctx context.Context, sessionID, comment string, ambiguous []Transaction) (revenue, nonRevenue []Transaction, status OpenAIStatus, err error) {
	if s.agent == nil {
		return nil, nil, OpenAIFailed, fmt.Errorf("%w: классификатор не настроен (нет ключа API)", ErrUpstream)
	}

	items := make([]agent.ReviewItem, 0, len(ambiguous))
	for _, txn := range ambiguous {
		item := agent.ReviewItem{
			ID:            txn.ID,
			Amount:        txn.Amount,
			Purpose:       txn.Purpose,
			Sender:        txn.Sender,
			Correspondent: txn.Correspondent,
			BIN:           txn.BIN,
			Comment:       txn.Reason,
		}
		if txn.Date != nil {
			item.Date = txn.Date.Format("2006-01-02")
		}
		items = append(items, item)
	}

	userMessage, err := agent.BuildUserMessage(items, comment)
	if err != nil {
		return nil, nil, OpenAIFailed, err
	}
	s.persistMessage(ctx, sessionID, "user", userMessage)

	resp, err := s.agent.CreateResponse(ctx, agent.SystemPrompt, userMessage)
	if err != nil {
		return nil, nil, OpenAIFailed, fmt.Errorf("%w: агент не ответил: %v", ErrUpstream, err)
	}
	if resp.ID != "" {
		responseID := resp.ID
		if err := s.store.UpsertReport(ctx, sessionID, ReportPatch{OpenAIResponseID: &responseID}); err != nil {
			s.logger.Warn("response id upsert skipped",
				slog.String("session", sessionID), slog.Any("error", err))
		}
	}
	s.persistMessage(ctx, sessionID, "assistant", resp.Text)

	decisions, err := agent.ParseDecisions(resp.Text)
	if err != nil {
		return nil, nil, OpenAIFailed, fmt.Errorf("ответ агента не разобран: %w", err)
	}
	byID := make(map[string]agent.Decision, len(decisions))
	for _, d := range decisions {
		byID[d.ID] = d
	}

	matched := 0
	for _, txn := range ambiguous {
		if d, ok := byID[txn.ID]; ok {
			matched++
			txn.Source = SourceAgent
			txn.Reason = d.Reason
			if d.IsRevenue {
				revenue = append(revenue, txn)
			} else {
				nonRevenue = append(nonRevenue, txn)
			}
			continue
		}
		// Conservative default for silent items.
		txn.Source = SourceAgentMissing
		txn.Reason = "агент не вернул решение"
		nonRevenue = append(nonRevenue, txn)
	}

	status = OpenAICompleted
	if matched < len(ambiguous) {
		status = OpenAIPartial
	}
	return revenue, nonRevenue, status, nil
}

// persistMessage appends to both the in-memory history and the durable log.
// Database failures here are non-critical.
func (s *Service) persistMessage(ctx context.Context, sessionID, role, text string) {
	s.registry.AppendHistory(sessionID, role, text)
	if _, err := s.store.AppendMessage(ctx, sessionID, role, map[string]string{"text": text}); err != nil {
		s.logger.Warn("message append skipped",
			slog.String("session", sessionID), slog.String("role", role), slog.Any("error", err))
	}
}

// markFailed records a terminal failure with the message as report text.
func (s *Service) markFailed(ctx context.Context, sessionID, message string, oaiStatus *OpenAIStatus) {
	status := StatusFailed
	completedAt := s.now()
	patch := ReportPatch{
		Status:       &status,
		ReportText:   &message,
		OpenAIStatus: oaiStatus,
		CompletedAt:  &completedAt,
	}
	if err := s.store.UpsertReport(ctx, sessionID, patch); err != nil {
		s.logger.Error("failed-state upsert lost",
			slog.String("session", sessionID), slog.Any("error", err))
	}
}

func entries(txns []Transaction) []report.Entry {
	out := make([]report.Entry, 0, len(txns))
	for _, txn := range txns {
		out = append(out, report.Entry{
			ID:     txn.ID,
			Amount: txn.Amount,
			Date:   txn.Date,
			Source: string(txn.Source),
			Reason: txn.Reason,
		})
	}
	return out
}

// ListRecent returns the newest sessions, each reconciled against the LLM
// provider when still generating.
func (s *Service) ListRecent(ctx context.Context) ([]Session, error) {
	sessions, err := s.store.ListRecent(ctx, 100)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		sessions[i] = s.refresh(ctx, sessions[i])
	}
	return sessions, nil
}

// Get returns the session with its file rows, reconciled when still
// generating.
func (s *Service) Get(ctx context.Context, sessionID string) (Session, []FileRecord, error) {
	sess, err := s.store.GetBySession(ctx, sessionID)
	if err != nil {
		return Session{}, nil, err
	}
	sess = s.refresh(ctx, sess)
	files, err := s.store.ListFiles(ctx, sessionID)
	if err != nil {
		s.logger.Warn("list files skipped",
			slog.String("session", sessionID), slog.Any("error", err))
		files = nil
	}
	return sess, files, nil
}

// Messages returns the session's durable messages in order.
func (s *Service) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	if _, err := s.store.GetBySession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, sessionID)
}

// Delete cascades over messages, files, the session row, and the in-process
// registry state.
func (s *Service) Delete(ctx context.Context, sessionID string) error {
	existed, err := s.store.CascadeDelete(ctx, sessionID)
	if err != nil {
		return err
	}
	if !existed {
		return ErrNotFound
	}
	s.registry.Forget(sessionID)
	return nil
}

// refresh reconciles a generating session against the provider-side response
// status. Best effort, idempotent, deduplicated per session id; sessions with
// a live claim are left to their background task.
func (s *Service) refresh(ctx context.Context, sess Session) Session {
	if sess.Status.Terminal() || sess.OpenAIResponseID == "" || s.agent == nil || s.registry.Running(sess.SessionID) {
		return sess
	}

	updated, err, _ := s.refreshGroup.Do(sess.SessionID, func() (any, error) {
		providerStatus, err := s.agent.ResponseStatus(ctx, sess.OpenAIResponseID)
		if err != nil {
			return sess, err
		}
		if !agent.IsTerminalStatus(providerStatus) {
			return sess, nil
		}

		status := StatusFailed
		oaiStatus := OpenAIFailed
		patch := ReportPatch{Status: &status, OpenAIStatus: &oaiStatus}
		completedAt := s.now()
		patch.CompletedAt = &completedAt
		if providerStatus == agent.StatusCompleted || providerStatus == agent.StatusIncomplete {
			status = StatusCompleted
			oaiStatus = OpenAICompleted
			if sess.ReportText == "" {
				note := "Отчет восстановлен по статусу ответа агента."
				patch.ReportText = &note
			}
		}
		if err := s.store.UpsertReport(ctx, sess.SessionID, patch); err != nil {
			return sess, err
		}
		refreshed, err := s.store.GetBySession(ctx, sess.SessionID)
		if err != nil {
			return sess, err
		}
		return refreshed, nil
	})
	if err != nil {
		s.logger.Warn("session refresh skipped",
			slog.String("session", sess.SessionID), slog.Any("error", err))
		return sess
	}
	return updated.(Session)
}
