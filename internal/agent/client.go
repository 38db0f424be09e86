// Package agent talks to the OpenAI-compatible LLM that resolves ambiguous
// transactions. The transport is the responses API: one POST per review
// batch, plus a status lookup used by session reconciliation.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Terminal provider states, as reported by the responses API.
const (
	StatusCompleted  = "completed"
	StatusIncomplete = "incomplete"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
	StatusExpired    = "expired"
)

// ErrNoAPIKey is returned when classification is requested without a key.
var ErrNoAPIKey = errors.New("agent: api key not configured")

// Config carries the client settings.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Client is a minimal responses-API client over net/http.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient constructs a Client. The timeout bounds a single attempt; the
// context passed to calls may shorten it further.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		timeout:    timeout,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Response is the subset of the provider reply the pipeline uses.
type Response struct {
	ID     string
	Status string
	Text   string
}

type responseRequest struct {
	Model        string `json:"model"`
	Instructions string `json:"instructions,omitempty"`
	Input        string `json:"input"`
}

type responseEnvelope struct {
	ID         string       `json:"id"`
	Status     string       `json:"status"`
	Output     []outputItem `json:"output"`
	OutputText string       `json:"output_text"`
	Error      *apiError    `json:"error"`
}

type outputItem struct {
	Type    string        `json:"type"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// CreateResponse submits instructions plus user input and waits for the
// reply. Transport failures, 429s, and 5xx responses are retried up to
// MaxRetries times; semantic problems in the reply body are the caller's
// concern.
func (c *Client) CreateResponse(ctx context.Context, instructions, input string) (Response, error) {
	if c.apiKey == "" {
		return Response{}, ErrNoAPIKey
	}
	payload, err := json.Marshal(responseRequest{
		Model:        c.model,
		Instructions: instructions,
		Input:        input,
	})
	if err != nil {
		return Response{}, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if c.logger != nil {
				c.logger.Warn("llm retry", slog.Int("attempt", attempt), slog.Any("error", lastErr))
			}
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		resp, retryable, err := c.attempt(ctx, payload)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return Response{}, lastErr
}

func (c *Client) attempt(ctx context.Context, payload []byte) (Response, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(payload))
	if err != nil {
		return Response{}, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, true, fmt.Errorf("agent: request failed: %w", err)
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, true, fmt.Errorf("agent: read response: %w", err)
	}
	if httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500 {
		return Response{}, true, fmt.Errorf("agent: provider returned status %d", httpResp.StatusCode)
	}
	if httpResp.StatusCode >= 400 {
		return Response{}, false, fmt.Errorf("agent: provider returned status %d: %s", httpResp.StatusCode, errorMessage(body))
	}

	var envelope responseEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Response{}, false, fmt.Errorf("agent: malformed provider reply: %w", err)
	}
	if envelope.Error != nil && envelope.Error.Message != "" {
		return Response{}, false, fmt.Errorf("agent: provider error: %s", envelope.Error.Message)
	}
	return Response{ID: envelope.ID, Status: envelope.Status, Text: envelope.text()}, false, nil
}

// ResponseStatus looks up the provider-side status of an earlier response.
// Single attempt: reconciliation is best-effort.
func (c *Client) ResponseStatus(ctx context.Context, id string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/responses/"+id, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("agent: status lookup failed: %w", err)
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", err
	}
	if httpResp.StatusCode >= 400 {
		return "", fmt.Errorf("agent: status lookup returned %d", httpResp.StatusCode)
	}
	var envelope responseEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("agent: malformed status reply: %w", err)
	}
	return envelope.Status, nil
}

// IsTerminalStatus reports whether a provider status will never change again.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusIncomplete, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

func (e responseEnvelope) text() string {
	if e.OutputText != "" {
		return e.OutputText
	}
	var b strings.Builder
	for _, item := range e.Output {
		for _, part := range item.Content {
			if part.Type == "" || strings.Contains(part.Type, "text") {
				b.WriteString(part.Text)
			}
		}
	}
	return b.String()
}

func errorMessage(body []byte) string {
	var envelope responseEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		return envelope.Error.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
