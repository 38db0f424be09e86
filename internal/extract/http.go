package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Client calls the extractor's HTTP service form. The whole batch travels in
// one multipart request; a transport failure therefore fails the batch.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	fileTimeout time.Duration
}

// NewClient constructs a Client. The per-file timeout scales with batch size
// on Process.
func NewClient(baseURL string, fileTimeout time.Duration) *Client {
	if fileTimeout <= 0 {
		fileTimeout = DefaultFileTimeout
	}
	return &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{},
		fileTimeout: fileTimeout,
	}
}

// Ping checks if the extractor service is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", c.baseURL), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("extractor returned status %d", resp.StatusCode)
	}
	return nil
}

// Process implements Extractor.
func (c *Client) Process(ctx context.Context, files []Input) ([]FileResult, error) {
	if len(files) == 0 {
		return nil, nil
	}
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, file := range files {
		part, err := writer.CreateFormFile("files", file.Name)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.fileTimeout*time.Duration(len(files)))
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, fmt.Sprintf("%s/process", c.baseURL), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extract: service unreachable: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("extract: service returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("extract: read service response: %w", err)
	}
	var results []FileResult
	if err := json.Unmarshal(raw, &results); err != nil {
		// Some deployments proxy the CLI and echo its log lines.
		return ParseOutput(string(raw))
	}
	return results, nil
}
