package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// Subprocess runs the extractor CLI once per PDF. Each file is streamed to a
// temporary path that is removed on every exit path; failures never abort the
// rest of the batch.
type Subprocess struct {
	Path        string
	FileTimeout time.Duration
	Logger      *slog.Logger
}

// NewSubprocess constructs a Subprocess adapter with the default per-file
// timeout.
func NewSubprocess(path string, logger *slog.Logger) *Subprocess {
	return &Subprocess{Path: path, FileTimeout: DefaultFileTimeout, Logger: logger}
}

// Available probes the extractor binary. Used for a startup log line only.
func (s *Subprocess) Available(ctx context.Context) bool {
	probe, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return exec.CommandContext(probe, s.Path, "--help").Run() == nil
}

// Process implements Extractor.
func (s *Subprocess) Process(ctx context.Context, files []Input) ([]FileResult, error) {
	results := make([]FileResult, 0, len(files))
	for _, file := range files {
		results = append(results, s.processOne(ctx, file))
	}
	return results, nil
}

func (s *Subprocess) processOne(ctx context.Context, file Input) FileResult {
	tmp, err := os.CreateTemp("", "revradar-*.pdf")
	if err != nil {
		return FileResult{SourceFile: file.Name, Error: fmt.Sprintf("temp file: %v", err)}
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmp.Write(file.Data); err != nil {
		_ = tmp.Close()
		return FileResult{SourceFile: file.Name, Error: fmt.Sprintf("write temp file: %v", err)}
	}
	if err := tmp.Close(); err != nil {
		return FileResult{SourceFile: file.Name, Error: fmt.Sprintf("close temp file: %v", err)}
	}

	timeout := s.FileTimeout
	if timeout <= 0 {
		timeout = DefaultFileTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.Path, "--json", tmpPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return FileResult{SourceFile: file.Name, Error: fmt.Sprintf("extractor timeout after %s", timeout)}
		}
		return FileResult{SourceFile: file.Name, Error: fmt.Sprintf("extractor failed: %v: %s", err, firstLine(stderr.String()))}
	}

	parsed, err := ParseOutput(stdout.String())
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("extractor output unparseable",
				slog.String("file", file.Name), slog.Any("error", err))
		}
		return FileResult{SourceFile: file.Name, Error: err.Error()}
	}
	if len(parsed) == 0 {
		// No credit rows in this statement.
		return FileResult{SourceFile: file.Name, Transactions: nil}
	}
	// One file per invocation: the extractor reports the temp path, so the
	// original name wins. Extra elements are folded into the first.
	merged := parsed[0]
	merged.SourceFile = file.Name
	for _, extra := range parsed[1:] {
		merged.Transactions = append(merged.Transactions, extra.Transactions...)
	}
	return merged
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
