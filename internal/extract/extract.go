// Package extract invokes the external PDF-to-tabular-data extractor and
// recovers its results. Two adapters share one interface: a subprocess runner
// around the extractor CLI and an HTTP client for its service form. The
// orchestrator never depends on the transport.
package extract

import (
	"context"
	"time"
)

// DefaultFileTimeout bounds a single PDF extraction.
const DefaultFileTimeout = 5 * time.Minute

// NoCreditMarker is printed by the extractor when a statement yields no
// credit rows. It is a successful empty result, not a failure.
const NoCreditMarker = "No credit rows found"

// Input is one PDF handed to the extractor.
type Input struct {
	Name string
	Data []byte
}

// ExcelArtifact is the converted-statement spreadsheet some extractor
// versions return alongside the transactions.
type ExcelArtifact struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Mime string `json:"mime"`
	Data string `json:"data,omitempty"`
}

// FileResult is the extractor's verdict for a single source PDF. Error is
// mutually exclusive with the payload fields.
type FileResult struct {
	SourceFile   string           `json:"source_file"`
	Metadata     map[string]any   `json:"metadata,omitempty"`
	Transactions []map[string]any `json:"transactions,omitempty"`
	Excel        *ExcelArtifact   `json:"excel_file,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// Extractor turns a batch of PDFs into per-file results. Implementations
// report per-file failures inside FileResult.Error and reserve the returned
// error for faults that invalidate the whole batch.
type Extractor interface {
	Process(ctx context.Context, files []Input) ([]FileResult, error)
}
