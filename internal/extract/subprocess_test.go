package extract

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts unavailable")
	}
	path := filepath.Join(t.TempDir(), "extractor.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestSubprocessProcess(t *testing.T) {
	script := writeScript(t, `echo "[INFO] extracting $2"
cat <<'EOF'
[
  {
    "source_file": "tmp-123.pdf",
    "metadata": {"currency": "KZT"},
    "transactions": [{"Дата": "04.03.2024", "Кредит": "500 000"}]
  }
]
EOF`)
	adapter := NewSubprocess(script, nil)
	results, err := adapter.Process(context.Background(), []Input{{Name: "stmt-A.pdf", Data: []byte("%PDF-1.4")}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "stmt-A.pdf", results[0].SourceFile, "original name replaces the temp path")
	assert.Empty(t, results[0].Error)
	require.Len(t, results[0].Transactions, 1)
}

func TestSubprocessNoCreditRows(t *testing.T) {
	script := writeScript(t, `echo "No credit rows found."`)
	adapter := NewSubprocess(script, nil)
	results, err := adapter.Process(context.Background(), []Input{{Name: "empty.pdf", Data: []byte("%PDF-1.4")}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Error)
	assert.Empty(t, results[0].Transactions)
}

func TestSubprocessPerFileFailureKeepsBatch(t *testing.T) {
	script := writeScript(t, `if grep -q POISON "$2"; then
  echo "Adobe limit" >&2
  exit 3
fi
cat <<'EOF'
[{"source_file": "x.pdf", "transactions": [{"Кредит": "100"}]}]
EOF`)
	adapter := NewSubprocess(script, nil)
	results, err := adapter.Process(context.Background(), []Input{
		{Name: "good.pdf", Data: []byte("%PDF-1.4")},
		{Name: "bad.pdf", Data: []byte("%PDF-1.4 POISON")},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Empty(t, results[0].Error)
	assert.NotEmpty(t, results[1].Error)
}

func TestSubprocessMissingBinary(t *testing.T) {
	adapter := NewSubprocess(filepath.Join(t.TempDir(), "missing"), nil)
	results, err := adapter.Process(context.Background(), []Input{{Name: "a.pdf", Data: []byte("%PDF-1.4")}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NotEmpty(t, results[0].Error)
}
