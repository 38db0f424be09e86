package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cleanOutput = `[
  {
    "source_file": "stmt-A.pdf",
    "metadata": {"bank_name": "Halyk", "currency": "KZT"},
    "transactions": [
      {"Дата": "04.03.2024", "Кредит": "500 000", "Назначение платежа": "Оплата по СФ №12"}
    ]
  }
]`

func TestParseOutputCleanJSON(t *testing.T) {
	results, err := ParseOutput(cleanOutput)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "stmt-A.pdf", results[0].SourceFile)
	assert.Equal(t, "KZT", results[0].Metadata["currency"])
	require.Len(t, results[0].Transactions, 1)
	assert.Equal(t, "500 000", results[0].Transactions[0]["Кредит"])
}

func TestParseOutputMixedLogs(t *testing.T) {
	mixed := "[INFO] opening stmt-A.pdf\nprocessing 12 pages\n" + cleanOutput + "\n[INFO] done\n"
	results, err := ParseOutput(mixed)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "stmt-A.pdf", results[0].SourceFile)
}

func TestParseOutputBracketsInsideStrings(t *testing.T) {
	out := "log line\n" + `[{"source_file": "a.pdf", "transactions": [{"Назначение платежа": "Оплата [за услуги] \"ИП\""}]}]`
	results, err := ParseOutput(out)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0].Transactions, 1)
}

func TestParseOutputNoCreditMarker(t *testing.T) {
	results, err := ParseOutput("warming up\nNo credit rows found.\n")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestParseOutputSingleObject(t *testing.T) {
	results, err := ParseOutput(`{"source_file": "b.pdf", "error": "Adobe limit"}`)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Adobe limit", results[0].Error)
}

func TestParseOutputRepairsSloppyJSON(t *testing.T) {
	// Trailing comma keeps json.Valid false until repaired.
	sloppy := `[{"source_file": "c.pdf", "transactions": [],},]`
	results, err := ParseOutput(sloppy)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c.pdf", results[0].SourceFile)
}

func TestParseOutputGarbage(t *testing.T) {
	_, err := ParseOutput("completely textual output")
	assert.Error(t, err)

	_, err = ParseOutput("")
	assert.Error(t, err)
}
