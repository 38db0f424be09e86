package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorize(t *testing.T) {
	cases := []struct {
		name string
		mime string
		want Category
	}{
		{"statement-march.pdf", "application/pdf", CategoryStatements},
		{"vypiska", "application/pdf", CategoryStatements},
		{"Декларация 910.pdf", "application/pdf", CategoryTaxes},
		{"form-702.PDF", "", CategoryTaxes},
		{"tax-report-2024.pdf", "application/pdf", CategoryTaxes},
		{"Баланс 2024.pdf", "application/pdf", CategoryFinancial},
		{"ОСВ оборотно-сальдовая.pdf", "", CategoryFinancial},
		{"turnover.xlsx", "", CategoryFinancial},
		{"scan.JPG", "", CategoryFinancial},
		{"docs.zip", "application/zip", CategoryFinancial},
		{"photo", "image/png", CategoryFinancial},
		{"notes.txt", "text/plain", CategoryUncategorized},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Categorize(tc.name, tc.mime), "file %q", tc.name)
	}
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF("a.pdf", ""))
	assert.True(t, IsPDF("a.PDF", ""))
	assert.True(t, IsPDF("statement", "application/pdf"))
	assert.False(t, IsPDF("a.xlsx", ""))
}

func TestSummarizeCanonicalShape(t *testing.T) {
	uploads := []Upload{
		{Name: "stmt.pdf", Size: 100, Mime: "application/pdf"},
		{Name: "osv.xlsx", Size: 200, Mime: ""},
	}
	summaries := Summarize(uploads)
	assert.Equal(t, []FileSummary{
		{Name: "stmt.pdf", Size: 100, Mime: "application/pdf", Category: CategoryStatements},
		{Name: "osv.xlsx", Size: 200, Category: CategoryFinancial},
	}, summaries)
}
