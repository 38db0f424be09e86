package analysis

import (
	"path/filepath"
	"strings"
)

var taxNameMarkers = []string{"налог", "декларац", "tax", "702", "910", "913"}

var financialNameMarkers = []string{"баланс", "balance", "осв", "оборотно"}

var financialExtensions = map[string]bool{
	".xlsx": true, ".xls": true, ".zip": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
}

// IsPDF reports whether an upload travels the statement-extraction path.
func IsPDF(name, mime string) bool {
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return true
	}
	return strings.EqualFold(mime, "application/pdf")
}

// Categorize derives the file category from name and mime type. PDFs default
// to statements unless the name carries tax or financial-statement markers;
// spreadsheets, images, and archives are auxiliary financial documents.
func Categorize(name, mime string) Category {
	lower := strings.ToLower(name)
	if IsPDF(name, mime) {
		if containsAny(lower, taxNameMarkers) {
			return CategoryTaxes
		}
		if containsAny(lower, financialNameMarkers) {
			return CategoryFinancial
		}
		return CategoryStatements
	}
	if financialExtensions[strings.ToLower(filepath.Ext(name))] || strings.HasPrefix(mime, "image/") {
		return CategoryFinancial
	}
	return CategoryUncategorized
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// Summarize builds the canonical files-data array for a submission.
func Summarize(uploads []Upload) []FileSummary {
	out := make([]FileSummary, 0, len(uploads))
	for _, u := range uploads {
		out = append(out, FileSummary{
			Name:     u.Name,
			Size:     u.Size,
			Mime:     u.Mime,
			Category: Categorize(u.Name, u.Mime),
		})
	}
	return out
}
