// Package normalize converts heterogeneous extractor output into canonical
// decimal amounts, UTC instants, and single-line text.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Amount parses any string or numeric value into a finite decimal.
// Unparseable input yields 0.
func Amount(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return finiteOrZero(n)
	case float32:
		return finiteOrZero(float64(n))
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return finiteOrZero(f)
	case string:
		return amountFromString(n)
	}
	return 0
}

func finiteOrZero(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func amountFromString(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	// Keep digits and separators; spaces (including NBSP and narrow NBSP),
	// apostrophes, and currency letters or symbols are grouping noise.
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ',' || r == '.':
			b.WriteRune(r)
		case r == '-' || r == '+':
			if b.Len() == 0 && r == '-' {
				negative = true
			}
		case r == ' ' || r == ' ' || r == '\'' || r == '`':
			// dropped
		case unicode.IsSpace(r) || unicode.IsLetter(r) || unicode.IsSymbol(r):
			// dropped
		}
	}
	digits := b.String()
	if digits == "" {
		return 0
	}

	lastComma := strings.LastIndexByte(digits, ',')
	lastDot := strings.LastIndexByte(digits, '.')
	switch {
	case lastComma >= 0 && lastDot >= 0:
		// Rightmost separator is decimal, the other kind is grouping.
		if lastComma > lastDot {
			digits = strings.ReplaceAll(digits, ".", "")
			digits = decimalizeLast(digits, ',')
		} else {
			digits = strings.ReplaceAll(digits, ",", "")
		}
	case lastComma >= 0:
		if fracLen(digits, lastComma) >= 1 && fracLen(digits, lastComma) <= 2 {
			digits = decimalizeLast(digits, ',')
		} else {
			digits = strings.ReplaceAll(digits, ",", "")
		}
	case lastDot >= 0:
		if fracLen(digits, lastDot) >= 1 && fracLen(digits, lastDot) <= 2 && strings.Count(digits, ".") == 1 {
			// already decimal
		} else {
			digits = strings.ReplaceAll(digits, ".", "")
		}
	}

	f, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0
	}
	if negative {
		f = -f
	}
	return finiteOrZero(f)
}

func fracLen(s string, sep int) int {
	return len(s) - sep - 1
}

// decimalizeLast drops every occurrence of sep except the last, which
// becomes the decimal point. Handles inputs like "1,234,56".
func decimalizeLast(s string, sep byte) string {
	idx := strings.LastIndexByte(s, sep)
	head := strings.ReplaceAll(s[:idx], string(sep), "")
	return head + "." + s[idx+1:]
}
