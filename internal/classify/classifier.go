package classify

import (
	"fmt"
	"strings"
)

// Class is the heuristic verdict for a single transaction.
type Class int

const (
	// Ambiguous transactions need LLM review.
	Ambiguous Class = iota
	// Revenue transactions are payments for goods or services.
	Revenue
	// NonRevenue transactions are credits that are not sales proceeds.
	NonRevenue
)

// String returns the lowercase class name.
func (c Class) String() string {
	switch c {
	case Revenue:
		return "revenue"
	case NonRevenue:
		return "non-revenue"
	default:
		return "ambiguous"
	}
}

// Verdict carries the class, a short human-readable reason, and a hint for
// ambiguous entries that lean toward non-revenue.
type Verdict struct {
	Class              Class
	Reason             string
	PossibleNonRevenue bool
}

// Classify applies the ordered partition rules to a transaction's purpose and
// sender. Matching is case-insensitive and substring-based; rule order is
// significant (terminal self-deposits dominate top-up wording).
func Classify(purpose, sender string) Verdict {
	purpose = strings.TrimSpace(purpose)
	sender = strings.TrimSpace(sender)
	if purpose == "" && sender == "" {
		return Verdict{Class: Ambiguous, Reason: "нет текста назначения"}
	}

	combined := strings.ToLower(purpose + " " + sender)
	if _, ok := matchAny(combined, terminalMarkers); ok {
		return Verdict{Class: NonRevenue, Reason: "пополнение через терминал (собственные средства)"}
	}
	if kw, ok := matchAny(combined, nonRevenueMarkers); ok {
		return Verdict{Class: NonRevenue, Reason: fmt.Sprintf("не выручка: маркер %q", kw)}
	}
	if kw, ok := matchAny(strings.ToLower(purpose), revenueMarkers); ok {
		return Verdict{Class: Revenue, Reason: fmt.Sprintf("выручка: маркер %q", kw)}
	}
	if _, ok := matchAny(combined, contextMarkers); ok {
		return Verdict{Class: Ambiguous, Reason: "требуется контекст", PossibleNonRevenue: true}
	}
	return Verdict{Class: Ambiguous, Reason: "нет явных маркеров"}
}

func matchAny(text string, markers []string) (string, bool) {
	for _, kw := range markers {
		if strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}
