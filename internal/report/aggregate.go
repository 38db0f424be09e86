package report

import (
	"sort"
	"time"
)

// Classification sources carried on entries. String values match the wire
// representation used by the analysis domain.
const (
	SourceHeuristic    = "heuristic"
	SourceAgent        = "agent"
	SourceAgentMissing = "agent-missing"
)

// Entry is one classified transaction as the aggregator sees it.
type Entry struct {
	ID     string
	Amount float64
	Date   *time.Time
	Source string
	Reason string
}

// MonthBucket is one month's total inside a year. Month is 0-based.
type MonthBucket struct {
	Month int    `json:"month"`
	Label string `json:"label"`
	Total Money  `json:"total"`
}

// YearBucket carries a year's total and its month breakdown, months sorted
// ascending.
type YearBucket struct {
	Year   int           `json:"year"`
	Total  Money         `json:"total"`
	Months []MonthBucket `json:"months"`
}

// Breakdown is the per-class total plus its year tables.
type Breakdown struct {
	Total Money        `json:"total"`
	Years []YearBucket `json:"years"`
}

// Trailing12 is the twelve-month revenue window ending at the latest
// observed revenue date.
type Trailing12 struct {
	Value              float64   `json:"value"`
	Formatted          string    `json:"formatted"`
	From               time.Time `json:"from"`
	ReferencePeriodEnd time.Time `json:"referencePeriodEnd"`
}

// Stats counts classification outcomes and exposes the reconciliation deltas
// between totals and the sum of the year buckets.
type Stats struct {
	Total                  int     `json:"total"`
	AutoRevenue            int     `json:"autoRevenue"`
	AgentReviewed          int     `json:"agentReviewed"`
	AgentDecisions         int     `json:"agentDecisions"`
	Unresolved             int     `json:"unresolved"`
	UnattributedRevenue    float64 `json:"unattributedRevenue,omitempty"`
	UnattributedNonRevenue float64 `json:"unattributedNonRevenue,omitempty"`
}

// Summary is the canonical machine form of a report. report-text is always
// derived from it, never the other way around.
type Summary struct {
	GeneratedAt time.Time   `json:"generatedAt"`
	Currency    string      `json:"currency"`
	Revenue     Breakdown   `json:"revenue"`
	NonRevenue  Breakdown   `json:"nonRevenue"`
	Trailing12  *Trailing12 `json:"trailing12MonthsRevenue,omitempty"`
	Stats       Stats       `json:"stats"`
}

var monthLabels = [12]string{
	"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

// windowStart bounds the monthly tables: dates before 2000 are treated as
// extraction noise.
var windowStart = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Build aggregates the two final transaction sets. Transactions with absent
// or out-of-window dates count toward the totals but never toward the
// year/month tables; the difference surfaces in Stats.
func Build(revenue, nonRevenue []Entry, currency string, now time.Time) Summary {
	now = now.UTC()
	windowEnd := now.Add(72 * time.Hour)

	rev, revAttributed := breakdown(revenue, currency, windowEnd)
	non, nonAttributed := breakdown(nonRevenue, currency, windowEnd)

	s := Summary{
		GeneratedAt: now,
		Currency:    currency,
		Revenue:     rev,
		NonRevenue:  non,
		Trailing12:  trailing12(revenue, currency, windowEnd),
	}
	s.Stats = stats(revenue, nonRevenue)
	if d := rev.Total.Value - revAttributed; d != 0 {
		s.Stats.UnattributedRevenue = d
	}
	if d := non.Total.Value - nonAttributed; d != 0 {
		s.Stats.UnattributedNonRevenue = d
	}
	return s
}

func breakdown(entries []Entry, currency string, windowEnd time.Time) (Breakdown, float64) {
	var total, attributed float64
	type ym struct{ year, month int }
	buckets := map[ym]float64{}
	for _, e := range entries {
		total += e.Amount
		if !inWindow(e.Date, windowEnd) {
			continue
		}
		attributed += e.Amount
		buckets[ym{e.Date.Year(), int(e.Date.Month()) - 1}] += e.Amount
	}

	years := map[int]*YearBucket{}
	for key, sum := range buckets {
		yb, ok := years[key.year]
		if !ok {
			yb = &YearBucket{Year: key.year}
			years[key.year] = yb
		}
		yb.Months = append(yb.Months, MonthBucket{
			Month: key.month,
			Label: monthLabels[key.month],
			Total: money(sum, currency),
		})
	}

	out := Breakdown{Total: money(total, currency)}
	for _, yb := range years {
		sort.Slice(yb.Months, func(i, j int) bool { return yb.Months[i].Month < yb.Months[j].Month })
		var yearSum float64
		for _, m := range yb.Months {
			yearSum += m.Total.Value
		}
		yb.Total = money(yearSum, currency)
		out.Years = append(out.Years, *yb)
	}
	sort.Slice(out.Years, func(i, j int) bool { return out.Years[i].Year < out.Years[j].Year })
	return out, attributed
}

// trailing12 sums revenue inside [first-of-month(R − 11 months), R] where R
// is the latest in-window revenue date. Nil when no revenue entry has a
// usable date.
func trailing12(revenue []Entry, currency string, windowEnd time.Time) *Trailing12 {
	var ref time.Time
	for _, e := range revenue {
		if inWindow(e.Date, windowEnd) && e.Date.After(ref) {
			ref = *e.Date
		}
	}
	if ref.IsZero() {
		return nil
	}
	start := ref.AddDate(0, -11, 0)
	from := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)

	var sum float64
	for _, e := range revenue {
		if e.Date == nil || e.Date.Before(from) || e.Date.After(ref) {
			continue
		}
		sum += e.Amount
	}
	return &Trailing12{
		Value:              sum,
		Formatted:          FormatMoney(sum, currency),
		From:               from,
		ReferencePeriodEnd: ref,
	}
}

func stats(revenue, nonRevenue []Entry) Stats {
	st := Stats{Total: len(revenue) + len(nonRevenue)}
	for _, e := range revenue {
		switch e.Source {
		case SourceHeuristic:
			st.AutoRevenue++
		case SourceAgent:
			st.AgentReviewed++
			st.AgentDecisions++
		}
	}
	for _, e := range nonRevenue {
		switch e.Source {
		case SourceAgent:
			st.AgentReviewed++
			st.AgentDecisions++
		case SourceAgentMissing:
			st.AgentReviewed++
			st.Unresolved++
		}
	}
	return st
}

func inWindow(d *time.Time, windowEnd time.Time) bool {
	return d != nil && !d.Before(windowStart) && !d.After(windowEnd)
}

// SortByDate orders entries by date ascending, absent dates last, stable.
func SortByDate(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Date, entries[j].Date
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}
