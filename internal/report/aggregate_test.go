package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revradar/revradar/internal/normalize"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

var testNow = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

func TestBuildMonthlyBuckets(t *testing.T) {
	revenue := []Entry{
		{ID: "s_1", Amount: 500_000, Date: date(2024, time.March, 4), Source: SourceHeuristic},
		{ID: "s_2", Amount: 1_200_000, Date: date(2024, time.March, 15), Source: SourceHeuristic},
		{ID: "s_4", Amount: 750_000, Date: date(2024, time.April, 18), Source: SourceHeuristic},
	}
	nonRevenue := []Entry{
		{ID: "s_3", Amount: 50_000, Date: date(2024, time.April, 2), Source: SourceHeuristic},
	}

	s := Build(revenue, nonRevenue, "KZT", testNow)

	assert.InDelta(t, 2_450_000, s.Revenue.Total.Value, 0.001)
	assert.InDelta(t, 50_000, s.NonRevenue.Total.Value, 0.001)
	require.Len(t, s.Revenue.Years, 1)
	year := s.Revenue.Years[0]
	assert.Equal(t, 2024, year.Year)
	require.Len(t, year.Months, 2)
	assert.Equal(t, "Март", year.Months[0].Label)
	assert.InDelta(t, 1_700_000, year.Months[0].Total.Value, 0.001)
	assert.Equal(t, "Апрель", year.Months[1].Label)
	assert.InDelta(t, 750_000, year.Months[1].Total.Value, 0.001)

	assert.Equal(t, 4, s.Stats.Total)
	assert.Equal(t, 3, s.Stats.AutoRevenue)
	assert.Equal(t, 0, s.Stats.AgentReviewed)
	assert.Zero(t, s.Stats.UnattributedRevenue)
}

func TestBuildExcludesOutOfWindowDatesFromMonthly(t *testing.T) {
	revenue := []Entry{
		{ID: "s_1", Amount: 1_000_000, Date: date(2099, time.January, 1), Source: SourceHeuristic},
		{ID: "s_2", Amount: 200_000, Source: SourceHeuristic}, // undated
		{ID: "s_3", Amount: 300_000, Date: date(2024, time.May, 10), Source: SourceHeuristic},
	}

	s := Build(revenue, nil, "KZT", testNow)

	assert.InDelta(t, 1_500_000, s.Revenue.Total.Value, 0.001)
	require.Len(t, s.Revenue.Years, 1)
	assert.InDelta(t, 300_000, s.Revenue.Years[0].Total.Value, 0.001)
	assert.InDelta(t, 1_200_000, s.Stats.UnattributedRevenue, 0.001)
}

func TestBuildTrailing12Window(t *testing.T) {
	revenue := []Entry{
		// Inside the window [2023-06-01, 2024-05-10].
		{ID: "s_1", Amount: 100, Date: date(2023, time.June, 2), Source: SourceHeuristic},
		{ID: "s_2", Amount: 200, Date: date(2024, time.May, 10), Source: SourceHeuristic},
		// First of month 11 months before the reference is the cut.
		{ID: "s_3", Amount: 400, Date: date(2023, time.May, 31), Source: SourceHeuristic},
		// Future-dated entries never become the reference.
		{ID: "s_4", Amount: 800, Date: date(2099, time.January, 1), Source: SourceHeuristic},
	}

	s := Build(revenue, nil, "KZT", testNow)

	require.NotNil(t, s.Trailing12)
	assert.Equal(t, time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC), s.Trailing12.From)
	assert.Equal(t, time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC), s.Trailing12.ReferencePeriodEnd)
	assert.InDelta(t, 300, s.Trailing12.Value, 0.001)
}

func TestBuildTrailing12AbsentWithoutDatedRevenue(t *testing.T) {
	s := Build([]Entry{{ID: "s_1", Amount: 100, Source: SourceHeuristic}}, nil, "KZT", testNow)
	assert.Nil(t, s.Trailing12)
}

func TestBuildStatsAgentCounts(t *testing.T) {
	revenue := []Entry{
		{ID: "s_1", Amount: 1, Source: SourceHeuristic},
		{ID: "s_2", Amount: 2, Source: SourceAgent},
	}
	nonRevenue := []Entry{
		{ID: "s_3", Amount: 3, Source: SourceAgent},
		{ID: "s_4", Amount: 4, Source: SourceAgentMissing},
	}

	st := Build(revenue, nonRevenue, "KZT", testNow).Stats

	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 1, st.AutoRevenue)
	assert.Equal(t, 3, st.AgentReviewed)
	assert.Equal(t, 2, st.AgentDecisions)
	assert.Equal(t, 1, st.Unresolved)
}

func TestSortByDateNullsLast(t *testing.T) {
	entries := []Entry{
		{ID: "a"},
		{ID: "b", Date: date(2024, time.February, 1)},
		{ID: "c", Date: date(2024, time.January, 1)},
		{ID: "d"},
	}
	SortByDate(entries)
	assert.Equal(t, []string{"c", "b", "a", "d"},
		[]string{entries[0].ID, entries[1].ID, entries[2].ID, entries[3].ID})
}

func TestFormatMoneyRoundTrip(t *testing.T) {
	for _, v := range []float64{0, 1, 1234.5, 1_234_567.89, 50_000, 2_450_000} {
		formatted := FormatMoney(v, "KZT")
		assert.InDelta(t, v, normalize.Amount(formatted), 0.005, "formatted %q", formatted)
	}
	assert.Contains(t, FormatMoney(1_234_567.89, "KZT"), ",89 KZT")
}

func TestRenderReflectsSummary(t *testing.T) {
	revenue := []Entry{
		{ID: "s_1", Amount: 500_000, Date: date(2024, time.March, 4), Source: SourceHeuristic},
	}
	s := Build(revenue, nil, "KZT", testNow)
	text := Render(s)

	assert.Contains(t, text, "Отчет о выручке")
	assert.Contains(t, text, s.Revenue.Total.Formatted)
	assert.Contains(t, text, "Март")
	assert.Contains(t, text, "всего операций: 1")
	assert.True(t, strings.Contains(text, "12 месяцев"))
}
