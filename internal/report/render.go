package report

import (
	"fmt"
	"strings"
)

// Render produces the human-readable Russian report from the structured
// summary. Pure function of its input.
func Render(s Summary) string {
	var b strings.Builder
	b.WriteString("Отчет о выручке\n")
	fmt.Fprintf(&b, "Сгенерирован: %s\n", s.GeneratedAt.Format("02.01.2006 15:04 UTC"))
	if s.Currency != "" {
		fmt.Fprintf(&b, "Валюта: %s\n", s.Currency)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Выручка: %s\n", s.Revenue.Total.Formatted)
	fmt.Fprintf(&b, "Не выручка: %s\n", s.NonRevenue.Total.Formatted)

	renderYears(&b, "Выручка по месяцам", s.Revenue.Years)
	renderYears(&b, "Прочие поступления по месяцам", s.NonRevenue.Years)

	if s.Trailing12 != nil {
		fmt.Fprintf(&b, "\nВыручка за последние 12 месяцев (%s — %s): %s\n",
			s.Trailing12.From.Format("02.01.2006"),
			s.Trailing12.ReferencePeriodEnd.Format("02.01.2006"),
			s.Trailing12.Formatted)
	}

	b.WriteString("\nСтатистика:\n")
	fmt.Fprintf(&b, "  всего операций: %d\n", s.Stats.Total)
	fmt.Fprintf(&b, "  выручка по ключевым словам: %d\n", s.Stats.AutoRevenue)
	fmt.Fprintf(&b, "  отправлено на проверку агенту: %d\n", s.Stats.AgentReviewed)
	fmt.Fprintf(&b, "  решений агента: %d\n", s.Stats.AgentDecisions)
	fmt.Fprintf(&b, "  без решения: %d\n", s.Stats.Unresolved)
	if s.Stats.UnattributedRevenue != 0 {
		fmt.Fprintf(&b, "  выручка вне месячных таблиц: %s\n",
			FormatMoney(s.Stats.UnattributedRevenue, s.Currency))
	}
	if s.Stats.UnattributedNonRevenue != 0 {
		fmt.Fprintf(&b, "  прочие поступления вне месячных таблиц: %s\n",
			FormatMoney(s.Stats.UnattributedNonRevenue, s.Currency))
	}
	return b.String()
}

func renderYears(b *strings.Builder, title string, years []YearBucket) {
	if len(years) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, y := range years {
		fmt.Fprintf(b, "%d — всего %s\n", y.Year, y.Total.Formatted)
		for _, m := range y.Months {
			fmt.Fprintf(b, "  %s: %s\n", m.Label, m.Total.Formatted)
		}
	}
}
