package normalize

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// epochMSFloor is 2000-01-01T00:00:00Z in milliseconds; numeric values at or
// above it are epoch milliseconds, smaller values are Excel serial days.
const epochMSFloor = 946684800000

var (
	dmyPattern = regexp.MustCompile(`^(\d{1,2})[./\-](\d{1,2})[./\-](\d{2,4})(?:[ T](\d{1,2}):(\d{2})(?::(\d{2}))?)?$`)
	// .mm.yyyy with the day slot missing resolves to the first of the month.
	partialPattern = regexp.MustCompile(`^\.(\d{1,2})\.(\d{4})$`)
	russianPattern = regexp.MustCompile(`^(\d{1,2})\s+([а-яёА-ЯЁ]+)\.?\s+(\d{4})(?:\s*г\.?)?$`)
	// embeddedPattern finds a date (optionally with time) inside free text.
	embeddedPattern = regexp.MustCompile(`(\d{1,2}[./\-]\d{1,2}[./\-]\d{2,4}(?:[ T]\d{1,2}:\d{2}(?::\d{2})?)?|\d{4}-\d{2}-\d{2}(?:[ T]\d{2}:\d{2}(?::\d{2})?)?)`)
)

var russianMonths = map[string]time.Month{
	"январь": time.January, "января": time.January, "янв": time.January,
	"февраль": time.February, "февраля": time.February, "фев": time.February,
	"март": time.March, "марта": time.March, "мар": time.March,
	"апрель": time.April, "апреля": time.April, "апр": time.April,
	"май": time.May, "мая": time.May,
	"июнь": time.June, "июня": time.June, "июн": time.June,
	"июль": time.July, "июля": time.July, "июл": time.July,
	"август": time.August, "августа": time.August, "авг": time.August,
	"сентябрь": time.September, "сентября": time.September, "сен": time.September, "сент": time.September,
	"октябрь": time.October, "октября": time.October, "окт": time.October,
	"ноябрь": time.November, "ноября": time.November, "ноя": time.November, "нояб": time.November,
	"декабрь": time.December, "декабря": time.December, "дек": time.December,
}

var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Date parses any string or numeric value into a UTC instant.
func Date(v any) (time.Time, bool) {
	switch d := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return d.UTC(), true
	case string:
		return DateString(d)
	case float64:
		return dateFromNumber(d)
	case float32:
		return dateFromNumber(float64(d))
	case int:
		return dateFromNumber(float64(d))
	case int64:
		return dateFromNumber(float64(d))
	case json.Number:
		f, err := d.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return dateFromNumber(f)
	}
	return time.Time{}, false
}

// DateString parses ISO 8601, dd.mm.yyyy (with optional time and / or -
// separators), mm.dd.yyyy when the slots disambiguate, Russian month names,
// incomplete .mm.yyyy, and numeric strings (Excel serials, epoch millis).
func DateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	if m := dmyPattern.FindStringSubmatch(s); m != nil {
		if t, ok := dayMonthYear(m); ok {
			return t, true
		}
	}

	if m := partialPattern.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 {
			return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
		}
	}

	if m := russianPattern.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		if month, ok := russianMonths[strings.ToLower(m[2])]; ok && day >= 1 && day <= 31 {
			return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
		}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return dateFromNumber(f)
	}
	return time.Time{}, false
}

func dayMonthYear(m []string) (time.Time, bool) {
	first, _ := strconv.Atoi(m[1])
	second, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		year = expandYear(year)
	}

	day, month := first, second
	if second > 12 && first <= 12 {
		// American ordering, detected because no month exceeds 12.
		day, month = second, first
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}

	hour, minute, sec := 0, 0, 0
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		minute, _ = strconv.Atoi(m[5])
		if m[6] != "" {
			sec, _ = strconv.Atoi(m[6])
		}
		if hour > 23 || minute > 59 || sec > 59 {
			hour, minute, sec = 0, 0, 0
		}
	}
	return time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.UTC), true
}

// expandYear maps two-digit years: values above 70 belong to the 1900s.
func expandYear(y int) int {
	if y > 70 {
		return 1900 + y
	}
	return 2000 + y
}

func dateFromNumber(f float64) (time.Time, bool) {
	if f >= epochMSFloor {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	return excelSerial(f)
}

// excelSerial converts days since 1899-12-30, keeping only plausible years.
func excelSerial(f float64) (time.Time, bool) {
	if f <= 0 {
		return time.Time{}, false
	}
	t := excelEpoch.Add(time.Duration(f * float64(24*time.Hour)))
	if t.Year() < 1990 || t.Year() > time.Now().UTC().Year()+1 {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// DateInText scans free text for an embedded date, supporting inline time.
func DateInText(s string) (time.Time, bool) {
	match := embeddedPattern.FindString(s)
	if match == "" {
		return time.Time{}, false
	}
	return DateString(strings.TrimSpace(match))
}
