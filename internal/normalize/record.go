package normalize

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Extractors emit transactions as free-form maps whose keys mix Russian and
// English bank-statement headers. The lookup tables below sweep the observed
// spellings in priority order.

var dateKeys = []string{
	"дата операции",
	"дата проводки",
	"дата платежа",
	"дата валютирования",
	"дата",
	"operation date",
	"payment date",
	"value date",
	"date",
}

var creditKeys = []string{
	"кредит",
	"сумма по кредиту",
	"сумма кредита",
	"приход",
	"поступление",
	"credit",
	"amount",
	"сумма",
	"sum",
}

var purposeKeys = []string{
	"назначение платежа",
	"назначение",
	"детали платежа",
	"описание",
	"purpose",
	"details",
	"description",
	"комментарий",
}

var senderKeys = []string{
	"отправитель",
	"плательщик",
	"sender",
	"payer",
	"контрагент",
}

var correspondentKeys = []string{
	"получатель",
	"корреспондент",
	"correspondent",
	"recipient",
	"beneficiary",
}

var binKeys = []string{
	"бин/иин",
	"бин",
	"иин",
	"bin_iin",
	"bin",
}

// internalMarkers are extractor bookkeeping fields, never transaction values.
var internalMarkers = map[string]bool{
	"page_number": true,
	"bank_name":   true,
	"№":           true,
}

// RecordDate resolves the value date of a raw transaction record. It sweeps
// the priority keys first, then any key carrying the fragment "та" (truncated
// or OCR-damaged Cyrillic date headers), and finally falls back to scanning
// every value for an embedded date. Extractors are known to put dates into
// free-text purpose fields, so the fallback is not optional.
func RecordDate(rec map[string]any) (time.Time, bool) {
	for _, key := range dateKeys {
		if v, ok := lookup(rec, key); ok {
			if t, ok := Date(v); ok {
				return t, true
			}
		}
	}
	for _, key := range sortedKeys(rec) {
		lk := strings.ToLower(strings.TrimSpace(key))
		if internalMarkers[lk] || !strings.Contains(lk, "та") {
			continue
		}
		if t, ok := Date(rec[key]); ok {
			return t, true
		}
	}
	return scanForDate(rec)
}

func scanForDate(rec map[string]any) (time.Time, bool) {
	maxYear := time.Now().UTC().Year() + 2
	for _, key := range sortedKeys(rec) {
		lk := strings.ToLower(strings.TrimSpace(key))
		if internalMarkers[lk] {
			continue
		}
		var t time.Time
		var ok bool
		switch v := rec[key].(type) {
		case string:
			t, ok = DateInText(v)
		case float64, float32, int, int64:
			t, ok = Date(v)
		default:
			continue
		}
		if ok && t.Year() >= 2000 && t.Year() <= maxYear {
			return t, true
		}
	}
	return time.Time{}, false
}

// RecordAmount resolves the credit-side amount, returning the raw value as
// extracted and its parsed decimal. The debit column is never consulted.
func RecordAmount(rec map[string]any) (string, float64) {
	for _, key := range creditKeys {
		v, ok := lookup(rec, key)
		if !ok || v == nil {
			continue
		}
		raw := rawString(v)
		if amount := Amount(v); amount != 0 {
			return raw, amount
		}
	}
	return "", 0
}

// RecordPurpose resolves the normalized payment purpose.
func RecordPurpose(rec map[string]any) string {
	return textByKeys(rec, purposeKeys)
}

// RecordSender resolves the normalized sender name.
func RecordSender(rec map[string]any) string {
	return textByKeys(rec, senderKeys)
}

// RecordCorrespondent resolves the normalized correspondent name.
func RecordCorrespondent(rec map[string]any) string {
	return textByKeys(rec, correspondentKeys)
}

// RecordBIN resolves the counterparty identifier when present.
func RecordBIN(rec map[string]any) string {
	return textByKeys(rec, binKeys)
}

func textByKeys(rec map[string]any, keys []string) string {
	for _, key := range keys {
		if v, ok := lookup(rec, key); ok {
			if s := Text(rawString(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

func lookup(rec map[string]any, key string) (any, bool) {
	for k, v := range rec {
		if strings.EqualFold(strings.TrimSpace(k), key) {
			return v, true
		}
	}
	return nil, false
}

func sortedKeys(rec map[string]any) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func rawString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}
