package agent

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
)

// Decision is the model's verdict for one reviewed transaction.
type Decision struct {
	ID        string
	IsRevenue bool
	Reason    string
}

// ParseDecisions extracts decisions from the assistant text. Markdown fences
// are stripped, json-repair recovers sloppy bodies, and several legacy key
// spellings are accepted (is_revenue, isRevenue, revenue, label=="revenue").
// Rows without an id are dropped. An error means nothing usable was found.
func ParseDecisions(text string) ([]Decision, error) {
	raw := stripFences(text)
	if raw == "" {
		return nil, fmt.Errorf("agent: empty assistant reply")
	}

	rows, err := decodeRows(raw)
	if err != nil {
		repaired, repairErr := jsonrepair.RepairJSON(raw)
		if repairErr != nil {
			return nil, fmt.Errorf("agent: undecodable assistant reply: %w", err)
		}
		rows, err = decodeRows(repaired)
		if err != nil {
			return nil, fmt.Errorf("agent: undecodable assistant reply: %w", err)
		}
	}

	decisions := make([]Decision, 0, len(rows))
	for _, row := range rows {
		id := stringField(row, "id", "transaction_id", "transactionId")
		if id == "" {
			continue
		}
		verdict, ok := revenueField(row)
		if !ok {
			continue
		}
		decisions = append(decisions, Decision{
			ID:        id,
			IsRevenue: verdict,
			Reason:    stringField(row, "reason", "reasoning", "explanation"),
		})
	}
	if len(decisions) == 0 {
		return nil, fmt.Errorf("agent: assistant reply carries no decisions")
	}
	return decisions, nil
}

func decodeRows(raw string) ([]map[string]any, error) {
	var envelope struct {
		Transactions []map[string]any `json:"transactions"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err == nil && envelope.Transactions != nil {
		return envelope.Transactions, nil
	}
	var rows []map[string]any
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func stringField(row map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := row[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func revenueField(row map[string]any) (bool, bool) {
	for _, key := range []string{"is_revenue", "isRevenue", "revenue"} {
		if v, present := row[key]; present {
			if b, ok := coerceBool(v); ok {
				return b, true
			}
		}
	}
	if label, ok := row["label"].(string); ok {
		return strings.EqualFold(strings.TrimSpace(label), "revenue"), true
	}
	return false, false
}

func coerceBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "да", "revenue", "1":
			return true, true
		case "false", "no", "нет", "non-revenue", "0":
			return false, true
		}
	case float64:
		return b != 0, true
	}
	return false, false
}
