package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
)

// ParseOutput recovers the extractor's JSON from mixed log/JSON stdout. The
// extractor prints progress lines around a final pretty-printed JSON block,
// so the parser takes the longest complete bracketed block that starts at a
// line head, falling back to json-repair over the widest bracket span. The
// no-credit marker short-circuits to a successful empty result.
func ParseOutput(output string) ([]FileResult, error) {
	if strings.Contains(output, NoCreditMarker) {
		return []FileResult{}, nil
	}
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return nil, fmt.Errorf("extract: empty extractor output")
	}

	if block, ok := longestJSONBlock(trimmed); ok {
		if results, err := decodeResults(block); err == nil {
			return results, nil
		}
	}

	start := strings.IndexAny(trimmed, "[{")
	end := strings.LastIndexAny(trimmed, "]}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("extract: no JSON block in extractor output")
	}
	repaired, err := jsonrepair.RepairJSON(trimmed[start : end+1])
	if err != nil {
		return nil, fmt.Errorf("extract: unparseable extractor output: %w", err)
	}
	results, err := decodeResults([]byte(repaired))
	if err != nil {
		return nil, fmt.Errorf("extract: unparseable extractor output: %w", err)
	}
	return results, nil
}

// longestJSONBlock scans line heads for opening brackets and returns the
// longest span that closes cleanly and validates as JSON.
func longestJSONBlock(s string) ([]byte, bool) {
	var best []byte
	atLineHead := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		if atLineHead && (c == '[' || c == '{') {
			if end := matchBracket(s, i); end > i {
				candidate := s[i : end+1]
				if len(candidate) > len(best) && json.Valid([]byte(candidate)) {
					best = []byte(candidate)
				}
			}
		}
		switch c {
		case '\n':
			atLineHead = true
		case ' ', '\t', '\r':
			// whitespace keeps the line-head state
		default:
			atLineHead = false
		}
	}
	return best, best != nil
}

// matchBracket returns the index of the terminator matching the opener at
// start, honoring JSON string literals and escapes. Returns -1 when the
// block never closes.
func matchBracket(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// decodeResults accepts both the usual top-level array and a bare per-file
// object.
func decodeResults(raw []byte) ([]FileResult, error) {
	var results []FileResult
	if err := json.Unmarshal(raw, &results); err == nil {
		return results, nil
	}
	var single FileResult
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	if single.SourceFile == "" && single.Error == "" && single.Transactions == nil {
		return nil, fmt.Errorf("extract: JSON block is not an extractor result")
	}
	return []FileResult{single}, nil
}
