package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecisionsEnvelope(t *testing.T) {
	decisions, err := ParseDecisions(`{"transactions": [
		{"id": "s1_1", "is_revenue": true, "reason": "оплата за услуги"},
		{"id": "s1_2", "is_revenue": false, "reason": "возврат займа"}
	]}`)
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.Equal(t, Decision{ID: "s1_1", IsRevenue: true, Reason: "оплата за услуги"}, decisions[0])
	assert.Equal(t, Decision{ID: "s1_2", IsRevenue: false, Reason: "возврат займа"}, decisions[1])
}

func TestParseDecisionsBareArray(t *testing.T) {
	decisions, err := ParseDecisions(`[{"id": "a", "is_revenue": true}]`)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.True(t, decisions[0].IsRevenue)
}

func TestParseDecisionsStripsMarkdownFences(t *testing.T) {
	reply := "```json\n{\"transactions\": [{\"id\": \"x\", \"is_revenue\": true, \"reason\": \"ok\"}]}\n```"
	decisions, err := ParseDecisions(reply)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "x", decisions[0].ID)
}

func TestParseDecisionsLegacyKeySpellings(t *testing.T) {
	cases := []struct {
		name    string
		reply   string
		revenue bool
	}{
		{"isRevenue camel", `[{"id": "1", "isRevenue": true}]`, true},
		{"revenue key", `[{"id": "1", "revenue": false}]`, false},
		{"label revenue", `[{"id": "1", "label": "revenue"}]`, true},
		{"label non-revenue", `[{"id": "1", "label": "non-revenue"}]`, false},
		{"string bool", `[{"id": "1", "is_revenue": "да"}]`, true},
		{"numeric bool", `[{"id": "1", "is_revenue": 0}]`, false},
		{"numeric id", `[{"transaction_id": 1, "is_revenue": true}]`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decisions, err := ParseDecisions(tc.reply)
			require.NoError(t, err)
			require.Len(t, decisions, 1)
			assert.Equal(t, "1", decisions[0].ID)
			assert.Equal(t, tc.revenue, decisions[0].IsRevenue)
		})
	}
}

func TestParseDecisionsRepairsSloppyJSON(t *testing.T) {
	// Trailing comma and unquoted key, the kind of damage repair handles.
	reply := `{"transactions": [{"id": "s_1", is_revenue: true, "reason": "оплата",},]}`
	decisions, err := ParseDecisions(reply)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "s_1", decisions[0].ID)
}

func TestParseDecisionsDropsRowsWithoutID(t *testing.T) {
	decisions, err := ParseDecisions(`[
		{"is_revenue": true, "reason": "без идентификатора"},
		{"id": "keep", "is_revenue": true}
	]`)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "keep", decisions[0].ID)
}

func TestParseDecisionsRejectsUnusableReplies(t *testing.T) {
	for name, reply := range map[string]string{
		"empty":        "",
		"prose":        "Не могу классифицировать эти операции.",
		"no decisions": `{"transactions": []}`,
		"no verdicts":  `[{"id": "1", "comment": "нет решения"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDecisions(reply)
			assert.Error(t, err)
		})
	}
}

func TestBuildUserMessage(t *testing.T) {
	msg, err := BuildUserMessage([]ReviewItem{
		{ID: "s_1", Date: "2024-03-12", Amount: 500000, Purpose: "Пополнение счета", Sender: "ИП Ахметов"},
	}, "Торговая компания, выручка через Kaspi")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(msg, "Комментарий клиента: Торговая компания"))
	assert.Contains(t, msg, `"transactions_for_review"`)
	assert.Contains(t, msg, `"id":"s_1"`)
	assert.Contains(t, msg, `"amount":500000`)

	// Round-trip: the payload itself must satisfy the decision parser's
	// envelope expectations once the model echoes the ids back.
	decisions, err := ParseDecisions(`{"transactions": [{"id": "s_1", "is_revenue": true, "reason": "ok"}]}`)
	require.NoError(t, err)
	assert.Equal(t, "s_1", decisions[0].ID)
}

func TestBuildUserMessageWithoutComment(t *testing.T) {
	msg, err := BuildUserMessage([]ReviewItem{}, "  ")
	require.NoError(t, err)
	assert.Equal(t, `{"transactions_for_review":[]}`, msg)
}
