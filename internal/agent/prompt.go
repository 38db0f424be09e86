package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ReviewItem is one ambiguous transaction reduced to the fields the model
// needs. Comment carries the heuristic's hint, not the client's submission
// comment.
type ReviewItem struct {
	ID            string  `json:"id"`
	Date          string  `json:"date,omitempty"`
	Amount        float64 `json:"amount"`
	Purpose       string  `json:"purpose"`
	Sender        string  `json:"sender,omitempty"`
	Correspondent string  `json:"correspondent,omitempty"`
	BIN           string  `json:"bin,omitempty"`
	Comment       string  `json:"comment,omitempty"`
}

// SystemPrompt carries the classification policy. It demands a bare JSON
// object so the reply survives strict parsing.
const SystemPrompt = `Ты — финансовый аналитик банка. Тебе передают кредитовые операции (поступления) по счету компании, которые не удалось классифицировать автоматически. Для каждой операции определи, является ли она выручкой.

Выручка — оплата за товары, работы или услуги компании, включая предоплаты и поступления с маркетплейсов.
Не выручка: займы и кредиты, возвраты, переводы собственных средств и пополнения счета владельцем, внесение наличных, депозиты и вознаграждения по ним, дивиденды, заработная плата и её возвраты, налоги, штрафы, пени, компенсации.

Ответь строго одним JSON-объектом без пояснений и без форматирования markdown:
{"transactions": [{"id": "<id>", "is_revenue": true, "reason": "краткое обоснование"}]}
Верни решение для каждой транзакции из списка.`

// BuildUserMessage renders the review payload. The client's submission
// comment, when present, precedes the transactions_for_review JSON.
func BuildUserMessage(items []ReviewItem, sessionComment string) (string, error) {
	payload, err := json.Marshal(map[string][]ReviewItem{"transactions_for_review": items})
	if err != nil {
		return "", fmt.Errorf("agent: marshal review payload: %w", err)
	}
	var b strings.Builder
	if comment := strings.TrimSpace(sessionComment); comment != "" {
		b.WriteString("Комментарий клиента: ")
		b.WriteString(comment)
		b.WriteString("\n\n")
	}
	b.Write(payload)
	return b.String(), nil
}
