package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Transaction struct {
	TransactionId   int                 `json:"transaction_id"`
	AccountId       int                 `json:"account_id"`
	TransactionDate time.Time           `json:"transaction_date"`
	TransactionType TransactionType     `json:"transaction_type"`
	Amount          float64             `json:"amount"`
	Description     string              `json:"description"`
	Category        TransactionCategory `json:"category"`
	BalanceAfter    float64             `json:"balance_after"`
}

// timestamp layouts accepted from upstream producers, tried in order
var transactionDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"Mon, 02 Jan 2006 15:04:05 GMT", // Flask jsonify
	time.RFC1123Z,
	DateLayout,
}

// UnmarshalJSON accepts the timestamp layouts above for transaction_date, plus epoch milliseconds.
func (t *Transaction) UnmarshalJSON(b []byte) error {
	type alias Transaction
	aux := struct {
		*alias
		TransactionDate json.RawMessage `json:"transaction_date"`
	}{alias: (*alias)(t)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	date, err := parseTransactionDate(aux.TransactionDate)
	if err != nil {
		return fmt.Errorf("transaction %d: %w", t.TransactionId, err)
	}
	t.TransactionDate = date
	return nil
}

func parseTransactionDate(raw json.RawMessage) (time.Time, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return time.Time{}, nil
	}
	if !strings.HasPrefix(s, `"`) {
		var ms json.Number
		if err := json.Unmarshal(raw, &ms); err != nil {
			return time.Time{}, fmt.Errorf("invalid transaction_date %s", s)
		}
		v, err := ms.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid transaction_date %s: %w", s, err)
		}
		return time.UnixMilli(v).UTC(), nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return time.Time{}, err
	}
	for _, layout := range transactionDateLayouts {
		if parsed, err := time.Parse(layout, str); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid transaction_date %q", str)
}

var TransactionHeadings = []string{"transaction_id", "account_id", "transaction_date", "transaction_type", "amount", "description", "category", "balance_after"}

func (t Transaction) GetCellValues() []interface{} {
	return []interface{}{
		t.TransactionId,
		t.AccountId,
		t.TransactionDate.UTC().Format(time.RFC3339),
		string(t.TransactionType),
		t.Amount,
		t.Description,
		string(t.Category),
		t.BalanceAfter,
	}
}
