package amqp

import (
	"encoding/json"
	"time"
)

// TransactionCreatedMessage announces one generated transaction to the
// notification worker. It carries only identifiers and the display
// fields a notification needs; the worker fetches the full record from
// the database.
type TransactionCreatedMessage struct {
	TransactionID  int64     `json:"transaction_id"`
	RuleID         int64     `json:"rule_id"`
	RunID          string    `json:"run_id"`
	AmountCents    int64     `json:"amount_cents"`
	OccurrenceDate string    `json:"occurrence_date"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewTransactionCreatedMessage creates a message for one generated transaction
func NewTransactionCreatedMessage(transactionID, ruleID int64, runID string, amountCents int64, occurrenceDate string) *TransactionCreatedMessage {
	return &TransactionCreatedMessage{
		TransactionID:  transactionID,
		RuleID:         ruleID,
		RunID:          runID,
		AmountCents:    amountCents,
		OccurrenceDate: occurrenceDate,
		Timestamp:      time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionCreatedMessageFromJSON creates a message from JSON bytes
func TransactionCreatedMessageFromJSON(data []byte) (*TransactionCreatedMessage, error) {
	var msg TransactionCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
