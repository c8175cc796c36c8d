package notify

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message kinds.
const (
	KindOrderConfirmed = "order_confirmed"
)

// Message is the queue contract between the API and the notifier.
type Message struct {
	Kind      string `json:"kind"`
	OrderID   string `json:"order_id"`
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// DedupKey identifies a message for at-most-once delivery per kind and order.
func (m Message) DedupKey() string {
	return fmt.Sprintf("notify:%s:%s", m.Kind, m.OrderID)
}

// Decode parses and validates a queue message body.
func Decode(body string) (Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return Message{}, fmt.Errorf("decode notification: %w", err)
	}
	if m.Kind == "" || m.OrderID == "" {
		return Message{}, errors.New("notification missing kind or order_id")
	}
	return m, nil
}
