package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/imrishuroy/go-paystack-orderflow/internal/paystack"
)

// ErrNoRecipient is returned when a message carries no email address.
var ErrNoRecipient = errors.New("notification has no recipient email")

// Email is the rendered form handed to the mail relay.
type Email struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Text     string `json:"text"`
	DedupKey string `json:"dedup_key"`
}

// Render builds the customer email for a message.
func Render(m Message) (Email, error) {
	if strings.TrimSpace(m.Email) == "" {
		return Email{}, ErrNoRecipient
	}
	switch m.Kind {
	case KindOrderConfirmed:
		total := paystack.FromKobo(m.Amount).StringFixed(2)
		return Email{
			To:      m.Email,
			Subject: fmt.Sprintf("Order %s confirmed", m.OrderID),
			Text: fmt.Sprintf("We received your payment of %s %s for order %s.\nPayment reference: %s\n",
				m.Currency, total, m.OrderID, m.Reference),
			DedupKey: m.DedupKey(),
		}, nil
	default:
		return Email{}, fmt.Errorf("no template for notification kind %q", m.Kind)
	}
}

// Encode returns the relay queue body for e.
func (e Email) Encode() (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode email: %w", err)
	}
	return string(b), nil
}
