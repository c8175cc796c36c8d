package paystack

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Transaction statuses reported by the gateway.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
)

// Webhook event types.
const (
	EventChargeSuccess = "charge.success"
	EventChargeFailed  = "charge.failed"
)

// ErrMissingMetadata is returned when a transaction does not carry both the
// order id and the user id.
var ErrMissingMetadata = errors.New("transaction metadata missing order or user id")

// CustomerInfo is optional customer detail forwarded to the gateway.
type CustomerInfo struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Metadata is the envelope carried through the gateway's opaque metadata
// field so a confirmed transaction can be tied back to an order and a user.
type Metadata struct {
	OrderID  string        `json:"tempOrderId"`
	UserID   string        `json:"userId"`
	Customer *CustomerInfo `json:"customer,omitempty"`
}

// Validate reports ErrMissingMetadata unless both ids are present.
func (m Metadata) Validate() error {
	if strings.TrimSpace(m.OrderID) == "" || strings.TrimSpace(m.UserID) == "" {
		return ErrMissingMetadata
	}
	return nil
}

// UnmarshalJSON accepts the object form, the JSON-encoded string form the
// gateway returns for stringified metadata, and empty values. Any other
// shape decodes to empty metadata, which Validate rejects.
func (m *Metadata) UnmarshalJSON(b []byte) error {
	*m = Metadata{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		s = strings.TrimSpace(s)
		if s == "" || s[0] != '{' {
			return nil
		}
		b = []byte(s)
	}
	if b[0] != '{' {
		return nil
	}

	var raw struct {
		OrderID  flexString    `json:"tempOrderId"`
		UserID   flexString    `json:"userId"`
		Customer *CustomerInfo `json:"customer"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	m.OrderID = string(raw.OrderID)
	m.UserID = string(raw.UserID)
	m.Customer = raw.Customer
	return nil
}

// flexString decodes a JSON string or number into a string.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	*f = ""
	return nil
}

// Customer is the gateway's view of the paying customer.
type Customer struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// Transaction is the gateway's authoritative report on a payment attempt.
// Amount is in minor currency units.
type Transaction struct {
	ID              int64      `json:"id"`
	Status          string     `json:"status"`
	Reference       string     `json:"reference"`
	Amount          int64      `json:"amount"`
	Currency        string     `json:"currency"`
	Channel         string     `json:"channel"`
	GatewayResponse string     `json:"gateway_response"`
	PaidAt          *time.Time `json:"paid_at"`
	Metadata        Metadata   `json:"metadata"`
	Customer        Customer   `json:"customer"`
}

// Successful reports whether the gateway settled the transaction.
func (t Transaction) Successful() bool {
	return t.Status == StatusSuccess
}

// InitializeRequest opens a transaction. Amount is in minor units.
type InitializeRequest struct {
	Email       string
	Amount      int64
	Currency    string
	Reference   string
	CallbackURL string
	Metadata    Metadata
}

// InitializeResult is returned once the gateway accepted a transaction.
type InitializeResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type initializeBody struct {
	Email       string `json:"email"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency,omitempty"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
	Metadata    string `json:"metadata,omitempty"`
}

func newInitializeBody(req InitializeRequest) (initializeBody, error) {
	meta, err := json.Marshal(req.Metadata)
	if err != nil {
		return initializeBody{}, err
	}
	return initializeBody{
		Email:       req.Email,
		Amount:      strconv.FormatInt(req.Amount, 10),
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		Metadata:    string(meta),
	}, nil
}

// envelope is the common response wrapper of the gateway API.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}
