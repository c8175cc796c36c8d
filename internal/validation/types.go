package validation

import "github.com/shopspring/decimal"

// Item is one checkout line. UnitPrice is the price the customer saw and is
// kept as the order snapshot.
type Item struct {
	ProductID string          `json:"productId" validate:"required"`
	Quantity  int             `json:"quantity" validate:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unitPrice" validate:"required,gt=0"`
}

// Address is the shipping destination.
type Address struct {
	FullName   string `json:"fullName" validate:"required"`
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state"`
	Country    string `json:"country" validate:"required"`
	PostalCode string `json:"postalCode"`
	Phone      string `json:"phone" validate:"omitempty,e164"`
}

// CreateOrderRequest is the payload for POST /orders
type CreateOrderRequest struct {
	Email           string          `json:"email" validate:"required,email"`
	Items           []Item          `json:"items" validate:"required,min=1,dive"`
	Amount          decimal.Decimal `json:"amount" validate:"required,gt=0"` // total the client claims
	Currency        string          `json:"currency" validate:"omitempty,len=3,alpha"`
	ShippingAddress Address         `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod" validate:"required,oneof=card bank_transfer ussd"`
}

// CustomerInfo is optional detail forwarded to the gateway.
type CustomerInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

// InitializePaymentRequest is the payload for POST /payments/initialize
type InitializePaymentRequest struct {
	Email        string          `json:"email" validate:"required,email"`
	Amount       decimal.Decimal `json:"amount" validate:"required,gt=0"`
	OrderID      string          `json:"orderId" validate:"required"`
	CustomerInfo *CustomerInfo   `json:"customerInfo,omitempty"`
	CallbackURL  string          `json:"callbackUrl,omitempty" validate:"omitempty,url"`
}

// VerifyPaymentRequest is the payload for POST /payments/verify
type VerifyPaymentRequest struct {
	Reference string `json:"reference" validate:"required"`
}
