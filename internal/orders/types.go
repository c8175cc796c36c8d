package orders

import "time"

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// DeliveryStatus is the fulfillment state of an order.
type DeliveryStatus string

const (
	DeliveryPending    DeliveryStatus = "pending"
	DeliveryProcessing DeliveryStatus = "processing"
	DeliveryShipped    DeliveryStatus = "shipped"
	DeliveryDelivered  DeliveryStatus = "delivered"
	DeliveryCancelled  DeliveryStatus = "cancelled"
)

// LineItem is a product snapshot taken at checkout. UnitPrice is in minor
// currency units and is never refreshed from the catalog.
type LineItem struct {
	ProductID string `dynamodbav:"product_id" json:"product_id"`
	Quantity  int    `dynamodbav:"quantity" json:"quantity"`
	UnitPrice int64  `dynamodbav:"unit_price" json:"unit_price"`
}

// Address is the shipping destination.
type Address struct {
	FullName   string `dynamodbav:"full_name" json:"full_name"`
	Street     string `dynamodbav:"street" json:"street"`
	City       string `dynamodbav:"city" json:"city"`
	State      string `dynamodbav:"state,omitempty" json:"state,omitempty"`
	Country    string `dynamodbav:"country" json:"country"`
	PostalCode string `dynamodbav:"postal_code,omitempty" json:"postal_code,omitempty"`
	Phone      string `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
}

// Order represents the item stored in the orders table.
//
// Amount is the total in minor currency units, fixed at creation.
// PaymentReference is empty until a payment is initialized; it is omitted
// from the DynamoDB item when empty so the reference index stays sparse.
type Order struct {
	OrderID          string         `dynamodbav:"order_id" json:"id"` // PK
	UserID           string         `dynamodbav:"user_id" json:"user_id"`
	Email            string         `dynamodbav:"email,omitempty" json:"email,omitempty"`
	Items            []LineItem     `dynamodbav:"items" json:"items"`
	Amount           int64          `dynamodbav:"amount" json:"amount"`
	Currency         string         `dynamodbav:"currency" json:"currency"`
	ShippingAddress  Address        `dynamodbav:"shipping_address" json:"shipping_address"`
	PaymentMethod    string         `dynamodbav:"payment_method" json:"payment_method"`
	PaymentStatus    PaymentStatus  `dynamodbav:"payment_status" json:"payment_status"`
	DeliveryStatus   DeliveryStatus `dynamodbav:"delivery_status" json:"delivery_status"`
	PaymentReference string         `dynamodbav:"payment_reference,omitempty" json:"payment_reference,omitempty"`
	PaidAt           *time.Time     `dynamodbav:"paid_at,omitempty" json:"paid_at,omitempty"`
	CreatedAt        time.Time      `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `dynamodbav:"updated_at" json:"updated_at"`
}

// Total sums the line items in minor units.
func Total(items []LineItem) int64 {
	var sum int64
	for _, it := range items {
		sum += int64(it.Quantity) * it.UnitPrice
	}
	return sum
}
