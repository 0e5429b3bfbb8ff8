package model

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderRefunded  OrderStatus = "refunded"
	OrderFailed    OrderStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderCompleted, OrderRefunded, OrderFailed:
		return true
	}
	return false
}

// Order is a purchase record.  Product and customer fields are snapshots
// taken when the order was created, not live references.  PaymentRef is
// the processor's payment identifier and the idempotency key: at most one
// order exists per PaymentRef.
type Order struct {
	ID            string      `json:"id"`
	ProductID     string      `json:"productId"`
	ProductName   string      `json:"productName"`
	Amount        float64     `json:"amount"`
	Status        OrderStatus `json:"status"`
	PaymentRef    string      `json:"stripePaymentId"`
	CustomerEmail string      `json:"customerEmail"`
	CustomerName  string      `json:"customerName"`
	ContactInfo   string      `json:"contactInfo,omitempty"`
	CardHolder    string      `json:"cardHolder,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`

	// Enrichment for admin listings; not stored on the order.
	ProductThumbnail string `json:"productThumbnail,omitempty"`
	ProductType      string `json:"productType,omitempty"`
}

// OrderStats aggregates the order ledger.  Revenue counts completed
// orders only.
type OrderStats struct {
	TotalOrders  int     `json:"totalOrders"`
	TotalRevenue float64 `json:"totalRevenue"`
	Completed    int     `json:"completed"`
	Pending      int     `json:"pending"`
	Refunded     int     `json:"refunded"`
	Failed       int     `json:"failed"`
}
