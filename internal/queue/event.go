// Package queue defines message payloads exchanged over the message broker
// together with the publisher used by the API and the relay consumer run by
// the `relay` command.
package queue

// OrderCompletedQueue is the default queue name for order events.
const OrderCompletedQueue = "order.completed"

// OrderCompletedEvent is published once per newly recorded order.  It
// carries enough information for downstream automation (fulfilment mails,
// spreadsheets, analytics) without querying the record store.
type OrderCompletedEvent struct {
	OrderID       string  `json:"order_id"`
	PaymentRef    string  `json:"stripe_payment_id"`
	ProductID     string  `json:"product_id"`
	ProductName   string  `json:"product_name"`
	Amount        float64 `json:"amount"`
	CustomerEmail string  `json:"customer_email"`
	CustomerName  string  `json:"customer_name"`
	ContactInfo   string  `json:"contact_info,omitempty"`
	CardHolder    string  `json:"card_holder,omitempty"`
	PromoCodeID   string  `json:"promo_code_id,omitempty"`
	CompletedAt   string  `json:"completed_at"`
}
