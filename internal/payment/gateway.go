// Package payment wraps the hosted payment processor: checkout-session
// creation and verification of its signed webhook events.
package payment

import (
	"context"
	"errors"
	"math"
)

var (
	// ErrInvalidSignature is returned for webhook payloads whose signature
	// does not verify against the endpoint secret.
	ErrInvalidSignature = errors.New("payment: invalid webhook signature")
	// ErrTimeout is returned when the processor did not answer in time.
	ErrTimeout = errors.New("payment: processor timed out")
	// ErrNotConfigured is returned when no API key was provided.
	ErrNotConfigured = errors.New("payment: processor not configured")
)

// SessionRequest describes a one-item hosted checkout.  Everything except
// the amount travels to the processor as opaque metadata and comes back on
// the completion event.
type SessionRequest struct {
	ProductID     string
	ProductName   string
	UserID        string
	PromoCodeID   string
	OriginalPrice float64
	FinalPrice    float64
	Currency      string
	SuccessURL    string
	CancelURL     string
}

// Session is a created checkout session.
type Session struct {
	ID  string
	URL string
}

// SessionSummary is the client-safe view of a checkout session.
type SessionSummary struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"paymentStatus"`
	AmountTotal   float64           `json:"amountTotal"`
	Currency      string            `json:"currency"`
	CustomerEmail string            `json:"customerEmail,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// CompletedPayment is a verified "checkout completed" event reduced to the
// fields order creation needs.  Amount is the processor's charged total in
// currency units.  PaymentRef is the payment intent id, or the session id
// when the processor reported none.
type CompletedPayment struct {
	EventID      string
	SessionID    string
	PaymentRef   string
	Amount       float64
	ProductID    string
	ProductName  string
	UserID       string
	PromoCodeID  string
	ContactEmail string
	CardHolder   string
}

// Gateway is the processor boundary used by the checkout service.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error)
	GetCheckoutSession(ctx context.Context, id string) (SessionSummary, error)
	// ParseWebhook verifies and decodes an event.  Event types other than a
	// completed checkout yield (nil, nil).
	ParseWebhook(payload []byte, signature string) (*CompletedPayment, error)
}

// ToMinorUnits converts currency units to cents, rounding half away from
// zero.
func ToMinorUnits(amount float64) int64 { return int64(math.Round(amount * 100)) }

// FromMinorUnits converts cents to currency units.
func FromMinorUnits(cents int64) float64 { return float64(cents) / 100 }
