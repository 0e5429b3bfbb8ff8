package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

const checkoutCompleted = "checkout.session.completed"

// Stripe implements Gateway on the Stripe API.
type Stripe struct {
	api           *client.API
	webhookSecret string
	timeout       time.Duration
	configured    bool
}

// NewStripe builds a client whose HTTP calls are bounded by timeout.
func NewStripe(secretKey, webhookSecret string, timeout time.Duration) *Stripe {
	hc := &http.Client{Timeout: timeout}
	cfg := &stripe.BackendConfig{HTTPClient: hc, MaxNetworkRetries: stripe.Int64(1)}
	api := &client.API{}
	api.Init(secretKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	})
	return &Stripe{api: api, webhookSecret: webhookSecret, timeout: timeout, configured: secretKey != ""}
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error) {
	if !s.configured {
		return Session{}, ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.ProductName),
				},
				UnitAmount: stripe.Int64(ToMinorUnits(req.FinalPrice)),
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata("productId", req.ProductID)
	params.AddMetadata("productName", req.ProductName)
	params.AddMetadata("userId", req.UserID)
	params.AddMetadata("promoCodeId", req.PromoCodeID)
	params.AddMetadata("originalPrice", strconv.FormatFloat(req.OriginalPrice, 'f', 2, 64))
	params.AddMetadata("finalPrice", strconv.FormatFloat(req.FinalPrice, 'f', 2, 64))

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, mapStripeErr(ctx, err)
	}
	return Session{ID: sess.ID, URL: sess.URL}, nil
}

func (s *Stripe) GetCheckoutSession(ctx context.Context, id string) (SessionSummary, error) {
	if !s.configured {
		return SessionSummary{}, ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := s.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return SessionSummary{}, mapStripeErr(ctx, err)
	}
	out := SessionSummary{
		ID:            sess.ID,
		Status:        string(sess.Status),
		PaymentStatus: string(sess.PaymentStatus),
		AmountTotal:   FromMinorUnits(sess.AmountTotal),
		Currency:      string(sess.Currency),
		Metadata:      sess.Metadata,
	}
	if sess.CustomerDetails != nil {
		out.CustomerEmail = sess.CustomerDetails.Email
	}
	return out, nil
}

func (s *Stripe) ParseWebhook(payload []byte, signature string) (*CompletedPayment, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if event.Type != checkoutCompleted || event.Data == nil {
		return nil, nil
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("payment: decode checkout session: %w", err)
	}
	return completedFromSession(event.ID, &sess), nil
}

func completedFromSession(eventID string, sess *stripe.CheckoutSession) *CompletedPayment {
	cp := &CompletedPayment{
		EventID:    eventID,
		SessionID:  sess.ID,
		PaymentRef: sess.ID,
		Amount:     FromMinorUnits(sess.AmountTotal),
	}
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		cp.PaymentRef = sess.PaymentIntent.ID
	}
	if md := sess.Metadata; md != nil {
		cp.ProductID = md["productId"]
		cp.ProductName = md["productName"]
		cp.UserID = md["userId"]
		cp.PromoCodeID = md["promoCodeId"]
	}
	if cd := sess.CustomerDetails; cd != nil {
		cp.ContactEmail = cd.Email
		cp.CardHolder = cd.Name
	}
	if cp.CardHolder == "" {
		if at := strings.Index(cp.ContactEmail, "@"); at > 0 {
			cp.CardHolder = cp.ContactEmail[:at]
		} else {
			cp.CardHolder = "Customer"
		}
	}
	return cp
}

func mapStripeErr(ctx context.Context, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &ne) && ne.Timeout()) {
		return ErrTimeout
	}
	return fmt.Errorf("payment: stripe: %w", err)
}
