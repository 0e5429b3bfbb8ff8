package service

import (
	"context"
	"errors"
	"math"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/trading-storefront/internal/lock"
	"github.com/iliyamo/trading-storefront/internal/logging"
	"github.com/iliyamo/trading-storefront/internal/metrics"
	"github.com/iliyamo/trading-storefront/internal/model"
	"github.com/iliyamo/trading-storefront/internal/payment"
	"github.com/iliyamo/trading-storefront/internal/queue"
	"github.com/iliyamo/trading-storefront/internal/repository"
	"github.com/iliyamo/trading-storefront/internal/utils"
)

// EventPublisher announces newly recorded orders.  *queue.Publisher and
// queue.NopPublisher implement it.
type EventPublisher interface {
	PublishOrderCompleted(ctx context.Context, ev queue.OrderCompletedEvent) error
}

// CheckoutConfig tunes the orchestrator.
type CheckoutConfig struct {
	FrontendURL           string
	Currency              string
	TrustClientFinalPrice bool
	LockTTL               time.Duration
	// PublishTimeout bounds the order event publish that follows a new
	// order.
	PublishTimeout time.Duration
}

// CheckoutService creates payment sessions and turns verified payment
// events into orders, at most one per payment reference.
type CheckoutService struct {
	gateway payment.Gateway
	catalog *CatalogService
	orders  *repository.OrderRepo
	users   *repository.UserRepo
	locker  lock.Locker
	events  EventPublisher
	cfg     CheckoutConfig
	log     *zap.Logger
}

func NewCheckoutService(gateway payment.Gateway, catalog *CatalogService, orders *repository.OrderRepo, users *repository.UserRepo, locker lock.Locker, events EventPublisher, cfg CheckoutConfig, log *zap.Logger) *CheckoutService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &CheckoutService{gateway: gateway, catalog: catalog, orders: orders, users: users, locker: locker, events: events, cfg: cfg, log: log}
}

// CheckoutRequest is the client's purchase intent.  FinalPrice is the
// price the client displayed; it is checked, not trusted, unless the
// legacy trust mode is on.
type CheckoutRequest struct {
	ProductID   string   `json:"productId"`
	PromoCodeID string   `json:"promoCodeId"`
	FinalPrice  *float64 `json:"finalPrice"`
}

// CreateCheckoutSession prices the product server-side, applies the promo
// if any and opens a hosted checkout session.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, userID string, req CheckoutRequest) (payment.Session, error) {
	req.ProductID = strings.TrimSpace(req.ProductID)
	req.PromoCodeID = strings.TrimSpace(req.PromoCodeID)
	if req.ProductID == "" {
		return payment.Session{}, validationError("Product ID is required")
	}
	product, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return payment.Session{}, err
	}

	price := product.Price
	if req.PromoCodeID != "" {
		quote, err := s.catalog.quoteByID(ctx, req.PromoCodeID, product)
		if err != nil {
			return payment.Session{}, err
		}
		price = quote.FinalPrice
	}
	if req.FinalPrice != nil {
		client := *req.FinalPrice
		switch {
		case math.IsNaN(client) || client < 0:
			return payment.Session{}, validationError("Invalid final price")
		case s.cfg.TrustClientFinalPrice:
			price = client
		case math.Abs(client-price) > 0.01+1e-9:
			s.log.Warn("checkout price mismatch", logging.UserID(userID), logging.ProductID(product.ID),
				zap.Float64("client_price", client), zap.Float64("server_price", price))
			return payment.Session{}, validationError("Final price does not match the current price")
		}
	}
	if price <= 0 {
		return payment.Session{}, validationError("Order amount must be greater than zero")
	}

	cancel := url.Values{}
	cancel.Set("product_id", product.ID)
	cancel.Set("product_name", product.Name)
	sess, err := s.gateway.CreateCheckoutSession(ctx, payment.SessionRequest{
		ProductID:     product.ID,
		ProductName:   product.Name,
		UserID:        userID,
		PromoCodeID:   req.PromoCodeID,
		OriginalPrice: product.Price,
		FinalPrice:    price,
		Currency:      s.cfg.Currency,
		SuccessURL:    s.cfg.FrontendURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.cfg.FrontendURL + "/cancel?" + cancel.Encode(),
	})
	if errors.Is(err, payment.ErrNotConfigured) {
		return payment.Session{}, external(s.log, err, "Payment processing is not configured")
	}
	if err != nil {
		return payment.Session{}, external(s.log, err, "Failed to create checkout session", logging.UserID(userID))
	}
	s.log.Info("checkout session created", logging.UserID(userID), logging.ProductID(product.ID),
		zap.String("session_id", sess.ID), zap.Float64("amount", price))
	return sess, nil
}

// GetCheckoutSession returns the client-safe summary of a session.
func (s *CheckoutService) GetCheckoutSession(ctx context.Context, id string) (payment.SessionSummary, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return payment.SessionSummary{}, validationError("Session ID is required")
	}
	sum, err := s.gateway.GetCheckoutSession(ctx, id)
	if err != nil {
		return payment.SessionSummary{}, external(s.log, err, "Failed to retrieve checkout session")
	}
	return sum, nil
}

// WebhookResult is acknowledged to the processor.
type WebhookResult struct {
	Received  bool   `json:"received"`
	OrderID   string `json:"orderId,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// HandleWebhook verifies a raw event.  A bad signature is the only
// failure reported to the caller; order-creation errors are logged and
// the delivery is still acknowledged.
func (s *CheckoutService) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	cp, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("invalid").Inc()
		s.log.Warn("webhook rejected", zap.Error(err))
		if errors.Is(err, payment.ErrInvalidSignature) {
			return WebhookResult{}, validationError("Webhook signature verification failed")
		}
		return WebhookResult{}, validationError("Invalid webhook payload")
	}
	if cp == nil {
		metrics.WebhookEventsTotal.WithLabelValues("ignored").Inc()
		return WebhookResult{Received: true}, nil
	}

	order, dup, err := s.HandlePaymentCompleted(ctx, *cp)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("failed").Inc()
		s.log.Error("order creation from webhook failed", logging.PaymentRef(cp.PaymentRef), zap.String("event_id", cp.EventID), zap.Error(err))
		return WebhookResult{Received: true}, nil
	}
	if dup {
		metrics.WebhookEventsTotal.WithLabelValues("duplicate").Inc()
	} else {
		metrics.WebhookEventsTotal.WithLabelValues("created").Inc()
	}
	return WebhookResult{Received: true, OrderID: order.ID, Duplicate: dup}, nil
}

// HandlePaymentCompleted records the order for a completed payment.  When
// an order with the same payment reference exists it is returned with
// dup=true and nothing is written.  The check-then-create sequence runs
// under a lock keyed by the payment reference; the order event is
// published after the lock is released.
func (s *CheckoutService) HandlePaymentCompleted(ctx context.Context, cp payment.CompletedPayment) (model.Order, bool, error) {
	if cp.PaymentRef == "" || cp.ProductID == "" || cp.ProductName == "" || cp.Amount <= 0 {
		return model.Order{}, false, validationError("Missing required order data")
	}
	order, dup, err := s.recordOrder(ctx, cp)
	if err != nil || dup {
		return order, dup, err
	}

	if cp.PromoCodeID != "" {
		if err := s.catalog.incrementUsage(ctx, cp.PromoCodeID); err != nil {
			s.log.Warn("promo usage increment failed", zap.String("promo_id", cp.PromoCodeID), zap.Error(err))
		}
	}
	pctx, cancel := context.WithTimeout(ctx, s.cfg.PublishTimeout)
	defer cancel()
	s.publish(pctx, order, cp)
	return order, false, nil
}

// recordOrder is the locked check-then-create step.
func (s *CheckoutService) recordOrder(ctx context.Context, cp payment.CompletedPayment) (model.Order, bool, error) {
	release, err := s.locker.Acquire(ctx, "order:"+cp.PaymentRef, s.cfg.LockTTL)
	if err != nil {
		return model.Order{}, false, err
	}
	defer release()

	existing, err := s.orders.FindByPaymentRef(ctx, cp.PaymentRef)
	if err == nil {
		s.log.Info("duplicate payment event", logging.PaymentRef(cp.PaymentRef), logging.OrderID(existing.ID))
		return existing, true, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Order{}, false, err
	}

	email, name := s.customer(ctx, cp)
	order, err := s.orders.Create(ctx, model.Order{
		ProductID:     cp.ProductID,
		ProductName:   cp.ProductName,
		Amount:        cp.Amount,
		Status:        model.OrderCompleted,
		PaymentRef:    cp.PaymentRef,
		CustomerEmail: email,
		CustomerName:  name,
		ContactInfo:   cp.ContactEmail,
		CardHolder:    cp.CardHolder,
	})
	if err != nil {
		return model.Order{}, false, err
	}
	s.log.Info("order created", logging.OrderID(order.ID), logging.PaymentRef(cp.PaymentRef), zap.Float64("amount", order.Amount))
	return order, false, nil
}

// customer snapshots the buyer from the account referenced in the session
// metadata.  Without an account both values stay empty; what the processor
// collected is kept separately as contact info and card holder.
func (s *CheckoutService) customer(ctx context.Context, cp payment.CompletedPayment) (string, string) {
	if cp.UserID == "" {
		s.log.Warn("payment without user id", logging.PaymentRef(cp.PaymentRef))
		return "", ""
	}
	u, err := s.users.GetByID(ctx, cp.UserID)
	if err != nil {
		s.log.Warn("order customer lookup failed", logging.UserID(cp.UserID), zap.Error(err))
		return "", ""
	}
	return utils.NormalizeEmail(u.Email), u.Name
}

func (s *CheckoutService) publish(ctx context.Context, o model.Order, cp payment.CompletedPayment) {
	ev := queue.OrderCompletedEvent{
		OrderID:       o.ID,
		PaymentRef:    o.PaymentRef,
		ProductID:     o.ProductID,
		ProductName:   o.ProductName,
		Amount:        o.Amount,
		CustomerEmail: o.CustomerEmail,
		CustomerName:  o.CustomerName,
		ContactInfo:   o.ContactInfo,
		CardHolder:    o.CardHolder,
		PromoCodeID:   cp.PromoCodeID,
		CompletedAt:   o.CreatedAt.UTC().Format(time.RFC3339),
	}
	if err := s.events.PublishOrderCompleted(ctx, ev); err != nil {
		s.log.Warn("order event publish failed", logging.OrderID(o.ID), zap.Error(err))
	}
}
