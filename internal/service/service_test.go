package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/trading-storefront/internal/lock"
	"github.com/iliyamo/trading-storefront/internal/model"
	"github.com/iliyamo/trading-storefront/internal/payment"
	"github.com/iliyamo/trading-storefront/internal/queue"
	"github.com/iliyamo/trading-storefront/internal/recordstore"
	"github.com/iliyamo/trading-storefront/internal/repository"
	"github.com/iliyamo/trading-storefront/internal/utils"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type sentMail struct {
	to, name, token string
}

type fakeNotifier struct {
	mu       sync.Mutex
	verify   []sentMail
	reset    []sentMail
	failWith error
}

func (n *fakeNotifier) SendVerification(to, name, token string, _ time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verify = append(n.verify, sentMail{to, name, token})
	return n.failWith
}

func (n *fakeNotifier) SendPasswordReset(to, name, token string, _ time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset = append(n.reset, sentMail{to, name, token})
	return n.failWith
}

func (n *fakeNotifier) lastVerification() sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.verify[len(n.verify)-1]
}

func (n *fakeNotifier) lastReset() sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reset[len(n.reset)-1]
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []payment.SessionRequest
	event    *payment.CompletedPayment
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req payment.SessionRequest) (payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	return payment.Session{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

func (g *fakeGateway) GetCheckoutSession(_ context.Context, id string) (payment.SessionSummary, error) {
	return payment.SessionSummary{ID: id, Status: "complete", PaymentStatus: "paid"}, nil
}

func (g *fakeGateway) ParseWebhook(_ []byte, signature string) (*payment.CompletedPayment, error) {
	if signature != "valid" {
		return nil, payment.ErrInvalidSignature
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.event == nil {
		return nil, nil
	}
	cp := *g.event
	return &cp, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.OrderCompletedEvent
}

func (p *fakePublisher) PublishOrderCompleted(_ context.Context, ev queue.OrderCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fixture struct {
	store    *recordstore.MemoryStore
	users    *repository.UserRepo
	orders   *repository.OrderRepo
	products *repository.ProductRepo
	promos   *repository.PromoRepo

	clock    *testClock
	mail     *fakeNotifier
	gateway  *fakeGateway
	events   *fakePublisher
	tokens   *TokenService
	auth     *AuthService
	catalog  *CatalogService
	checkout *CheckoutService
	ordersvc *OrderService
	admin    *AdminService
}

const (
	testAccessSecret  = "access-secret"
	testRefreshSecret = "refresh-secret"
	testPassword      = "Secret123"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop()
	f := &fixture{
		store:   recordstore.NewMemoryStore(),
		clock:   &testClock{now: time.Now().UTC().Truncate(time.Second)},
		mail:    &fakeNotifier{},
		gateway: &fakeGateway{},
		events:  &fakePublisher{},
	}
	f.users = repository.NewUserRepo(f.store, "Users")
	f.orders = repository.NewOrderRepo(f.store, "Orders")
	f.products = repository.NewProductRepo(f.store, "Products Info")
	f.promos = repository.NewPromoRepo(f.store, "Promo Codes")

	locker := lock.NewLocalLocker(time.Second)
	f.tokens = NewTokenService(f.users, TokenTTLs{Verification: 48 * time.Hour, Reset: time.Hour, Refresh: 30 * 24 * time.Hour})
	f.tokens.now = f.clock.Now
	f.auth = NewAuthService(f.users, f.tokens, f.mail, locker, AuthConfig{
		AccessSecret:      testAccessSecret,
		RefreshSecret:     testRefreshSecret,
		AccessTTL:         time.Hour,
		RefreshWrapperTTL: 30 * 24 * time.Hour,
		VerifyTTL:         48 * time.Hour,
		ResetTTL:          time.Hour,
		BcryptCost:        utils.MinBcryptCost,
	}, log)
	f.auth.now = f.clock.Now
	f.catalog = NewCatalogService(f.products, f.promos, log)
	f.catalog.now = f.clock.Now
	f.checkout = NewCheckoutService(f.gateway, f.catalog, f.orders, f.users, locker, f.events,
		CheckoutConfig{FrontendURL: "https://shop.example", Currency: "usd"}, log)
	f.ordersvc = NewOrderService(f.orders, f.products, log)
	f.admin = NewAdminService(f.users, log)
	return f
}

// seedUser stores an account with testPassword.
func (f *fixture) seedUser(t *testing.T, email string, verified, active bool) model.User {
	t.Helper()
	hash, err := utils.HashPassword(testPassword, utils.MinBcryptCost)
	require.NoError(t, err)
	u, err := f.users.Create(context.Background(), model.User{
		Name:            "Test User",
		Email:           utils.NormalizeEmail(email),
		PasswordHash:    hash,
		Role:            model.RoleUser,
		IsActive:        active,
		IsEmailVerified: verified,
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) seedProduct(t *testing.T, name string, price float64) model.Product {
	t.Helper()
	p, err := f.products.Create(context.Background(), model.Product{
		Name:         name,
		Type:         model.ProductTypeIndicator,
		Price:        price,
		ThumbnailURL: "https://cdn.example/" + name + ".png",
		IsActive:     true,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) seedPromo(t *testing.T, p model.PromoCode) model.PromoCode {
	t.Helper()
	created, err := f.promos.Create(context.Background(), p)
	require.NoError(t, err)
	return created
}

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), "error: %v", err)
	var se *Error
	require.True(t, errors.As(err, &se))
	return se
}
