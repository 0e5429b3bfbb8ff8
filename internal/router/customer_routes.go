package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trading-storefront/internal/handler"
	"github.com/iliyamo/trading-storefront/internal/middleware"
)

// Storefront groups the handlers behind customer-facing routes.
type Storefront struct {
	Catalog  *handler.CatalogHandler
	Checkout *handler.CheckoutHandler
	Orders   *handler.OrderHandler
	CSRF     *handler.CSRFHandler
}

// RegisterCustomer registers the storefront under /api: the cached public
// catalog, promo validation, checkout and the caller's order history.
// The processor webhook is mounted outside the API limiter and reads the
// raw body for signature verification.
func RegisterCustomer(e *echo.Echo, s Storefront, g Guards) {
	e.POST("/api/stripe-webhook", s.Checkout.Webhook)

	pub := g.api(e)
	pub.GET("/csrf-token", s.CSRF.Token)
	pub.GET("/products", s.Catalog.ListProducts, g.Cache.Middleware())
	pub.GET("/products/:id", s.Catalog.GetProduct, g.Cache.Middleware())
	pub.POST("/promo-codes/validate", s.Catalog.ValidatePromo)
	pub.GET("/checkout-session", s.Checkout.GetSession)

	auth := g.api(e, g.bearer(), middleware.CSRF(g.CSRF))
	auth.POST("/create-checkout-session", s.Checkout.CreateSession)
	auth.GET("/orders/my-orders", s.Orders.Mine)
}
