package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trading-storefront/internal/middleware"
	"github.com/iliyamo/trading-storefront/internal/service"
)

// maxWebhookBody caps the raw event read from the processor.
const maxWebhookBody = 1 << 20

// CheckoutHandler serves hosted checkout and the processor webhook.
type CheckoutHandler struct {
	Checkout *service.CheckoutService
}

func NewCheckoutHandler(checkout *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{Checkout: checkout}
}

// CreateSession opens a checkout session for the caller and returns its
// redirect URL.
func (h *CheckoutHandler) CreateSession(c echo.Context) error {
	var req service.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sess, err := h.Checkout.CreateCheckoutSession(ctx, middleware.UserID(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"url": sess.URL})
}

// GetSession returns the client-safe view of ?sessionId=.
func (h *CheckoutHandler) GetSession(c echo.Context) error {
	id := c.QueryParam("sessionId")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Session ID is required"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sum, err := h.Checkout.GetCheckoutSession(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}

// Webhook verifies the signature over the unparsed body, so it must be
// mounted before anything that consumes the request body.
func (h *CheckoutHandler) Webhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Checkout.HandleWebhook(ctx, payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
