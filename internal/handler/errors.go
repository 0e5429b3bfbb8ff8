package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trading-storefront/internal/service"
)

// requestTimeout bounds a handler's work.  Individual store and processor
// calls carry their own, shorter deadline.
const requestTimeout = 30 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(k service.Kind) int {
	switch k {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindAuth:
		return http.StatusUnauthorized
	case service.KindForbidden, service.KindEmailNotVerified:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindRateLimit:
		return http.StatusTooManyRequests
	case service.KindGatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorBody renders a service error as {"error": message} plus the
// optional details array and the verification hint.
func errorBody(err error) (int, echo.Map) {
	var se *service.Error
	if !errors.As(err, &se) {
		return http.StatusInternalServerError, echo.Map{"error": "Internal server error"}
	}
	body := echo.Map{"error": se.Message}
	if len(se.Details) > 0 {
		body["details"] = se.Details
	}
	if se.Kind == service.KindEmailNotVerified {
		body["needsEmailVerification"] = true
		body["email"] = se.Email
	}
	return statusFor(se.Kind), body
}

func writeError(c echo.Context, err error) error {
	status, body := errorBody(err)
	return c.JSON(status, body)
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
}
