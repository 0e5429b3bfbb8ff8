package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// CSRFCookie and CSRFHeader name the double-submit pair.
const (
	CSRFCookie = "csrf_token"
	CSRFHeader = "X-CSRF-Token"
)

// CSRF enforces the double-submit check on state-changing requests: the
// X-CSRF-Token header must equal the csrf_token cookie issued by
// GET /csrf-token.  Safe methods pass.  When disabled it is a no-op.
func CSRF(enabled bool) echo.MiddlewareFunc {
	if !enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}
			header := c.Request().Header.Get(CSRFHeader)
			if header == "" {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "CSRF token required"})
			}
			cookie, err := c.Cookie(CSRFCookie)
			if err != nil || cookie.Value == "" {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "Invalid CSRF token"})
			}
			if subtle.ConstantTimeCompare([]byte(header), []byte(cookie.Value)) != 1 {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "CSRF token mismatch"})
			}
			return next(c)
		}
	}
}
