package middleware

// identity.go defines the context keys set by JWTAuth and RequestID and the
// accessors handlers use to read them.  Accessors return "" when the value
// is absent.

import "github.com/labstack/echo/v4"

const (
	ctxUserID    = "user_id"
	ctxEmail     = "email"
	ctxRole      = "role"
	ctxRequestID = "request_id"
)

func str(c echo.Context, key string) string {
	s, _ := c.Get(key).(string)
	return s
}

// UserID returns the authenticated user's id.
func UserID(c echo.Context) string { return str(c, ctxUserID) }

// Email returns the email claim of the access token.
func Email(c echo.Context) string { return str(c, ctxEmail) }

// Role returns the role claim of the access token.
func Role(c echo.Context) string { return str(c, ctxRole) }

// RequestIDOf returns the id assigned by RequestID.
func RequestIDOf(c echo.Context) string { return str(c, ctxRequestID) }

// clientIP is the rate-limit identity.  Echo resolves it from the
// forwarding headers according to the server's IPExtractor.
func clientIP(c echo.Context) string {
	if ip := c.RealIP(); ip != "" {
		return ip
	}
	return "unknown"
}
