package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"errors"
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/trading-storefront/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's user id, email and role claims into the request
// context.  The provided secret must match the one used when issuing access
// tokens.  Handlers read the values via UserID, Email and Role.
//
// A missing header is 401; a token that fails verification is 403, matching
// what the storefront frontend expects when it decides to refresh.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if !strings.HasPrefix(auth, "Bearer ") || raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Access token required"})
			}

			claims, err := utils.ParseAccessToken(secret, raw)
			if errors.Is(err, utils.ErrTokenExpired) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "Token expired"})
			}
			if err != nil {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "Invalid token"})
			}

			c.Set(ctxUserID, claims.UserID)
			c.Set(ctxEmail, claims.Email)
			c.Set(ctxRole, claims.Role)
			return next(c)
		}
	}
}
