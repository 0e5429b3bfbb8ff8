package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trading-storefront/internal/middleware"
	"github.com/iliyamo/trading-storefront/internal/utils"
)

const csrfTTL = time.Hour

// CSRFHandler issues double-submit tokens.
type CSRFHandler struct {
	Secure bool
}

func NewCSRFHandler(secure bool) *CSRFHandler {
	return &CSRFHandler{Secure: secure}
}

// Token sets a script-readable csrf_token cookie and echoes the value.
// Clients copy it into the X-CSRF-Token header on writes.
func (h *CSRFHandler) Token(c echo.Context) error {
	tok, err := utils.RandomHex(32)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to generate CSRF token"})
	}
	c.SetCookie(&http.Cookie{
		Name:     middleware.CSRFCookie,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(csrfTTL / time.Second),
		HttpOnly: false,
		Secure:   h.Secure,
		SameSite: http.SameSiteStrictMode,
	})
	return c.JSON(http.StatusOK, echo.Map{"csrfToken": tok})
}
