package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/trading-storefront/internal/handler"    // handlers implementing each endpoint
	"github.com/iliyamo/trading-storefront/internal/middleware" // JWT, role, rate-limit, cache and CSRF middleware
)

// Guards bundles the middleware dependencies shared by every route group.
// Limits is required; a disabled config makes its tiers pass-through. A
// nil Cache disables response caching.
type Guards struct {
	JWTSecret string
	Limits    *middleware.RateLimiter
	Cache     *middleware.ResponseCache
	CSRF      bool
}

func (g Guards) bearer() echo.MiddlewareFunc { return middleware.JWTAuth(g.JWTSecret) }

// api opens an /api group behind the general API limiter.
func (g Guards) api(e *echo.Echo, mw ...echo.MiddlewareFunc) *echo.Group {
	return e.Group("/api", append([]echo.MiddlewareFunc{g.Limits.API()}, mw...)...)
}

// RegisterNotFound must run after every other Register call.  Each guarded
// /api group installs catch-all routes wrapped in its own middleware, so
// an unknown path would otherwise answer with whichever group registered
// last (typically 401 from a bearer group).  The catch-alls are replaced
// with a plain 404 behind the API limiter only.
func RegisterNotFound(e *echo.Echo, g Guards) {
	for _, r := range e.Routes() {
		if r.Method == echo.RouteNotFound && strings.HasPrefix(r.Path, "/api") {
			e.RouteNotFound(r.Path, notFound, g.Limits.API())
		}
	}
}

func notFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, echo.Map{"error": "Not found"})
}

// RegisterRoutes registers the unauthenticated operational endpoints:
// liveness, environment status and the Prometheus scrape target.
func RegisterRoutes(e *echo.Echo, s *handler.StatusHandler, metrics http.Handler) {
	e.GET("/healthz", handler.Health)
	e.GET("/health", s.Status)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterAuth registers /api/auth.  Credential endpoints sit behind their
// own rate-limit tiers; account endpoints require a bearer token and, when
// enabled, the CSRF double-submit header.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, g Guards) {
	pub := g.api(e).Group("/auth")
	pub.POST("/register", a.Register, g.Limits.Auth())
	pub.POST("/login", a.Login, g.Limits.Auth())
	pub.POST("/refresh", a.Refresh, g.Limits.TokenRefresh())
	pub.POST("/verify-email", a.VerifyEmail)
	pub.POST("/forgot-password", a.ForgotPassword, g.Limits.PasswordReset())
	pub.POST("/reset-password", a.ResetPassword, g.Limits.PasswordReset())

	auth := g.api(e, g.bearer(), middleware.CSRF(g.CSRF)).Group("/auth")
	auth.POST("/logout", a.Logout)
	auth.GET("/me", a.Me)
	auth.PUT("/profile", a.UpdateProfile)
	auth.POST("/resend-verification", a.ResendVerification)
	auth.POST("/change-password", a.ChangePassword, g.Limits.PasswordChange())
	auth.POST("/change-email", a.ChangeEmail)
	auth.POST("/delete-account", a.DeleteAccount)
}
