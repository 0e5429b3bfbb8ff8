package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/trading-storefront/internal/config"
	"github.com/iliyamo/trading-storefront/internal/metrics"
	"github.com/iliyamo/trading-storefront/internal/ratelimit"
)

// RateLimiter builds per-tier middlewares sharing one counter backend.
type RateLimiter struct {
	cfg     config.RateLimitConfig
	limiter ratelimit.Limiter
	log     *zap.Logger
}

func NewRateLimiter(cfg config.RateLimitConfig, limiter ratelimit.Limiter, log *zap.Logger) *RateLimiter {
	return &RateLimiter{cfg: cfg, limiter: limiter, log: log}
}

// Tier returns a middleware counting requests per client IP in the tier's
// fixed window.  Over the limit the request is answered with 429 and the
// tier's message.  Backend errors fail open.
func (rl *RateLimiter) Tier(tier config.RateLimitTier) echo.MiddlewareFunc {
	if !rl.cfg.Enabled || rl.limiter == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := tier.Name + ":" + clientIP(c)
			res, err := rl.limiter.Allow(c.Request().Context(), key, tier.Limit, tier.Window)
			if err != nil {
				rl.log.Warn("rate limiter unavailable", zap.String("tier", tier.Name), zap.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("RateLimit-Limit", strconv.Itoa(tier.Limit))
			h.Set("RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			h.Set("RateLimit-Reset", strconv.Itoa(seconds(res.WindowTTL)))
			if rl.cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}

			if !res.Allowed {
				metrics.RateLimitedTotal.WithLabelValues(tier.Name).Inc()
				h.Set("Retry-After", strconv.Itoa(seconds(res.RetryAfter)))
				rl.log.Info("rate limited", zap.String("tier", tier.Name), zap.String("client_ip", clientIP(c)), zap.Int64("hits", res.CurrentHits))
				return c.JSON(http.StatusTooManyRequests, echo.Map{"error": tier.Message})
			}
			return next(c)
		}
	}
}

func (rl *RateLimiter) API() echo.MiddlewareFunc            { return rl.Tier(rl.cfg.API) }
func (rl *RateLimiter) Auth() echo.MiddlewareFunc           { return rl.Tier(rl.cfg.Auth) }
func (rl *RateLimiter) PasswordReset() echo.MiddlewareFunc  { return rl.Tier(rl.cfg.PasswordReset) }
func (rl *RateLimiter) PasswordChange() echo.MiddlewareFunc { return rl.Tier(rl.cfg.PasswordChange) }
func (rl *RateLimiter) TokenRefresh() echo.MiddlewareFunc   { return rl.Tier(rl.cfg.TokenRefresh) }

func seconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 0 {
		return 0
	}
	return s
}
