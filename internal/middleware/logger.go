package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/iliyamo/trading-storefront/internal/logging"
)

// RequestLogger writes one structured line per request.  5xx responses log
// at error, 4xx at warn.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			status := c.Response().Status
			lvl := zapcore.InfoLevel
			switch {
			case status >= 500:
				lvl = zapcore.ErrorLevel
			case status >= 400:
				lvl = zapcore.WarnLevel
			}
			fields := []zap.Field{
				logging.RequestID(RequestIDOf(c)),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				logging.ClientIP(c.RealIP()),
			}
			if uid := UserID(c); uid != "" {
				fields = append(fields, logging.UserID(uid))
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}
			log.Check(lvl, "request").Write(fields...)
			return nil
		}
	}
}
