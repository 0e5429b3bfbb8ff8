package handler // declare the package name; contains HTTP handlers

import (
	"net/http" // net/http provides status codes and response helpers
	"time"

	"github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Health is a liveness probe for load balancers.  It returns a plain
// text "ok" with an HTTP 200 status code.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// StatusHandler reports the running environment.
type StatusHandler struct {
	Env         string
	FrontendURL string
	Now         func() time.Time
}

func NewStatusHandler(env, frontendURL string) *StatusHandler {
	return &StatusHandler{Env: env, FrontendURL: frontendURL, Now: time.Now}
}

// Status answers /health with {status, timestamp, environment, cors}.
func (h *StatusHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":      "healthy",
		"timestamp":   h.Now().UTC().Format(time.RFC3339Nano),
		"environment": h.Env,
		"cors":        h.FrontendURL,
	})
}
