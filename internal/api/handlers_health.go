// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version       string
	backend       string
	backendSource string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, backend, backendSource string) HealthHandler {
	return &HealthHandlerImpl{
		version:       version,
		backend:       backend,
		backendSource: backendSource,
	}
}

// HandleHealth returns server health status and the backend in use
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"version":       h.version,
		"backend":       h.backend,
		"backendSource": h.backendSource,
	})
}
