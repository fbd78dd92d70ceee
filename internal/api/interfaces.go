// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/leafy-insurance/claims-backend/internal/claim"
	"github.com/leafy-insurance/claims-backend/internal/session"
)

// ProxyHandler relays the two browser-facing routes to the backend
type ProxyHandler interface {
	HandleImageDescriptor(c echo.Context) error
	HandleRunAgent(c echo.Context) error
}

// SampleHandler serves the sample photo grid
type SampleHandler interface {
	HandleGetSampleImages(c echo.Context) error
	HandleGetSamplePhoto(c echo.Context) error
}

// ClaimHandler exposes claim flow snapshots
type ClaimHandler interface {
	HandleGetClaim(c echo.Context) error
	HandleGetClaimMsgpack(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SampleCatalog lists and locates sample photos
type SampleCatalog interface {
	ListSamples(ctx context.Context) ([]string, error)
	Path(name string) (string, error)
}

// FlowRegistry defines the interface for claim flow sessions
// This allows mocking in tests
type FlowRegistry interface {
	Create(reporter claim.Reporter) *session.Entry
	Get(id string) (*session.Entry, bool)
	Remove(id string)
}
