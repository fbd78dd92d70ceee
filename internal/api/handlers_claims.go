// handlers_claims.go - Claim flow snapshots
package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/leafy-insurance/claims-backend/internal/session"
)

// ClaimHandlerImpl implements the ClaimHandler interface
type ClaimHandlerImpl struct {
	flows FlowRegistry
}

// NewClaimHandler creates a new claim handler
func NewClaimHandler(flows FlowRegistry) ClaimHandler {
	return &ClaimHandlerImpl{flows: flows}
}

// HandleGetClaim returns the current snapshot of a flow.
func (h *ClaimHandlerImpl) HandleGetClaim(c echo.Context) error {
	entry, apiErr := h.lookup(c.Param("id"))
	if apiErr != nil {
		return RespondWithError(c, apiErr)
	}
	return c.JSON(http.StatusOK, entry.Machine.Snapshot())
}

// HandleGetClaimMsgpack returns the snapshot msgpack-encoded.
func (h *ClaimHandlerImpl) HandleGetClaimMsgpack(c echo.Context) error {
	entry, apiErr := h.lookup(c.Param("id"))
	if apiErr != nil {
		return RespondWithError(c, apiErr)
	}

	data, err := msgpack.Marshal(entry.Machine.Snapshot())
	if err != nil {
		return RespondWithError(c, NewInternalError("failed to encode msgpack", err))
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

func (h *ClaimHandlerImpl) lookup(id string) (*session.Entry, *APIError) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, NewBadRequestError("invalid claim flow id", err)
	}
	entry, ok := h.flows.Get(id)
	if !ok {
		return nil, NewNotFoundError("claim flow", id)
	}
	return entry, nil
}
