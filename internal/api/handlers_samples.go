// handlers_samples.go - Sample photo listing and files
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/leafy-insurance/claims-backend/internal/models"
)

// SampleHandlerImpl implements the SampleHandler interface
type SampleHandlerImpl struct {
	catalog SampleCatalog
}

// NewSampleHandler creates a new sample handler
func NewSampleHandler(catalog SampleCatalog) SampleHandler {
	return &SampleHandlerImpl{catalog: catalog}
}

// HandleGetSampleImages returns the sample photo names.
func (h *SampleHandlerImpl) HandleGetSampleImages(c echo.Context) error {
	names, err := h.catalog.ListSamples(c.Request().Context())
	if err != nil {
		return RespondWithError(c, NewInternalError("failed to list sample images", err))
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(http.StatusOK, models.SampleImages{Images: names})
}

// HandleGetSamplePhoto serves one sample photo.
func (h *SampleHandlerImpl) HandleGetSamplePhoto(c echo.Context) error {
	name := c.Param("name")
	path, err := h.catalog.Path(name)
	if err != nil {
		return RespondWithError(c, NewNotFoundError("sample image", name))
	}
	c.Response().Header().Set("Cache-Control", "public, max-age=3600")
	return c.File(path)
}
