package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/poligrain/inventory-reservation/internal/service"
)

// AvailabilityHandler serves the read-only availability projection.
type AvailabilityHandler struct {
	Service *service.ReservationService
}

// NewAvailabilityHandler constructs an AvailabilityHandler.
func NewAvailabilityHandler(svc *service.ReservationService) *AvailabilityHandler {
	if svc == nil {
		panic("nil service passed to NewAvailabilityHandler")
	}
	return &AvailabilityHandler{Service: svc}
}

// Get handles GET /v1/inventory/availability/:productId.  It returns
// the product's stock counters and the number of active holds.  The
// numbers are a point-in-time snapshot: a hold that lapsed since the
// last sweep still counts against reservedQuantity.
func (h *AvailabilityHandler) Get(c echo.Context) error {
	productID := c.Param("productId")
	av, err := h.Service.Availability(c.Request().Context(), productID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":      true,
		"availability": av,
	})
}
