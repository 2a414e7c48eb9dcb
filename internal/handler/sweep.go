package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/poligrain/inventory-reservation/internal/service"
)

// SweepHandler exposes a manual trigger for the expiry sweeper.  The
// background loop normally handles reclamation; operators use this
// route to drain lapsed holds immediately, typically after lowering a
// product's stock or before a flash sale opens.
type SweepHandler struct {
	Sweeper *service.Sweeper
}

// NewSweepHandler constructs a SweepHandler.
func NewSweepHandler(sw *service.Sweeper) *SweepHandler {
	if sw == nil {
		panic("nil sweeper passed to NewSweepHandler")
	}
	return &SweepHandler{Sweeper: sw}
}

// Trigger handles POST /v1/inventory/sweep.  The route is gated to the
// ADMIN role in the router; the handler runs one full sweep pass and
// reports how many holds it reclaimed.
func (h *SweepHandler) Trigger(c echo.Context) error {
	expired, err := h.Sweeper.SweepOnce(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"expired": expired,
	})
}
