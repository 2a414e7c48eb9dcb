package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/poligrain/inventory-reservation/internal/service"
)

// OrderHandler serves order placement.  Orders themselves live in
// another system; this endpoint covers the inventory side of placing
// one, either by confirming an existing hold or by decrementing stock
// directly.
type OrderHandler struct {
	Service *service.ReservationService
}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler(svc *service.ReservationService) *OrderHandler {
	if svc == nil {
		panic("nil service passed to NewOrderHandler")
	}
	return &OrderHandler{Service: svc}
}

// Place handles POST /v1/orders.  With a reservationId in the body the
// caller's hold is confirmed against the order.  Without one, stock is
// decremented directly under the availability condition, so an order
// can never oversell even when no hold was taken first.
func (h *OrderHandler) Place(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
	}
	var req OrderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": err.Error()})
	}
	orderID := req.OrderID
	if orderID == "" {
		orderID = uuid.NewString()
	}

	if req.ReservationID != "" {
		res, err := h.Service.Confirm(c.Request().Context(), userID, req.ReservationID, orderID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusCreated, echo.Map{
			"success":     true,
			"orderId":     orderID,
			"reservation": res,
		})
	}

	if err := h.Service.CommitStock(c.Request().Context(), req.ProductID, req.Quantity); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success":   true,
		"orderId":   orderID,
		"productId": req.ProductID,
		"quantity":  req.Quantity,
	})
}
