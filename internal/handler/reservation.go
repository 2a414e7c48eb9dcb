package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/poligrain/inventory-reservation/internal/service"
)

// ReservationHandler serves the reservation lifecycle routes.  All
// methods assume JWT authentication middleware already ran; they read
// the caller's identity from the context and never trust user IDs from
// the request body.
type ReservationHandler struct {
	Service *service.ReservationService
}

// NewReservationHandler constructs a ReservationHandler.  The service
// must be non-nil.
func NewReservationHandler(svc *service.ReservationService) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{Service: svc}
}

// Create handles POST /v1/inventory/reserve.  It places a hold on
// product stock for the authenticated user and returns 201 with the
// created reservation.  Insufficient stock and lost races both come
// back as 400 so the client re-checks availability instead of
// retrying the same request.
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
	}
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": err.Error()})
	}
	res, err := h.Service.Create(c.Request().Context(), userID, service.CreateInput{
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		SessionID:       req.SessionID,
		DurationMinutes: req.DurationMinutes,
		Metadata:        req.Metadata,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success":     true,
		"reservation": res,
	})
}

// CreateBulk handles POST /v1/inventory/reserve/bulk.  All requested
// holds are taken in one transaction; if any item cannot be satisfied
// none are taken and every item in the response reports failure.  The
// response always carries a per-product result map.
func (h *ReservationHandler) CreateBulk(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
	}
	var req BulkCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid request body"})
	}
	if len(req.Reservations) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "reservations array is required"})
	}
	inputs := make([]service.CreateInput, 0, len(req.Reservations))
	for _, item := range req.Reservations {
		sessionID := item.SessionID
		if sessionID == "" {
			sessionID = req.SessionID
		}
		inputs = append(inputs, service.CreateInput{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			SessionID:       sessionID,
			DurationMinutes: item.DurationMinutes,
			Metadata:        item.Metadata,
		})
	}
	results, err := h.Service.CreateBulk(c.Request().Context(), userID, inputs)
	if err != nil {
		return respondError(c, err)
	}
	allOK := true
	for _, r := range results {
		if !r.Success {
			allOK = false
			break
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":      allOK,
		"reservations": results,
	})
}

// Confirm handles POST /v1/inventory/reserve/:reservationId/confirm.
// It converts the caller's active hold into a committed stock decrement
// recorded against the supplied order.
func (h *ReservationHandler) Confirm(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
	}
	reservationID := c.Param("reservationId")
	var req ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": err.Error()})
	}
	res, err := h.Service.Confirm(c.Request().Context(), userID, reservationID, req.OrderID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":     true,
		"reservation": res,
	})
}

// Extend handles POST /v1/inventory/reserve/:reservationId/extend.  It
// pushes the expiry of an active hold forward by the requested number
// of minutes.
func (h *ReservationHandler) Extend(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
	}
	reservationID := c.Param("reservationId")
	var req ExtendRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": err.Error()})
	}
	res, err := h.Service.Extend(c.Request().Context(), userID, reservationID, req.AdditionalMinutes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":     true,
		"reservation": res,
	})
}

// Release handles DELETE /v1/inventory/reserve/:reservationId.  It
// cancels the caller's hold and returns the held quantity to the
// product ledger.  Releasing an already-resolved reservation succeeds
// without effect.
func (h *ReservationHandler) Release(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
	}
	reservationID := c.Param("reservationId")
	if err := h.Service.Release(c.Request().Context(), userID, reservationID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "reservation released",
	})
}

// ReleaseAll handles DELETE /v1/inventory/reserve/user/:userId.  It
// cancels every active hold of the target user in bounded batches.
// Users may release their own; releasing another user's requires the
// ADMIN role.
func (h *ReservationHandler) ReleaseAll(c echo.Context) error {
	callerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
	}
	targetUserID := c.Param("userId")
	released, err := h.Service.ReleaseAll(c.Request().Context(), callerID, getRole(c), targetUserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":  true,
		"released": released,
	})
}

// ListByUser handles GET /v1/inventory/reserve/user/:userId.  It
// returns the target user's reservations, newest first.  Users may list
// their own; listing another user's requires the ADMIN role.
func (h *ReservationHandler) ListByUser(c echo.Context) error {
	callerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
	}
	targetUserID := c.Param("userId")
	list, err := h.Service.UserReservations(c.Request().Context(), callerID, getRole(c), targetUserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":      true,
		"reservations": list,
		"count":        len(list),
	})
}
