// Package handler contains the Echo HTTP handlers for the reservation
// API.  Handlers bind and validate request bodies, pull the caller's
// identity from the context set by the JWT middleware, delegate to the
// service layer and translate its error taxonomy onto HTTP statuses.
package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/poligrain/inventory-reservation/internal/service"
)

// getUserID extracts the authenticated user's ID placed into the
// context by the JWT middleware.  It returns an error when the value is
// absent or empty, which means the route was wired without the
// middleware.
func getUserID(c echo.Context) (string, error) {
	id, ok := c.Get("user_id").(string)
	if !ok || id == "" {
		return "", errors.New("user id missing from context")
	}
	return id, nil
}

// getRole returns the caller's role claim, empty when absent.
func getRole(c echo.Context) string {
	role, _ := c.Get("role").(string)
	return role
}

// respondError writes the HTTP response for a service-layer error.
// Validation and conflict failures both map to 400: a conflict tells
// the caller their view of stock was stale, and the correct reaction is
// the same as for a bad request — re-derive state and resubmit, not
// retry as-is.
func respondError(c echo.Context, err error) error {
	msg := err.Error()
	var se *service.Error
	if errors.As(err, &se) {
		msg = se.Message
	}
	switch service.KindOf(err) {
	case service.KindValidation, service.KindConflict:
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": msg})
	case service.KindNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "error": msg})
	case service.KindAuthorization:
		return c.JSON(http.StatusForbidden, echo.Map{"success": false, "error": msg})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "internal server error"})
	}
}
