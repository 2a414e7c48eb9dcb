package handler

import "errors"

// CreateRequest is the body of POST /v1/inventory/reserve.
type CreateRequest struct {
	ProductID       string         `json:"productId"`
	Quantity        int64          `json:"quantity"`
	SessionID       string         `json:"sessionId,omitempty"`
	DurationMinutes int            `json:"durationMinutes,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Validate checks the request before it reaches the service layer so
// obviously broken bodies never cost a database round trip.
func (r *CreateRequest) Validate() error {
	if r.ProductID == "" {
		return errors.New("productId is required")
	}
	if r.Quantity <= 0 {
		return errors.New("quantity must be a positive integer")
	}
	if r.DurationMinutes < 0 {
		return errors.New("durationMinutes must not be negative")
	}
	return nil
}

// BulkCreateRequest is the body of POST /v1/inventory/reserve/bulk.
type BulkCreateRequest struct {
	Reservations []CreateRequest `json:"reservations"`
	SessionID    string          `json:"sessionId,omitempty"`
}

func (r *BulkCreateRequest) Validate() error {
	if len(r.Reservations) == 0 {
		return errors.New("reservations array is required")
	}
	for i := range r.Reservations {
		if err := r.Reservations[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ConfirmRequest is the body of POST /v1/inventory/reserve/:reservationId/confirm.
type ConfirmRequest struct {
	OrderID string `json:"orderId"`
}

func (r *ConfirmRequest) Validate() error {
	if r.OrderID == "" {
		return errors.New("orderId is required")
	}
	return nil
}

// ExtendRequest is the body of POST /v1/inventory/reserve/:reservationId/extend.
type ExtendRequest struct {
	AdditionalMinutes int `json:"additionalMinutes"`
}

func (r *ExtendRequest) Validate() error {
	if r.AdditionalMinutes <= 0 {
		return errors.New("additionalMinutes must be a positive integer")
	}
	return nil
}

// OrderRequest is the body of POST /v1/orders.  When ReservationID is
// set the order confirms that hold; otherwise stock is decremented
// directly under the same availability condition.
type OrderRequest struct {
	ProductID     string `json:"productId"`
	Quantity      int64  `json:"quantity"`
	ReservationID string `json:"reservationId,omitempty"`
	OrderID       string `json:"orderId,omitempty"`
}

func (r *OrderRequest) Validate() error {
	if r.ReservationID != "" {
		return nil
	}
	if r.ProductID == "" {
		return errors.New("productId is required when no reservationId is given")
	}
	if r.Quantity <= 0 {
		return errors.New("quantity must be a positive integer")
	}
	return nil
}
