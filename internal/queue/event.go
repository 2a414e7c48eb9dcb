// Package queue defines the message payloads exchanged over the broker
// and the background consumer for completed orders.
package queue

// Reservation event types published to the inventory.events queue.
const (
	EventReservationCreated   = "reservation.created"
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationReleased  = "reservation.released"
	EventReservationExpired   = "reservation.expired"
)

// ReservationEvent is published whenever a reservation changes state.
// It carries enough information for downstream consumers to log,
// notify, or reconcile without querying the primary database.
type ReservationEvent struct {
	Event         string `json:"event"`
	ReservationID string `json:"reservation_id"`
	ProductID     string `json:"product_id"`
	UserID        string `json:"user_id"`
	OrderID       string `json:"order_id,omitempty"`
	Quantity      int64  `json:"quantity"`
	Status        string `json:"status"`
	OccurredAt    string `json:"occurred_at"`
}

// OrderCompletedEvent is consumed from the order.completed queue.  The
// order flow publishes it once payment settles; the consumer confirms
// the referenced reservation so the held stock is committed.
type OrderCompletedEvent struct {
	OrderID       string `json:"order_id"`
	UserID        string `json:"user_id"`
	ReservationID string `json:"reservation_id"`
}
