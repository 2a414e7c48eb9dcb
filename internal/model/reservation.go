package model

import "time"

// Reservation statuses.  A reservation starts active and moves to
// exactly one of the terminal states; terminal records are immutable
// apart from audit metadata.
const (
	StatusActive    = "active"
	StatusConfirmed = "confirmed"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
)

// Reservation is a short-lived hold on product stock taken during
// checkout.  While active it counts against the product's
// ReservedQuantity; confirming it converts the hold into a physical
// stock decrement, while releasing or sweeping it returns the held
// capacity to the ledger.
//
// Fields:
//  ID          – primary key identifier (UUID, generated at creation).
//  ProductID   – product whose stock is held.
//  UserID      – caller who owns the hold.
//  SessionID   – optional checkout session correlation id.
//  Quantity    – units held, always > 0.
//  Status      – one of active, confirmed, expired, cancelled.
//  OrderID     – order that confirmed the hold, when confirmed.
//  Metadata    – optional free-form attributes supplied at creation.
//  CreatedAt   – creation timestamp.
//  ExpiresAt   – when the hold lapses unless confirmed or extended.
//  ConfirmedAt – set when the reservation is confirmed.
//  CancelledAt – set when the reservation is cancelled or swept.
type Reservation struct {
	ID          string         `json:"id"`                    // inventory_reservations.id
	ProductID   string         `json:"productId"`             // inventory_reservations.product_id
	UserID      string         `json:"userId"`                // inventory_reservations.user_id
	SessionID   *string        `json:"sessionId,omitempty"`   // inventory_reservations.session_id (nullable)
	Quantity    int64          `json:"quantity"`              // inventory_reservations.quantity
	Status      string         `json:"status"`                // inventory_reservations.status
	OrderID     *string        `json:"orderId,omitempty"`     // inventory_reservations.order_id (nullable)
	Metadata    map[string]any `json:"metadata,omitempty"`    // inventory_reservations.metadata (nullable JSON)
	CreatedAt   time.Time      `json:"createdAt"`             // inventory_reservations.created_at
	ExpiresAt   time.Time      `json:"expiresAt"`             // inventory_reservations.expires_at
	ConfirmedAt *time.Time     `json:"confirmedAt,omitempty"` // inventory_reservations.confirmed_at (nullable)
	CancelledAt *time.Time     `json:"cancelledAt,omitempty"` // inventory_reservations.cancelled_at (nullable)
}

// IsTerminal reports whether the reservation has reached a final state.
func (r *Reservation) IsTerminal() bool {
	return r.Status == StatusConfirmed || r.Status == StatusExpired || r.Status == StatusCancelled
}

// IsExpired reports whether the hold has lapsed relative to now.  A
// lapsed reservation may still carry status active until the sweeper
// reclaims it; callers deciding whether to honour a hold must check
// both the status and the expiry.
func (r *Reservation) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
