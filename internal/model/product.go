package model

import "time"

// Product is the stock ledger entry for a single sellable item.  It is
// the authoritative record of how many units exist and how many of them
// are currently claimed by active reservations.
//
// Fields:
//  ID               – primary key identifier (UUID).
//  Name             – display name, carried for event payloads and logs.
//  TotalQuantity    – physical stock on hand.
//  ReservedQuantity – stock held by active, unconfirmed reservations.
//  IsActive         – inactive products reject new reservations.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last modification timestamp.
//
// The ledger invariant 0 <= ReservedQuantity <= TotalQuantity is enforced
// by the conditional writes in the repository layer; no code path mutates
// these counters outside of a transaction.
type Product struct {
	ID               string    `json:"id"`               // products.id
	Name             string    `json:"name"`             // products.name
	TotalQuantity    int64     `json:"totalQuantity"`    // products.total_quantity
	ReservedQuantity int64     `json:"reservedQuantity"` // products.reserved_quantity
	IsActive         bool      `json:"isActive"`         // products.is_active
	CreatedAt        time.Time `json:"createdAt"`        // products.created_at
	UpdatedAt        time.Time `json:"updatedAt"`        // products.updated_at
}

// AvailableQuantity returns the stock not claimed by active holds.
func (p *Product) AvailableQuantity() int64 {
	return p.TotalQuantity - p.ReservedQuantity
}

// Availability is the read-only projection combining the stock ledger
// with the count of active, non-expired reservations.  It is a
// point-in-time view: a lapsed but not yet swept reservation still
// counts against ReservedQuantity while being excluded from
// ActiveReservationCount, so the two numbers need not reconcile
// instantaneously.
type Availability struct {
	ProductID              string `json:"productId"`
	TotalQuantity          int64  `json:"totalQuantity"`
	ReservedQuantity       int64  `json:"reservedQuantity"`
	AvailableQuantity      int64  `json:"availableQuantity"`
	ActiveReservationCount int    `json:"activeReservationCount"`
}
