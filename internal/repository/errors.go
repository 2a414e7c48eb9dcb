// Package repository implements the persistence layer for the stock
// ledger and the reservation store on top of MySQL.  This file defines
// the sentinel errors shared by the repositories.  Higher layers use
// these values to distinguish business failure scenarios from plain
// storage faults: ErrConflict means a conditional write found its
// predicate false at commit time (somebody else won the race), while
// the not-found sentinels report absent rows.
package repository

import "errors"

// ErrConflict is returned when a conditional write affects zero rows,
// meaning the guarded predicate no longer held at commit time: the
// ledger lacked capacity, the reservation was no longer active, or a
// concurrent transaction already resolved it.  The enclosing
// transaction is rolled back in full before this is returned.
var ErrConflict = errors.New("conflict")

// ErrProductNotFound is returned when no product row exists for the
// requested id.
var ErrProductNotFound = errors.New("product not found")

// ErrReservationNotFound is returned when no reservation row exists
// for the requested id.
var ErrReservationNotFound = errors.New("reservation not found")
