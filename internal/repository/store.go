package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/poligrain/inventory-reservation/internal/model"
)

// Store bundles the product and reservation repositories behind
// operation-level atomic primitives: each method is exactly one
// database transaction, so every logical engine operation either fully
// commits or fully aborts.  Conditional statements inside the
// transaction are evaluated against the current committed values, which
// is what turns the optimistic pre-checks performed by the service
// layer into safe compare-and-commit writes.
//
// The Store is constructed once at service start and handed to the
// lifecycle manager explicitly; no package-level client exists.
type Store struct {
	db           *sql.DB
	products     *ProductRepo
	reservations *ReservationRepo
}

// NewStore returns a Store bound to the provided database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:           db,
		products:     NewProductRepo(db),
		reservations: NewReservationRepo(db),
	}
}

// withTx runs fn inside a transaction, rolling back unless fn succeeds
// and the commit goes through.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// isDuplicateKey reports whether err is a MySQL duplicate-entry error,
// the storage-level equivalent of an insert conditioned on the row not
// already existing.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// Product loads one stock ledger entry.
func (s *Store) Product(ctx context.Context, id string) (*model.Product, error) {
	return s.products.GetByID(ctx, id)
}

// Reservation loads one reservation.
func (s *Store) Reservation(ctx context.Context, id string) (*model.Reservation, error) {
	return s.reservations.GetByID(ctx, id)
}

// ReservationsByUser lists all reservations of a user, newest first.
func (s *Store) ReservationsByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	return s.reservations.ListByUser(ctx, userID)
}

// ActiveReservationsByUser lists the user's active reservations.
func (s *Store) ActiveReservationsByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	return s.reservations.ListActiveByUser(ctx, userID)
}

// ExpiredActiveReservations lists up to limit lapsed active holds.
func (s *Store) ExpiredActiveReservations(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	return s.reservations.ListExpiredActive(ctx, now, limit)
}

// CountActiveReservations counts active, non-expired holds on a product.
func (s *Store) CountActiveReservations(ctx context.Context, productID string, now time.Time) (int, error) {
	return s.reservations.CountActiveByProduct(ctx, productID, now)
}

// CreateReservations inserts every reservation and applies the matching
// ledger increments in one transaction.  Each insert is conditioned on
// the id not existing; each increment is conditioned on the ledger
// keeping reserved within total.  Any failed condition aborts the whole
// batch and surfaces as ErrConflict, so a multi-item create is
// all-or-nothing by construction.
func (s *Store) CreateReservations(ctx context.Context, reservations []*model.Reservation) error {
	if len(reservations) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, res := range reservations {
			if err := s.reservations.CreateTx(ctx, tx, res); err != nil {
				if isDuplicateKey(err) {
					return ErrConflict
				}
				return err
			}
			if err := s.products.ReserveTx(ctx, tx, res.ProductID, res.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
}

// ConfirmReservation flips the reservation to confirmed and commits the
// held stock out of the ledger in one transaction.  On success the
// passed reservation is updated in place.  ErrConflict means a
// concurrent expiry, cancellation or duplicate confirm resolved the
// reservation first.
func (s *Store) ConfirmReservation(ctx context.Context, res *model.Reservation, orderID string, now time.Time) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := s.reservations.MarkConfirmedTx(ctx, tx, res.ID, orderID, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}
		return s.products.CommitTx(ctx, tx, res.ProductID, res.Quantity)
	})
	if err != nil {
		return err
	}
	confirmedAt := now.UTC()
	res.Status = model.StatusConfirmed
	res.ConfirmedAt = &confirmedAt
	res.OrderID = &orderID
	return nil
}

// ExtendReservation pushes the expiry forward, conditioned on the
// reservation still being active.  On success the passed reservation's
// ExpiresAt is advanced to match.
func (s *Store) ExtendReservation(ctx context.Context, res *model.Reservation, additionalMinutes int) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := s.reservations.ExtendTx(ctx, tx, res.ID, additionalMinutes)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}
		return nil
	})
	if err != nil {
		return err
	}
	res.ExpiresAt = res.ExpiresAt.Add(time.Duration(additionalMinutes) * time.Minute)
	return nil
}

// CancelReservation releases one hold: the status flips to cancelled
// and the held quantity returns to the ledger, both in one transaction.
// ErrConflict means the reservation was already terminal.
func (s *Store) CancelReservation(ctx context.Context, res *model.Reservation, now time.Time) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := s.reservations.MarkCancelledTx(ctx, tx, res.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}
		return s.products.ReleaseTx(ctx, tx, res.ProductID, res.Quantity)
	})
	if err != nil {
		return err
	}
	cancelledAt := now.UTC()
	res.Status = model.StatusCancelled
	res.CancelledAt = &cancelledAt
	return nil
}

// CancelReservations releases a batch of holds in one transaction and
// returns the subset actually cancelled.  Items whose status flip
// affects no row were resolved concurrently and are skipped without
// failing the batch; their ledger entries are left alone.
func (s *Store) CancelReservations(ctx context.Context, batch []model.Reservation, now time.Time) ([]model.Reservation, error) {
	return s.resolveBatch(ctx, batch, now, s.reservations.MarkCancelledTx, model.StatusCancelled)
}

// ExpireReservations reclaims a batch of lapsed holds in one
// transaction and returns the subset actually expired.  A reservation
// confirmed between the sweeper's scan and this transaction fails its
// per-item condition and is skipped; the rest of the batch proceeds.
func (s *Store) ExpireReservations(ctx context.Context, batch []model.Reservation, now time.Time) ([]model.Reservation, error) {
	return s.resolveBatch(ctx, batch, now, s.reservations.MarkExpiredTx, model.StatusExpired)
}

func (s *Store) resolveBatch(
	ctx context.Context,
	batch []model.Reservation,
	now time.Time,
	mark func(context.Context, *sql.Tx, string, time.Time) (bool, error),
	status string,
) ([]model.Reservation, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	resolved := make([]model.Reservation, 0, len(batch))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		resolved = resolved[:0]
		for _, res := range batch {
			ok, err := mark(ctx, tx, res.ID, now)
			if err != nil {
				return err
			}
			if !ok {
				continue // already resolved by a concurrent operation
			}
			if err := s.products.ReleaseTx(ctx, tx, res.ProductID, res.Quantity); err != nil {
				return err
			}
			at := now.UTC()
			res.Status = status
			res.CancelledAt = &at
			resolved = append(resolved, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// DecrementStock is the unified conditional-decrement primitive for
// order placement without a reservation.  One transaction, one guarded
// update; ErrConflict when unreserved stock is insufficient.
func (s *Store) DecrementStock(ctx context.Context, productID string, quantity int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.products.DecrementStockTx(ctx, tx, productID, quantity)
	})
}
