package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/poligrain/inventory-reservation/internal/model"
)

// ReservationRepo provides data access to the inventory_reservations
// table.  Status transitions are expressed as conditional UPDATEs
// guarded on the row still being active, executed inside a
// caller-supplied transaction together with the matching ledger
// mutation.  All timestamps are stored and compared in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, product_id, user_id, session_id, quantity, status, order_id, metadata,
       created_at, expires_at, confirmed_at, cancelled_at`

// sqlTime renders a timestamp in the DATETIME format the driver expects.
func sqlTime(t time.Time) string { return t.UTC().Format("2006-01-02 15:04:05") }

// scanReservation reads one row into a model.Reservation, converting
// nullable columns and decoding the metadata JSON blob.
func scanReservation(row interface {
	Scan(dest ...any) error
}) (*model.Reservation, error) {
	var (
		res       model.Reservation
		sessionID sql.NullString
		orderID   sql.NullString
		metadata  sql.NullString
		confirmed sql.NullTime
		cancelled sql.NullTime
	)
	err := row.Scan(
		&res.ID, &res.ProductID, &res.UserID, &sessionID, &res.Quantity, &res.Status, &orderID, &metadata,
		&res.CreatedAt, &res.ExpiresAt, &confirmed, &cancelled,
	)
	if err != nil {
		return nil, err
	}
	if sessionID.Valid {
		v := sessionID.String
		res.SessionID = &v
	}
	if orderID.Valid {
		v := orderID.String
		res.OrderID = &v
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &res.Metadata); err != nil {
			return nil, err
		}
	}
	if confirmed.Valid {
		v := confirmed.Time.UTC()
		res.ConfirmedAt = &v
	}
	if cancelled.Valid {
		v := cancelled.Time.UTC()
		res.CancelledAt = &v
	}
	return &res, nil
}

// CreateTx inserts a new reservation row within the provided
// transaction.  The primary key constraint stands in for an existence
// condition: inserting an id that is already present fails the whole
// transaction.  The caller must commit or roll back.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	var metadata any
	if len(res.Metadata) > 0 {
		b, err := json.Marshal(res.Metadata)
		if err != nil {
			return err
		}
		metadata = string(b)
	}
	var sessionID any
	if res.SessionID != nil {
		sessionID = *res.SessionID
	}
	const q = `INSERT INTO inventory_reservations
               (id, product_id, user_id, session_id, quantity, status, metadata, created_at, expires_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		res.ID, res.ProductID, res.UserID, sessionID, res.Quantity, res.Status, metadata,
		sqlTime(res.CreatedAt), sqlTime(res.ExpiresAt),
	)
	return err
}

// GetByID loads a single reservation.  It returns
// ErrReservationNotFound when no row exists for the id.
func (r *ReservationRepo) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM inventory_reservations WHERE id = ?`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return res, nil
}

// ListByUser returns all reservations belonging to the user, newest
// first.  When none exist an empty slice is returned.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM inventory_reservations
               WHERE user_id = ? ORDER BY created_at DESC`
	return r.queryMany(ctx, q, userID)
}

// ListActiveByUser returns the user's reservations still carrying
// status active, oldest first so that bulk release processes them in
// creation order.
func (r *ReservationRepo) ListActiveByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM inventory_reservations
               WHERE user_id = ? AND status = ? ORDER BY created_at`
	return r.queryMany(ctx, q, userID, model.StatusActive)
}

// ListExpiredActive returns up to limit reservations whose hold has
// lapsed without being resolved, oldest expiry first.  The sweeper
// calls this repeatedly until it drains.
func (r *ReservationRepo) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM inventory_reservations
               WHERE status = ? AND expires_at < ? ORDER BY expires_at LIMIT ?`
	return r.queryMany(ctx, q, model.StatusActive, sqlTime(now), limit)
}

func (r *ReservationRepo) queryMany(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountActiveByProduct counts reservations for the product that are
// active and not yet past their expiry.  Lapsed-but-unswept holds are
// deliberately excluded; they still show up in the ledger's
// reserved_quantity until the next sweep.
func (r *ReservationRepo) CountActiveByProduct(ctx context.Context, productID string, now time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM inventory_reservations
               WHERE product_id = ? AND status = ? AND expires_at > ?`
	var n int
	if err := r.db.QueryRowContext(ctx, q, productID, model.StatusActive, sqlTime(now)).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// MarkConfirmedTx flips an active reservation to confirmed, recording
// the confirmation time and order id.  It reports whether the row was
// updated; false means the reservation was no longer active at commit
// time and the caller should treat the operation as conflicted.
func (r *ReservationRepo) MarkConfirmedTx(ctx context.Context, tx *sql.Tx, id, orderID string, now time.Time) (bool, error) {
	const q = `UPDATE inventory_reservations
               SET status = ?, confirmed_at = ?, order_id = ?
               WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, model.StatusConfirmed, sqlTime(now), orderID, id, model.StatusActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkCancelledTx flips an active reservation to cancelled.  Reports
// whether the row was updated, mirroring MarkConfirmedTx.
func (r *ReservationRepo) MarkCancelledTx(ctx context.Context, tx *sql.Tx, id string, now time.Time) (bool, error) {
	const q = `UPDATE inventory_reservations
               SET status = ?, cancelled_at = ?
               WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, model.StatusCancelled, sqlTime(now), id, model.StatusActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkExpiredTx flips an active reservation to expired.  The sweep
// records the reclamation time in cancelled_at.  A false return means
// a concurrent operation already resolved the reservation; the sweeper
// skips such rows without retrying.
func (r *ReservationRepo) MarkExpiredTx(ctx context.Context, tx *sql.Tx, id string, now time.Time) (bool, error) {
	const q = `UPDATE inventory_reservations
               SET status = ?, cancelled_at = ?
               WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, model.StatusExpired, sqlTime(now), id, model.StatusActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ExtendTx pushes expires_at forward by additionalMinutes, conditioned
// on the reservation still being active.  Quantities are never touched
// here; extension races only with status transitions.
func (r *ReservationRepo) ExtendTx(ctx context.Context, tx *sql.Tx, id string, additionalMinutes int) (bool, error) {
	const q = `UPDATE inventory_reservations
               SET expires_at = DATE_ADD(expires_at, INTERVAL ? MINUTE)
               WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, additionalMinutes, id, model.StatusActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
