package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/poligrain/inventory-reservation/internal/model"
)

// ProductRepo provides data access to the products table, the stock
// ledger.  Reads go through the pooled DB handle; every mutation is a
// conditional UPDATE executed inside a caller-supplied transaction so
// that ledger changes commit atomically with the reservation rows they
// belong to.  All timestamps are UTC.
type ProductRepo struct {
	db *sql.DB
}

// NewProductRepo returns a new ProductRepo bound to the provided database.
func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

// GetByID loads a single product.  It returns ErrProductNotFound when
// no row exists for the id.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*model.Product, error) {
	const q = `SELECT id, name, total_quantity, reserved_quantity, is_active, created_at, updated_at
               FROM products WHERE id = ?`
	var p model.Product
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&p.ID, &p.Name, &p.TotalQuantity, &p.ReservedQuantity, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ReserveTx increments reserved_quantity by quantity, conditioned on
// the post-increment value not exceeding total_quantity and the product
// being active.  Zero affected rows means the condition failed against
// the current committed values and ErrConflict is returned; the caller
// must roll back the surrounding transaction.
func (r *ProductRepo) ReserveTx(ctx context.Context, tx *sql.Tx, productID string, quantity int64) error {
	const q = `UPDATE products
               SET reserved_quantity = reserved_quantity + ?, updated_at = UTC_TIMESTAMP()
               WHERE id = ? AND is_active = 1 AND reserved_quantity + ? <= total_quantity`
	res, err := tx.ExecContext(ctx, q, quantity, productID, quantity)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// ReleaseTx returns quantity units of held capacity to the ledger by
// decrementing reserved_quantity, conditioned on at least that much
// being held.  Used by release, cancellation and the expiry sweep.
func (r *ProductRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, productID string, quantity int64) error {
	const q = `UPDATE products
               SET reserved_quantity = reserved_quantity - ?, updated_at = UTC_TIMESTAMP()
               WHERE id = ? AND reserved_quantity >= ?`
	res, err := tx.ExecContext(ctx, q, quantity, productID, quantity)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// CommitTx converts a hold into a physical stock decrement: both
// total_quantity and reserved_quantity drop by quantity, conditioned on
// both current values being at least quantity.  The double guard keeps
// a duplicate confirm, or a confirm racing the expiry sweep, from
// driving either counter negative.
func (r *ProductRepo) CommitTx(ctx context.Context, tx *sql.Tx, productID string, quantity int64) error {
	const q = `UPDATE products
               SET total_quantity = total_quantity - ?, reserved_quantity = reserved_quantity - ?, updated_at = UTC_TIMESTAMP()
               WHERE id = ? AND total_quantity >= ? AND reserved_quantity >= ?`
	res, err := tx.ExecContext(ctx, q, quantity, quantity, productID, quantity, quantity)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// DecrementStockTx performs the direct conditional decrement used by
// order placement when no reservation was taken: total_quantity drops
// by quantity, conditioned on enough unreserved stock remaining.  The
// reserved portion of the ledger stays untouched so existing holds are
// never cannibalised by the direct path.
func (r *ProductRepo) DecrementStockTx(ctx context.Context, tx *sql.Tx, productID string, quantity int64) error {
	const q = `UPDATE products
               SET total_quantity = total_quantity - ?, updated_at = UTC_TIMESTAMP()
               WHERE id = ? AND is_active = 1 AND total_quantity - reserved_quantity >= ?`
	res, err := tx.ExecContext(ctx, q, quantity, productID, quantity)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
