package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var ErrMovementNotFound = errors.New("inventory: movement not found")

type Repository interface {
	Create(ctx context.Context, movement Movement) error
	Get(ctx context.Context, id uuid.UUID) (Movement, error)
	List(ctx context.Context, sku string, limit int) ([]Movement, error)
	SetJournal(ctx context.Context, id uuid.UUID, journalID int64) error
	Delete(ctx context.Context, id uuid.UUID) error
	// OnHand sums receipts minus issues for a SKU.
	OnHand(ctx context.Context, sku string) (decimal.Decimal, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const movementColumns = `id, kind, sku, quantity, unit_cost, total, journal_id, created_by, created_at`

func (r *repository) Create(ctx context.Context, movement Movement) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO inventory_movements (id, kind, sku, quantity, unit_cost, total, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		movement.ID, movement.Kind, movement.SKU, movement.Quantity, movement.UnitCost, movement.Total, movement.CreatedBy)
	return err
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Movement, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+movementColumns+` FROM inventory_movements WHERE id = $1`, id)
	movement, err := scanMovement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Movement{}, ErrMovementNotFound
	}
	return movement, err
}

func (r *repository) List(ctx context.Context, sku string, limit int) ([]Movement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT ` + movementColumns + ` FROM inventory_movements`
	args := []any{}
	if sku != "" {
		q += ` WHERE sku = $1`
		args = append(args, sku)
	}
	q += ` ORDER BY created_at DESC LIMIT ` + fmt.Sprint(limit)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		movement, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, movement)
	}
	return out, rows.Err()
}

func (r *repository) SetJournal(ctx context.Context, id uuid.UUID, journalID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE inventory_movements SET journal_id = $2 WHERE id = $1`, id, journalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMovementNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM inventory_movements WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMovementNotFound
	}
	return nil
}

func (r *repository) OnHand(ctx context.Context, sku string) (decimal.Decimal, error) {
	var qty decimal.Decimal
	err := r.pool.QueryRow(ctx, `
SELECT COALESCE(SUM(CASE WHEN kind = 'RECEIPT' THEN quantity ELSE -quantity END), 0)
FROM inventory_movements WHERE sku = $1`, sku).Scan(&qty)
	return qty, err
}

func scanMovement(row pgx.Row) (Movement, error) {
	var movement Movement
	err := row.Scan(&movement.ID, &movement.Kind, &movement.SKU, &movement.Quantity, &movement.UnitCost,
		&movement.Total, &movement.JournalID, &movement.CreatedBy, &movement.CreatedAt)
	return movement, err
}
