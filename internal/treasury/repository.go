package treasury

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrCardNotFound        = errors.New("treasury: card not found")
	ErrMovementNotFound    = errors.New("treasury: movement not found")
	ErrInsufficientBalance = errors.New("treasury: insufficient card balance")
)

type Repository interface {
	CreateCard(ctx context.Context, card Card) error
	GetCard(ctx context.Context, id uuid.UUID) (Card, error)
	// DeductCard atomically subtracts amount, failing with
	// ErrInsufficientBalance when the card cannot cover it.
	DeductCard(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
	RefundCard(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error

	CreateMovement(ctx context.Context, movement Movement) error
	GetMovement(ctx context.Context, id uuid.UUID) (Movement, error)
	ListMovements(ctx context.Context, limit int) ([]Movement, error)
	SetJournal(ctx context.Context, id uuid.UUID, journalID int64) error
	DeleteMovement(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) CreateCard(ctx context.Context, card Card) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO treasury_cards (id, number, holder, balance, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW(), NOW())`,
		card.ID, card.Number, card.Holder, card.Balance)
	return err
}

func (r *repository) GetCard(ctx context.Context, id uuid.UUID) (Card, error) {
	var card Card
	err := r.pool.QueryRow(ctx, `
SELECT id, number, holder, balance, created_at, updated_at FROM treasury_cards WHERE id = $1`, id).
		Scan(&card.ID, &card.Number, &card.Holder, &card.Balance, &card.CreatedAt, &card.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Card{}, ErrCardNotFound
	}
	return card, err
}

func (r *repository) DeductCard(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE treasury_cards SET balance = balance - $2, updated_at = NOW()
WHERE id = $1 AND balance >= $2`, id, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetCard(ctx, id); err != nil {
			return err
		}
		return ErrInsufficientBalance
	}
	return nil
}

func (r *repository) RefundCard(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE treasury_cards SET balance = balance + $2, updated_at = NOW() WHERE id = $1`, id, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCardNotFound
	}
	return nil
}

const movementColumns = `id, kind, amount, currency, card_id, memo, journal_id, created_by, created_at`

func (r *repository) CreateMovement(ctx context.Context, movement Movement) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO treasury_movements (id, kind, amount, currency, card_id, memo, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		movement.ID, movement.Kind, movement.Amount, movement.Currency, movement.CardID, movement.Memo, movement.CreatedBy)
	return err
}

func (r *repository) GetMovement(ctx context.Context, id uuid.UUID) (Movement, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+movementColumns+` FROM treasury_movements WHERE id = $1`, id)
	movement, err := scanMovement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Movement{}, ErrMovementNotFound
	}
	return movement, err
}

func (r *repository) ListMovements(ctx context.Context, limit int) ([]Movement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+movementColumns+` FROM treasury_movements ORDER BY created_at DESC LIMIT `+fmt.Sprint(limit))
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
	tag, err := r.pool.Exec(ctx, `UPDATE treasury_movements SET journal_id = $2 WHERE id = $1`, id, journalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMovementNotFound
	}
	return nil
}

func (r *repository) DeleteMovement(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM treasury_movements WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMovementNotFound
	}
	return nil
}

func scanMovement(row pgx.Row) (Movement, error) {
	var movement Movement
	err := row.Scan(&movement.ID, &movement.Kind, &movement.Amount, &movement.Currency, &movement.CardID,
		&movement.Memo, &movement.JournalID, &movement.CreatedBy, &movement.CreatedAt)
	return movement, err
}
