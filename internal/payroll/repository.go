package payroll

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrSlipNotFound = errors.New("payroll: slip not found")

type Repository interface {
	Create(ctx context.Context, slip Slip) error
	Get(ctx context.Context, id uuid.UUID) (Slip, error)
	List(ctx context.Context, period string, limit int) ([]Slip, error)
	SetJournal(ctx context.Context, id uuid.UUID, journalID int64) error
	Delete(ctx context.Context, id uuid.UUID) error
	NextNumber(ctx context.Context) (string, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const slipColumns = `id, number, employee_name, period, date, currency, gross, tax_withheld, net, journal_id, created_by, created_at, updated_at`

func (r *repository) Create(ctx context.Context, slip Slip) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO payroll_slips (id, number, employee_name, period, date, currency, gross, tax_withheld, net, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())`,
		slip.ID, slip.Number, slip.EmployeeName, slip.Period, slip.Date, slip.Currency,
		slip.Gross, slip.TaxWithheld, slip.Net, slip.CreatedBy)
	return err
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Slip, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+slipColumns+` FROM payroll_slips WHERE id = $1`, id)
	slip, err := scanSlip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Slip{}, ErrSlipNotFound
	}
	return slip, err
}

func (r *repository) List(ctx context.Context, period string, limit int) ([]Slip, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT ` + slipColumns + ` FROM payroll_slips`
	args := []any{}
	if period != "" {
		q += ` WHERE period = $1`
		args = append(args, period)
	}
	q += ` ORDER BY created_at DESC LIMIT ` + fmt.Sprint(limit)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Slip
	for rows.Next() {
		slip, err := scanSlip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, slip)
	}
	return out, rows.Err()
}

func (r *repository) SetJournal(ctx context.Context, id uuid.UUID, journalID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE payroll_slips SET journal_id = $2, updated_at = NOW() WHERE id = $1`, id, journalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlipNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM payroll_slips WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlipNotFound
	}
	return nil
}

func (r *repository) NextNumber(ctx context.Context) (string, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('payroll_slip_number_seq')`).Scan(&n); err != nil {
		return "", err
	}
	return fmt.Sprintf("PAY-%06d", n), nil
}

func scanSlip(row pgx.Row) (Slip, error) {
	var slip Slip
	err := row.Scan(&slip.ID, &slip.Number, &slip.EmployeeName, &slip.Period, &slip.Date, &slip.Currency,
		&slip.Gross, &slip.TaxWithheld, &slip.Net, &slip.JournalID, &slip.CreatedBy, &slip.CreatedAt, &slip.UpdatedAt)
	return slip, err
}
