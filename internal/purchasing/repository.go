package purchasing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrInvoiceNotFound = errors.New("purchasing: invoice not found")

type Repository interface {
	Create(ctx context.Context, invoice Invoice) error
	Get(ctx context.Context, id uuid.UUID) (Invoice, error)
	List(ctx context.Context, limit int) ([]Invoice, error)
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

const invoiceColumns = `id, number, supplier_name, date, currency, total, is_stock, journal_id, created_by, created_at, updated_at`

func (r *repository) Create(ctx context.Context, invoice Invoice) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO purchase_invoices (id, number, supplier_name, date, currency, total, is_stock, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`,
		invoice.ID, invoice.Number, invoice.SupplierName, invoice.Date, invoice.Currency,
		invoice.Total, invoice.IsStock, invoice.CreatedBy)
	return err
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM purchase_invoices WHERE id = $1`, id)
	invoice, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrInvoiceNotFound
	}
	return invoice, err
}

func (r *repository) List(ctx context.Context, limit int) ([]Invoice, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM purchase_invoices ORDER BY created_at DESC LIMIT `+fmt.Sprint(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, invoice)
	}
	return out, rows.Err()
}

func (r *repository) SetJournal(ctx context.Context, id uuid.UUID, journalID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE purchase_invoices SET journal_id = $2, updated_at = NOW() WHERE id = $1`, id, journalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM purchase_invoices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *repository) NextNumber(ctx context.Context) (string, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('purchase_invoice_number_seq')`).Scan(&n); err != nil {
		return "", err
	}
	return fmt.Sprintf("PINV-%06d", n), nil
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var invoice Invoice
	err := row.Scan(&invoice.ID, &invoice.Number, &invoice.SupplierName, &invoice.Date, &invoice.Currency,
		&invoice.Total, &invoice.IsStock, &invoice.JournalID, &invoice.CreatedBy, &invoice.CreatedAt, &invoice.UpdatedAt)
	return invoice, err
}
