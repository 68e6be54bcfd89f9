package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrInvoiceNotFound = errors.New("sales: invoice not found")

// Repository stores invoices. Ledger tables are never touched here.
type Repository interface {
	Create(ctx context.Context, invoice Invoice) error
	Get(ctx context.Context, id uuid.UUID) (Invoice, error)
	List(ctx context.Context, limit int) ([]Invoice, error)
	SetJournal(ctx context.Context, id uuid.UUID, journalID int64) error
	Void(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	NextNumber(ctx context.Context) (string, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Create(ctx context.Context, invoice Invoice) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
INSERT INTO sales_invoices (id, number, customer_name, date, currency, subtotal, tax_amount, total, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())`,
		invoice.ID, invoice.Number, invoice.CustomerName, invoice.Date, invoice.Currency,
		invoice.Subtotal, invoice.TaxAmount, invoice.Total, invoice.Status, invoice.CreatedBy)
	if err != nil {
		return err
	}
	for _, line := range invoice.Lines {
		_, err = tx.Exec(ctx, `
INSERT INTO sales_invoice_lines (id, invoice_id, description, quantity, unit_price, tax_pct, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			line.ID, invoice.ID, line.Description, line.Quantity, line.UnitPrice, line.TaxPct, line.LineTotal)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

const invoiceColumns = `id, number, customer_name, date, currency, subtotal, tax_amount, total, status, journal_id, created_by, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM sales_invoices WHERE id = $1`, id)
	invoice, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, invoice_id, description, quantity, unit_price, tax_pct, line_total
FROM sales_invoice_lines WHERE invoice_id = $1 ORDER BY id`, id)
	if err != nil {
		return Invoice{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line InvoiceLine
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.Description, &line.Quantity, &line.UnitPrice, &line.TaxPct, &line.LineTotal); err != nil {
			return Invoice{}, err
		}
		invoice.Lines = append(invoice.Lines, line)
	}
	return invoice, rows.Err()
}

func (r *repository) List(ctx context.Context, limit int) ([]Invoice, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM sales_invoices ORDER BY created_at DESC LIMIT `+fmt.Sprint(limit))
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
	tag, err := r.pool.Exec(ctx, `UPDATE sales_invoices SET journal_id = $2, updated_at = NOW() WHERE id = $1`, id, journalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *repository) Void(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sales_invoices SET status = $2, updated_at = NOW() WHERE id = $1`, id, InvoiceStatusVoid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sales_invoices WHERE id = $1`, id)
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
	if err := r.pool.QueryRow(ctx, `SELECT nextval('sales_invoice_number_seq')`).Scan(&n); err != nil {
		return "", err
	}
	return fmt.Sprintf("INV-%06d", n), nil
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var invoice Invoice
	err := row.Scan(&invoice.ID, &invoice.Number, &invoice.CustomerName, &invoice.Date, &invoice.Currency,
		&invoice.Subtotal, &invoice.TaxAmount, &invoice.Total, &invoice.Status, &invoice.JournalID,
		&invoice.CreatedBy, &invoice.CreatedAt, &invoice.UpdatedAt)
	return invoice, err
}
