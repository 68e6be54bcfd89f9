package journals

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// ListFilter narrows the journal listing.
type ListFilter struct {
	Status     Status
	SourceKind SourceKind
	Limit      int
}

// Repository encapsulates DB operations for journal entries. All balance
// mutation happens inside WithTx so a failed post never leaves a partial
// entry visible.
type Repository interface {
	Get(ctx context.Context, id int64) (JournalEntry, error)
	List(ctx context.Context, filter ListFilter) ([]JournalEntry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations available within a posting transaction.
type TxRepository interface {
	// LockAccounts fetches the accounts in ascending id order under
	// FOR UPDATE, so two entries sharing accounts always acquire locks in
	// the same order.
	LockAccounts(ctx context.Context, ids []int64) ([]accounts.Account, error)
	ApplyDelta(ctx context.Context, accountID int64, delta decimal.Decimal) error
	InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []Line) error
	ReplaceLines(ctx context.Context, entryID int64, lines []Line) error
	LinkSource(ctx context.Context, ref SourceRef, entryID int64) error
	GetForUpdate(ctx context.Context, id int64) (JournalEntry, error)
	MarkPosted(ctx context.Context, id int64, totalDebit, totalCredit decimal.Decimal, postedAt time.Time) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	MarkReversed(ctx context.Context, originalID, reversalID int64) error
	UpdateDraftHeader(ctx context.Context, id int64, date time.Time, description string, totalDebit, totalCredit decimal.Decimal) error
	DeleteEntry(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const entryColumns = `id, number, date, description, status, total_debit, total_credit, source_kind, source_id, created_by, posted_at, reversed_by, reverses, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (JournalEntry, error) {
	var (
		e          JournalEntry
		sourceKind *string
		sourceID   *string
	)
	err := row.Scan(&e.ID, &e.Number, &e.Date, &e.Description, &e.Status, &e.TotalDebit, &e.TotalCredit, &sourceKind, &sourceID, &e.CreatedBy, &e.PostedAt, &e.ReversedBy, &e.Reverses, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return JournalEntry{}, err
	}
	if sourceKind != nil && sourceID != nil {
		ref, err := parseSourceRef(*sourceKind, *sourceID)
		if err != nil {
			return JournalEntry{}, err
		}
		e.Source = &ref
	}
	return e, nil
}

func (r *repository) Get(ctx context.Context, id int64) (JournalEntry, error) {
	entry, err := scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	lines, err := queryLines(ctx, r.pool, id)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]JournalEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries`
	args := []any{}
	where := ""
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = ` WHERE status=$1`
	}
	if filter.SourceKind != "" {
		args = append(args, filter.SourceKind)
		if where == "" {
			where = ` WHERE source_kind=$1`
		} else {
			where += ` AND source_kind=$2`
		}
	}
	query += where + ` ORDER BY number DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(filter.Limit)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) LockAccounts(ctx context.Context, ids []int64) ([]accounts.Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT a.id, a.code, a.name, a.type_id, t.category, a.parent_id, a.level, a.is_group, a.is_active, a.currency, a.current_balance
FROM accounts a JOIN account_types t ON t.id = a.type_id
WHERE a.id = ANY($1) ORDER BY a.id FOR UPDATE OF a`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounts.Account
	for rows.Next() {
		var a accounts.Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.TypeID, &a.Category, &a.ParentID, &a.Level, &a.IsGroup, &a.IsActive, &a.Currency, &a.CurrentBalance); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *txRepository) ApplyDelta(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET current_balance = current_balance + $2, updated_at=NOW() WHERE id=$1`, accountID, delta)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	var sourceKind, sourceID any
	if entry.Source != nil {
		sourceKind = string(entry.Source.Kind)
		sourceID = entry.Source.ID.String()
	}
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (number, date, description, status, total_debit, total_credit, source_kind, source_id, created_by, posted_at, reverses)
VALUES (nextval('journal_entry_number_seq'),$1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING id, number, created_at, updated_at`,
		entry.Date, entry.Description, entry.Status, entry.TotalDebit, entry.TotalCredit, sourceKind, sourceID, entry.CreatedBy, entry.PostedAt, entry.Reverses)
	if err := row.Scan(&entry.ID, &entry.Number, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []Line) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (journal_id, account_id, debit, credit, description, currency, exchange_rate, amount_in_account_currency, product_id, quantity)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			entryID, line.AccountID, line.Debit, line.Credit, line.Description, line.Currency, line.ExchangeRate, line.AmountInAccountCurrency, line.ProductID, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) ReplaceLines(ctx context.Context, entryID int64, lines []Line) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE journal_id=$1`, entryID); err != nil {
		return err
	}
	return r.InsertLines(ctx, entryID, lines)
}

func (r *txRepository) LinkSource(ctx context.Context, ref SourceRef, entryID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO source_links (kind, ref_id, journal_id) VALUES ($1,$2,$3)`, string(ref.Kind), ref.ID, entryID)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_source_links") {
			return shared.ErrSourceAlreadyLinked
		}
		return err
	}
	return nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (JournalEntry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	lines, err := queryLines(ctx, r.tx, id)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

func (r *txRepository) MarkPosted(ctx context.Context, id int64, totalDebit, totalCredit decimal.Decimal, postedAt time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='POSTED', total_debit=$2, total_credit=$3, posted_at=$4, updated_at=NOW() WHERE id=$1`, id, totalDebit, totalCredit, postedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) MarkReversed(ctx context.Context, originalID, reversalID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET reversed_by=$2, updated_at=NOW() WHERE id=$1`, originalID, reversalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) UpdateDraftHeader(ctx context.Context, id int64, date time.Time, description string, totalDebit, totalCredit decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET date=$2, description=$3, total_debit=$4, total_credit=$5, updated_at=NOW() WHERE id=$1`, id, date, description, totalDebit, totalCredit)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) DeleteEntry(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE journal_id=$1`, id); err != nil {
		return err
	}
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journal_entries WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrJournalNotFound
	}
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryLines(ctx context.Context, q querier, entryID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, journal_id, account_id, debit, credit, description, currency, exchange_rate, amount_in_account_currency, product_id, quantity, created_at
FROM journal_lines WHERE journal_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.JournalID, &line.AccountID, &line.Debit, &line.Credit, &line.Description, &line.Currency, &line.ExchangeRate, &line.AmountInAccountCurrency, &line.ProductID, &line.Quantity, &line.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func parseSourceRef(kind, id string) (SourceRef, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return SourceRef{}, err
	}
	return SourceRef{Kind: SourceKind(kind), ID: parsed}, nil
}
