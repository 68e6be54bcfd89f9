package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

// Repository encapsulates DB operations for the chart of accounts.
// Creation runs inside a transaction so code allocation stays collision-free
// under concurrent sibling inserts.
type Repository interface {
	List(ctx context.Context) ([]Account, error)
	Get(ctx context.Context, id int64) (Account, error)
	UpdateDetails(ctx context.Context, id int64, name, description string, tag *CashFlowTag) error
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
	CountChildren(ctx context.Context, id int64) (int, error)
	CountPostedLines(ctx context.Context, id int64) (int, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations available inside a creation transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Account, error)
	ListChildCodes(ctx context.Context, parentID *int64) ([]string, error)
	Insert(ctx context.Context, a Account) (Account, error)
	MarkGroup(ctx context.Context, id int64) error
	HasPostedLines(ctx context.Context, id int64) (bool, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `a.id, a.code, a.name, a.description, a.type_id, t.category, a.parent_id, a.level, a.is_group, a.is_active, a.currency, a.current_balance, a.cash_flow_tag, a.created_at, a.updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Description, &a.TypeID, &a.Category, &a.ParentID, &a.Level, &a.IsGroup, &a.IsActive, &a.Currency, &a.CurrentBalance, &a.CashFlowTag, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *repository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts a JOIN account_types t ON t.id = a.type_id ORDER BY a.code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts a JOIN account_types t ON t.id = a.type_id WHERE a.id=$1`, id)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) UpdateDetails(ctx context.Context, id int64, name, description string, tag *CashFlowTag) error {
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET name=$2, description=$3, cash_flow_tag=$4, updated_at=NOW() WHERE id=$1`, id, name, description, tag)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *repository) CountChildren(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE parent_id=$1`, id).Scan(&count)
	return count, err
}

func (r *repository) CountPostedLines(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM journal_lines l JOIN journal_entries e ON e.id = l.journal_id WHERE l.account_id=$1 AND e.status <> 'DRAFT'`, id).Scan(&count)
	return count, err
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Account, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts a JOIN account_types t ON t.id = a.type_id WHERE a.id=$1 FOR UPDATE OF a`, id)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) ListChildCodes(ctx context.Context, parentID *int64) ([]string, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if parentID == nil {
		rows, err = r.tx.Query(ctx, `SELECT code FROM accounts WHERE parent_id IS NULL ORDER BY code`)
	} else {
		rows, err = r.tx.Query(ctx, `SELECT code FROM accounts WHERE parent_id=$1 ORDER BY code`, *parentID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func (r *txRepository) Insert(ctx context.Context, a Account) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts (code, name, description, type_id, parent_id, level, is_group, is_active, currency, current_balance, cash_flow_tag)
VALUES ($1,$2,$3,$4,$5,$6,$7,TRUE,$8,0,$9) RETURNING id, created_at, updated_at`,
		a.Code, a.Name, a.Description, a.TypeID, a.ParentID, a.Level, a.IsGroup, a.Currency, a.CashFlowTag)
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Account{}, err
	}
	a.IsActive = true
	return a, nil
}

func (r *txRepository) MarkGroup(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE accounts SET is_group=TRUE, updated_at=NOW() WHERE id=$1`, id)
	return err
}

func (r *txRepository) HasPostedLines(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_lines l JOIN journal_entries e ON e.id = l.journal_id WHERE l.account_id=$1 AND e.status <> 'DRAFT')`, id).Scan(&exists)
	return exists, err
}
