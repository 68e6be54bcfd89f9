package sysaccounts

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

type Repository interface {
	Get(ctx context.Context, key string) (SystemAccount, error)
	Set(ctx context.Context, key string, accountID int64) error
	List(ctx context.Context) ([]SystemAccount, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// Get resolves the mapping for a key.
func (r *repository) Get(ctx context.Context, key string) (SystemAccount, error) {
	if key == "" {
		return SystemAccount{}, errors.New("sysaccounts: key required")
	}
	normalized := strings.ToUpper(key)
	var entry SystemAccount
	err := r.db.QueryRow(ctx, `SELECT key, account_id, created_at, updated_at FROM system_accounts WHERE key=$1`, normalized).
		Scan(&entry.Key, &entry.AccountID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SystemAccount{}, shared.ErrSystemAccountNotConfigured
		}
		return SystemAccount{}, err
	}
	return entry, nil
}

func (r *repository) Set(ctx context.Context, key string, accountID int64) error {
	_, err := r.db.Exec(ctx, `INSERT INTO system_accounts (key, account_id) VALUES ($1,$2)
ON CONFLICT (key) DO UPDATE SET account_id=EXCLUDED.account_id, updated_at=NOW()`, strings.ToUpper(key), accountID)
	return err
}

func (r *repository) List(ctx context.Context) ([]SystemAccount, error) {
	rows, err := r.db.Query(ctx, `SELECT key, account_id, created_at, updated_at FROM system_accounts ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []SystemAccount
	for rows.Next() {
		var entry SystemAccount
		if err := rows.Scan(&entry.Key, &entry.AccountID, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
