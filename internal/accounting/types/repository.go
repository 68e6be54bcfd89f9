package types

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	List(ctx context.Context) ([]AccountType, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context) ([]AccountType, error) {
	rows, err := r.db.Query(ctx, `SELECT id, category, normal_balance FROM account_types ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []AccountType
	for rows.Next() {
		var t AccountType
		if err := rows.Scan(&t.ID, &t.Category, &t.NormalBalance); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// Load reads the reference table and builds the registry. Called once
// during startup; consumers receive the registry by injection.
func Load(ctx context.Context, repo Repository) (*Registry, error) {
	list, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return NewRegistry(list)
}
