package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository reads aggregated posting activity for reporting.
type Repository interface {
	// PeriodActivity returns per-leaf-account opening balances and period
	// debit/credit sums. Draft entries never contribute; cancelled entries
	// and their reversals both do, netting to zero.
	PeriodActivity(ctx context.Context, from, to time.Time) ([]AccountBalance, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) PeriodActivity(ctx context.Context, from, to time.Time) ([]AccountBalance, error) {
	const q = `
SELECT a.code,
       a.name,
       t.category,
       COALESCE(SUM(l.debit) FILTER (WHERE e.date < $1), 0)
         - COALESCE(SUM(l.credit) FILTER (WHERE e.date < $1), 0) AS opening,
       COALESCE(SUM(l.debit) FILTER (WHERE e.date >= $1 AND e.date <= $2), 0) AS debit,
       COALESCE(SUM(l.credit) FILTER (WHERE e.date >= $1 AND e.date <= $2), 0) AS credit
FROM accounts a
JOIN account_types t ON t.id = a.type_id
LEFT JOIN journal_lines l ON l.account_id = a.id
LEFT JOIN journal_entries e ON e.id = l.journal_id AND e.status <> 'DRAFT' AND e.date <= $2
WHERE a.is_group = FALSE
GROUP BY a.code, a.name, t.category
ORDER BY a.code`

	rows, err := r.pool.Query(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AccountBalance
	for rows.Next() {
		var ab AccountBalance
		var opening, debit, credit decimal.Decimal
		if err := rows.Scan(&ab.Code, &ab.Name, &ab.Category, &opening, &debit, &credit); err != nil {
			return nil, err
		}
		ab.Opening = opening
		ab.Debit = debit
		ab.Credit = credit
		out = append(out, ab)
	}
	return out, rows.Err()
}
