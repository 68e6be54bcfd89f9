package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/accounting/reports"
	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
)

// EntryImbalance describes a posted entry whose sides do not match.
type EntryImbalance struct {
	EntryID     int64
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// LedgerScanSource reads the raw rows the integrity checks need.
type LedgerScanSource interface {
	// UnbalancedEntries lists posted entries whose header totals differ.
	UnbalancedEntries(ctx context.Context) ([]EntryImbalance, error)
	// HeaderLineMismatches lists entries whose header totals disagree
	// with the sum of their lines.
	HeaderLineMismatches(ctx context.Context) ([]EntryImbalance, error)
}

// DashboardSource supplies the accounting-equation check.
type DashboardSource interface {
	Dashboard(ctx context.Context) (reports.Dashboard, error)
}

// IntegrityReport summarises one scan.
type IntegrityReport struct {
	UnbalancedEntries []EntryImbalance
	HeaderMismatches  []EntryImbalance
	EquationHolds     bool
	EquationResidual  decimal.Decimal
}

// Clean reports whether the scan found no violations.
func (r IntegrityReport) Clean() bool {
	return len(r.UnbalancedEntries) == 0 && len(r.HeaderMismatches) == 0 && r.EquationHolds
}

// IntegrityScanner runs the periodic ledger checks.
type IntegrityScanner struct {
	source    LedgerScanSource
	dashboard DashboardSource
	logger    *slog.Logger
	metrics   *jobmetrics.Metrics
}

func NewIntegrityScanner(logger *slog.Logger, source LedgerScanSource, dashboard DashboardSource, metrics *jobmetrics.Metrics) *IntegrityScanner {
	return &IntegrityScanner{source: source, dashboard: dashboard, logger: logger, metrics: metrics}
}

// Scan runs all checks concurrently and reports every violation found.
// A violation does not fail the scan; only a read error does.
func (s *IntegrityScanner) Scan(ctx context.Context) (IntegrityReport, error) {
	var report IntegrityReport

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.source.UnbalancedEntries(gctx)
		if err != nil {
			return fmt.Errorf("unbalanced entries: %w", err)
		}
		report.UnbalancedEntries = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.source.HeaderLineMismatches(gctx)
		if err != nil {
			return fmt.Errorf("header mismatches: %w", err)
		}
		report.HeaderMismatches = rows
		return nil
	})
	g.Go(func() error {
		dash, err := s.dashboard.Dashboard(gctx)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		report.EquationHolds = dash.BalanceCheck
		report.EquationResidual = dash.BalanceResidual
		return nil
	})
	if err := g.Wait(); err != nil {
		return IntegrityReport{}, err
	}

	s.metrics.AddViolations("entry_totals", len(report.UnbalancedEntries))
	s.metrics.AddViolations("line_sums", len(report.HeaderMismatches))
	if !report.EquationHolds {
		s.metrics.AddViolations("balance_equation", 1)
	}
	for _, row := range report.UnbalancedEntries {
		s.logger.Error("ledger integrity: entry totals differ",
			slog.Int64("entry_id", row.EntryID),
			slog.String("total_debit", row.TotalDebit.String()),
			slog.String("total_credit", row.TotalCredit.String()))
	}
	for _, row := range report.HeaderMismatches {
		s.logger.Error("ledger integrity: header disagrees with lines",
			slog.Int64("entry_id", row.EntryID),
			slog.String("total_debit", row.TotalDebit.String()),
			slog.String("total_credit", row.TotalCredit.String()))
	}
	if !report.EquationHolds {
		s.logger.Error("ledger integrity: accounting equation broken",
			slog.String("residual", report.EquationResidual.String()))
	}
	return report, nil
}

// NewLedgerIntegrityHandler returns the Asynq handler for TaskLedgerIntegrity.
func NewLedgerIntegrityHandler(logger *slog.Logger, scanner *IntegrityScanner, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload LedgerIntegrityPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logger.Error("ledger integrity: bad payload", slog.Any("error", err))
			return asynq.SkipRetry
		}
		tracker := metrics.Track("ledger_integrity")
		report, err := scanner.Scan(ctx)
		if err = tracker.End(err); err != nil {
			return err
		}
		if report.Clean() {
			logger.Info("ledger integrity scan clean")
		}
		return nil
	}
}

type scanSource struct {
	pool *pgxpool.Pool
}

// NewScanSource builds the Postgres-backed scan source.
func NewScanSource(pool *pgxpool.Pool) LedgerScanSource {
	return &scanSource{pool: pool}
}

func (s *scanSource) UnbalancedEntries(ctx context.Context) ([]EntryImbalance, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, total_debit, total_credit
FROM journal_entries
WHERE status <> 'DRAFT' AND total_debit <> total_credit
ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanImbalances(rows)
}

func (s *scanSource) HeaderLineMismatches(ctx context.Context) ([]EntryImbalance, error) {
	rows, err := s.pool.Query(ctx, `
SELECT e.id, COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_entries e
LEFT JOIN journal_lines l ON l.journal_id = e.id
WHERE e.status <> 'DRAFT'
GROUP BY e.id, e.total_debit, e.total_credit
HAVING COALESCE(SUM(l.debit), 0) <> e.total_debit
    OR COALESCE(SUM(l.credit), 0) <> e.total_credit
ORDER BY e.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanImbalances(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanImbalances(rows rowScanner) ([]EntryImbalance, error) {
	var out []EntryImbalance
	for rows.Next() {
		var row EntryImbalance
		if err := rows.Scan(&row.EntryID, &row.TotalDebit, &row.TotalCredit); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
