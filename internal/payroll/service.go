package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/accounting/sysaccounts"
	"github.com/meridian-erp/meridian-erp/internal/saga"
)

type LedgerPort interface {
	Post(ctx context.Context, input journals.PostingInput) (journals.JournalEntry, error)
	Reverse(ctx context.Context, input journals.ReverseInput) (journals.JournalEntry, error)
	Get(ctx context.Context, id int64) (journals.JournalEntry, error)
}

type AccountResolver interface {
	Resolve(ctx context.Context, key string) (int64, error)
}

type PaySlipInput struct {
	EmployeeName string
	Period       string
	Date         time.Time
	Currency     string
	Gross        decimal.Decimal
	TaxWithheld  decimal.Decimal
	CreatedBy    int64
}

type Service struct {
	repo     Repository
	ledger   LedgerPort
	registry AccountResolver
	logger   *slog.Logger
}

func NewService(logger *slog.Logger, repo Repository, ledger LedgerPort, registry AccountResolver) *Service {
	return &Service{repo: repo, ledger: ledger, registry: registry, logger: logger}
}

// PaySlip records the slip and posts: debit salary expense for gross,
// credit payroll taxes payable for the withheld part, credit cash for net.
func (s *Service) PaySlip(ctx context.Context, input PaySlipInput) (Slip, error) {
	if input.EmployeeName == "" {
		return Slip{}, errors.New("payroll: employee name required")
	}
	if input.Period == "" {
		return Slip{}, errors.New("payroll: period required")
	}
	if !input.Gross.IsPositive() {
		return Slip{}, errors.New("payroll: gross must be positive")
	}
	if input.TaxWithheld.IsNegative() || input.TaxWithheld.GreaterThan(input.Gross) {
		return Slip{}, errors.New("payroll: tax withheld must be between zero and gross")
	}
	if input.Date.IsZero() {
		input.Date = time.Now()
	}
	if input.Currency == "" {
		input.Currency = "USD"
	}

	salaryExpense, err := s.registry.Resolve(ctx, sysaccounts.KeySalaryExpense)
	if err != nil {
		return Slip{}, err
	}
	cash, err := s.registry.Resolve(ctx, sysaccounts.KeyCashDefault)
	if err != nil {
		return Slip{}, err
	}
	var taxPayable int64
	if input.TaxWithheld.IsPositive() {
		if taxPayable, err = s.registry.Resolve(ctx, sysaccounts.KeyPayrollTaxPayable); err != nil {
			return Slip{}, err
		}
	}

	slip := Slip{
		ID:           uuid.New(),
		EmployeeName: input.EmployeeName,
		Period:       input.Period,
		Date:         input.Date,
		Currency:     input.Currency,
		Gross:        input.Gross,
		TaxWithheld:  input.TaxWithheld,
		Net:          input.Gross.Sub(input.TaxWithheld),
		CreatedBy:    input.CreatedBy,
	}

	var entry journals.JournalEntry
	flow := saga.New(s.logger,
		saga.Step{
			Name: "create-slip",
			Run: func(ctx context.Context) error {
				number, err := s.repo.NextNumber(ctx)
				if err != nil {
					return err
				}
				slip.Number = number
				return s.repo.Create(ctx, slip)
			},
			Compensate: func(ctx context.Context) error {
				return s.repo.Delete(ctx, slip.ID)
			},
		},
		saga.Step{
			Name: "post-journal",
			Run: func(ctx context.Context) error {
				lines := []journals.LineInput{
					{AccountID: salaryExpense, Debit: slip.Gross, Description: "Gross salary " + slip.Number, Currency: slip.Currency},
				}
				if slip.TaxWithheld.IsPositive() {
					lines = append(lines, journals.LineInput{
						AccountID: taxPayable, Credit: slip.TaxWithheld, Description: "Withheld taxes " + slip.Number, Currency: slip.Currency,
					})
				}
				lines = append(lines, journals.LineInput{
					AccountID: cash, Credit: slip.Net, Description: "Net pay " + slip.Number, Currency: slip.Currency,
				})
				entry, err = s.ledger.Post(ctx, journals.PostingInput{
					Date:        slip.Date,
					Description: fmt.Sprintf("Payroll %s %s (%s)", slip.Period, slip.Number, slip.EmployeeName),
					Source:      &journals.SourceRef{Kind: SourceKindSlip, ID: slip.ID},
					CreatedBy:   input.CreatedBy,
					Currency:    slip.Currency,
					Lines:       lines,
				})
				return err
			},
			Compensate: func(ctx context.Context) error {
				_, rerr := s.ledger.Reverse(ctx, journals.ReverseInput{
					EntryID: entry.ID,
					ActorID: input.CreatedBy,
					Reason:  "payroll slip creation unwound",
				})
				return rerr
			},
		},
		saga.Step{
			Name: "attach-journal",
			Run: func(ctx context.Context) error {
				return s.repo.SetJournal(ctx, slip.ID, entry.ID)
			},
		},
	)
	if err := flow.Execute(ctx); err != nil {
		return Slip{}, err
	}
	slip.JournalID = &entry.ID
	return slip, nil
}

// DeleteSlip reverses the ledger effect before removing the slip.
func (s *Service) DeleteSlip(ctx context.Context, id uuid.UUID, actorID int64, reason string) error {
	slip, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if slip.JournalID != nil {
		if _, err := s.ledger.Reverse(ctx, journals.ReverseInput{
			EntryID: *slip.JournalID,
			ActorID: actorID,
			Reason:  fmt.Sprintf("payroll slip %s deleted: %s", slip.Number, reason),
		}); err != nil && !reversedAlready(ctx, s.ledger, *slip.JournalID, err) {
			return fmt.Errorf("payroll: reverse slip %s: %w", slip.Number, err)
		}
	}
	return s.repo.Delete(ctx, id)
}

// reversedAlready reports whether a failed reversal can be skipped because
// the entry already carries a reversal link, typically left by an earlier
// delete attempt that failed after its reversal posted.
func reversedAlready(ctx context.Context, ledger LedgerPort, entryID int64, rerr error) bool {
	if !errors.Is(rerr, shared.ErrAlreadyReversed) {
		return false
	}
	entry, err := ledger.Get(ctx, entryID)
	if err != nil {
		return false
	}
	return entry.ReversedBy != nil
}

func (s *Service) GetSlip(ctx context.Context, id uuid.UUID) (Slip, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListSlips(ctx context.Context, period string, limit int) ([]Slip, error) {
	return s.repo.List(ctx, period, limit)
}
