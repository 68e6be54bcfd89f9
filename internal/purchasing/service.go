package purchasing

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

type CreateInvoiceInput struct {
	SupplierName string
	Date         time.Time
	Currency     string
	Total        decimal.Decimal
	IsStock      bool
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

// CreateInvoice records the supplier invoice and posts its entry: debit
// inventory or purchase expense, credit the suppliers control account.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (Invoice, error) {
	if input.SupplierName == "" {
		return Invoice{}, errors.New("purchasing: supplier name required")
	}
	if !input.Total.IsPositive() {
		return Invoice{}, errors.New("purchasing: total must be positive")
	}
	if input.Date.IsZero() {
		input.Date = time.Now()
	}
	if input.Currency == "" {
		input.Currency = "USD"
	}

	debitKey := sysaccounts.KeyPurchaseExpense
	if input.IsStock {
		debitKey = sysaccounts.KeyInventory
	}
	debitAccount, err := s.registry.Resolve(ctx, debitKey)
	if err != nil {
		return Invoice{}, err
	}
	payable, err := s.registry.Resolve(ctx, sysaccounts.KeySuppliersControl)
	if err != nil {
		return Invoice{}, err
	}

	invoice := Invoice{
		ID:           uuid.New(),
		SupplierName: input.SupplierName,
		Date:         input.Date,
		Currency:     input.Currency,
		Total:        input.Total,
		IsStock:      input.IsStock,
		CreatedBy:    input.CreatedBy,
	}

	var entry journals.JournalEntry
	flow := saga.New(s.logger,
		saga.Step{
			Name: "create-invoice",
			Run: func(ctx context.Context) error {
				number, err := s.repo.NextNumber(ctx)
				if err != nil {
					return err
				}
				invoice.Number = number
				return s.repo.Create(ctx, invoice)
			},
			Compensate: func(ctx context.Context) error {
				return s.repo.Delete(ctx, invoice.ID)
			},
		},
		saga.Step{
			Name: "post-journal",
			Run: func(ctx context.Context) error {
				entry, err = s.ledger.Post(ctx, journals.PostingInput{
					Date:        invoice.Date,
					Description: fmt.Sprintf("Purchase invoice %s (%s)", invoice.Number, invoice.SupplierName),
					Source:      &journals.SourceRef{Kind: SourceKindInvoice, ID: invoice.ID},
					CreatedBy:   input.CreatedBy,
					Currency:    invoice.Currency,
					Lines: []journals.LineInput{
						{AccountID: debitAccount, Debit: invoice.Total, Currency: invoice.Currency},
						{AccountID: payable, Credit: invoice.Total, Currency: invoice.Currency},
					},
				})
				return err
			},
			Compensate: func(ctx context.Context) error {
				_, rerr := s.ledger.Reverse(ctx, journals.ReverseInput{
					EntryID: entry.ID,
					ActorID: input.CreatedBy,
					Reason:  "purchase invoice creation unwound",
				})
				return rerr
			},
		},
		saga.Step{
			Name: "attach-journal",
			Run: func(ctx context.Context) error {
				return s.repo.SetJournal(ctx, invoice.ID, entry.ID)
			},
		},
	)
	if err := flow.Execute(ctx); err != nil {
		return Invoice{}, err
	}
	invoice.JournalID = &entry.ID
	return invoice, nil
}

// DeleteInvoice reverses the ledger effect before removing the record.
func (s *Service) DeleteInvoice(ctx context.Context, id uuid.UUID, actorID int64, reason string) error {
	invoice, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if invoice.JournalID != nil {
		if _, err := s.ledger.Reverse(ctx, journals.ReverseInput{
			EntryID: *invoice.JournalID,
			ActorID: actorID,
			Reason:  fmt.Sprintf("purchase invoice %s deleted: %s", invoice.Number, reason),
		}); err != nil && !reversedAlready(ctx, s.ledger, *invoice.JournalID, err) {
			return fmt.Errorf("purchasing: reverse invoice %s: %w", invoice.Number, err)
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

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (Invoice, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListInvoices(ctx context.Context, limit int) ([]Invoice, error) {
	return s.repo.List(ctx, limit)
}
