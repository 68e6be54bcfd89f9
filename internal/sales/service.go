package sales

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

// LedgerPort is the slice of the journal engine sub-ledgers use. The
// ledger alone mutates balances; this package never writes ledger tables.
type LedgerPort interface {
	Post(ctx context.Context, input journals.PostingInput) (journals.JournalEntry, error)
	Reverse(ctx context.Context, input journals.ReverseInput) (journals.JournalEntry, error)
	Get(ctx context.Context, id int64) (journals.JournalEntry, error)
}

// AccountResolver resolves logical system account keys to leaf accounts.
type AccountResolver interface {
	Resolve(ctx context.Context, key string) (int64, error)
}

type LineInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TaxPct      decimal.Decimal
}

type CreateInvoiceInput struct {
	CustomerName string
	Date         time.Time
	Currency     string
	CreatedBy    int64
	Lines        []LineInput
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

// CreateInvoice stores the invoice and posts its ledger entry: debit the
// customers control account for the total, credit revenue and tax payable.
// The steps run as a saga so a failure after the record exists unwinds it.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (Invoice, error) {
	if input.CustomerName == "" {
		return Invoice{}, errors.New("sales: customer name required")
	}
	if len(input.Lines) == 0 {
		return Invoice{}, errors.New("sales: at least one line required")
	}
	if input.Date.IsZero() {
		input.Date = time.Now()
	}
	if input.Currency == "" {
		input.Currency = "USD"
	}

	subtotal := decimal.Zero
	tax := decimal.Zero
	invoice := Invoice{
		ID:           uuid.New(),
		CustomerName: input.CustomerName,
		Date:         input.Date,
		Currency:     input.Currency,
		Status:       InvoiceStatusPosted,
		CreatedBy:    input.CreatedBy,
	}
	for _, line := range input.Lines {
		if !line.Quantity.IsPositive() || line.UnitPrice.IsNegative() {
			return Invoice{}, errors.New("sales: line quantity must be positive and price non-negative")
		}
		lineTotal := line.Quantity.Mul(line.UnitPrice)
		lineTax := lineTotal.Mul(line.TaxPct).Div(decimal.NewFromInt(100))
		subtotal = subtotal.Add(lineTotal)
		tax = tax.Add(lineTax)
		invoice.Lines = append(invoice.Lines, InvoiceLine{
			ID:          uuid.New(),
			InvoiceID:   invoice.ID,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			TaxPct:      line.TaxPct,
			LineTotal:   lineTotal,
		})
	}
	// Round the derived parts to the currency's minor unit and build the
	// total from the rounded parts. The journal engine rounds each line
	// independently, so unrounded parts can produce a debit that differs
	// from the credit sum by a minor unit.
	exp := journals.CurrencyExponent(invoice.Currency)
	invoice.Subtotal = subtotal.Round(exp)
	invoice.TaxAmount = tax.Round(exp)
	invoice.Total = invoice.Subtotal.Add(invoice.TaxAmount)

	receivable, err := s.registry.Resolve(ctx, sysaccounts.KeyCustomersControl)
	if err != nil {
		return Invoice{}, err
	}
	revenue, err := s.registry.Resolve(ctx, sysaccounts.KeySalesRevenue)
	if err != nil {
		return Invoice{}, err
	}
	var taxPayable int64
	if invoice.TaxAmount.IsPositive() {
		if taxPayable, err = s.registry.Resolve(ctx, sysaccounts.KeySalesTaxPayable); err != nil {
			return Invoice{}, err
		}
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
				posting := journals.PostingInput{
					Date:        invoice.Date,
					Description: fmt.Sprintf("Sales invoice %s (%s)", invoice.Number, invoice.CustomerName),
					Source:      &journals.SourceRef{Kind: SourceKindInvoice, ID: invoice.ID},
					CreatedBy:   input.CreatedBy,
					Currency:    invoice.Currency,
					Lines: invoiceLines(receivable, revenue, taxPayable, invoice,
						"Receivable "+invoice.Number, "Revenue "+invoice.Number, "Sales tax "+invoice.Number),
				}
				entry, err = s.ledger.Post(ctx, posting)
				return err
			},
			Compensate: func(ctx context.Context) error {
				_, rerr := s.ledger.Reverse(ctx, journals.ReverseInput{
					EntryID: entry.ID,
					ActorID: input.CreatedBy,
					Reason:  "sales invoice creation unwound",
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

func invoiceLines(receivable, revenue, taxPayable int64, invoice Invoice, recvDesc, revDesc, taxDesc string) []journals.LineInput {
	lines := []journals.LineInput{
		{AccountID: receivable, Debit: invoice.Total, Description: recvDesc, Currency: invoice.Currency},
		{AccountID: revenue, Credit: invoice.Subtotal, Description: revDesc, Currency: invoice.Currency},
	}
	if invoice.TaxAmount.IsPositive() {
		lines = append(lines, journals.LineInput{
			AccountID: taxPayable, Credit: invoice.TaxAmount, Description: taxDesc, Currency: invoice.Currency,
		})
	}
	return lines
}

// DeleteInvoice reverses the linked ledger entry first; if the reversal
// fails the invoice stays. No business record may outlive an unreversed
// ledger effect or vice versa.
func (s *Service) DeleteInvoice(ctx context.Context, id uuid.UUID, actorID int64, reason string) error {
	invoice, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if invoice.JournalID != nil {
		if _, err := s.ledger.Reverse(ctx, journals.ReverseInput{
			EntryID: *invoice.JournalID,
			ActorID: actorID,
			Reason:  fmt.Sprintf("sales invoice %s deleted: %s", invoice.Number, reason),
		}); err != nil && !reversedAlready(ctx, s.ledger, *invoice.JournalID, err) {
			return fmt.Errorf("sales: reverse invoice %s: %w", invoice.Number, err)
		}
	}
	return s.repo.Delete(ctx, id)
}

// reversedAlready reports whether a failed reversal can be skipped because
// the entry already carries a reversal link, typically left by an earlier
// delete attempt that failed after its reversal posted. Without this the
// retried delete would fail forever on the terminal entry.
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
