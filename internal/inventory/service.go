package inventory

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

var ErrInsufficientStock = errors.New("inventory: insufficient stock on hand")

type LedgerPort interface {
	Post(ctx context.Context, input journals.PostingInput) (journals.JournalEntry, error)
	Reverse(ctx context.Context, input journals.ReverseInput) (journals.JournalEntry, error)
	Get(ctx context.Context, id int64) (journals.JournalEntry, error)
}

type AccountResolver interface {
	Resolve(ctx context.Context, key string) (int64, error)
}

type MovementInput struct {
	Kind      MovementKind
	SKU       string
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
	CreatedBy int64
}

type Service struct {
	repo     Repository
	ledger   LedgerPort
	registry AccountResolver
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(logger *slog.Logger, repo Repository, ledger LedgerPort, registry AccountResolver) *Service {
	return &Service{repo: repo, ledger: ledger, registry: registry, logger: logger, now: time.Now}
}

// RecordMovement costs the movement into the ledger. Receipts debit the
// inventory account against the suppliers control; issues expense the
// cost of goods sold out of inventory.
func (s *Service) RecordMovement(ctx context.Context, input MovementInput) (Movement, error) {
	if input.SKU == "" {
		return Movement{}, errors.New("inventory: sku required")
	}
	if !input.Quantity.IsPositive() {
		return Movement{}, errors.New("inventory: quantity must be positive")
	}
	if input.UnitCost.IsNegative() {
		return Movement{}, errors.New("inventory: unit cost cannot be negative")
	}

	stock, err := s.registry.Resolve(ctx, sysaccounts.KeyInventory)
	if err != nil {
		return Movement{}, err
	}

	total := input.Quantity.Mul(input.UnitCost).Round(2)
	var lines []journals.LineInput
	switch input.Kind {
	case MovementReceipt:
		payable, err := s.registry.Resolve(ctx, sysaccounts.KeySuppliersControl)
		if err != nil {
			return Movement{}, err
		}
		lines = []journals.LineInput{
			{AccountID: stock, Debit: total},
			{AccountID: payable, Credit: total},
		}
	case MovementIssue:
		onHand, err := s.repo.OnHand(ctx, input.SKU)
		if err != nil {
			return Movement{}, err
		}
		if onHand.LessThan(input.Quantity) {
			return Movement{}, fmt.Errorf("%w: %s on hand %s, requested %s",
				ErrInsufficientStock, input.SKU, onHand.String(), input.Quantity.String())
		}
		cogs, err := s.registry.Resolve(ctx, sysaccounts.KeyCostOfGoodsSold)
		if err != nil {
			return Movement{}, err
		}
		lines = []journals.LineInput{
			{AccountID: cogs, Debit: total},
			{AccountID: stock, Credit: total},
		}
	default:
		return Movement{}, fmt.Errorf("inventory: unknown movement kind %q", input.Kind)
	}

	movement := Movement{
		ID:        uuid.New(),
		Kind:      input.Kind,
		SKU:       input.SKU,
		Quantity:  input.Quantity,
		UnitCost:  input.UnitCost,
		Total:     total,
		CreatedBy: input.CreatedBy,
	}

	var entry journals.JournalEntry
	flow := saga.New(s.logger,
		saga.Step{
			Name: "create-movement",
			Run: func(ctx context.Context) error {
				return s.repo.Create(ctx, movement)
			},
			Compensate: func(ctx context.Context) error {
				return s.repo.Delete(ctx, movement.ID)
			},
		},
		saga.Step{
			Name: "post-journal",
			Run: func(ctx context.Context) error {
				var err error
				entry, err = s.ledger.Post(ctx, journals.PostingInput{
					Date:        s.now(),
					Description: fmt.Sprintf("Inventory %s %s x%s", input.Kind, input.SKU, input.Quantity.String()),
					Source:      &journals.SourceRef{Kind: SourceKindMovement, ID: movement.ID},
					CreatedBy:   input.CreatedBy,
					Lines:       lines,
				})
				return err
			},
			Compensate: func(ctx context.Context) error {
				_, rerr := s.ledger.Reverse(ctx, journals.ReverseInput{
					EntryID: entry.ID,
					ActorID: input.CreatedBy,
					Reason:  "inventory movement creation unwound",
				})
				return rerr
			},
		},
		saga.Step{
			Name: "attach-journal",
			Run: func(ctx context.Context) error {
				return s.repo.SetJournal(ctx, movement.ID, entry.ID)
			},
		},
	)
	if err := flow.Execute(ctx); err != nil {
		return Movement{}, err
	}
	movement.JournalID = &entry.ID
	return movement, nil
}

// DeleteMovement reverses the costing entry before removing the record.
func (s *Service) DeleteMovement(ctx context.Context, id uuid.UUID, actorID int64, reason string) error {
	movement, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if movement.JournalID != nil {
		if _, err := s.ledger.Reverse(ctx, journals.ReverseInput{
			EntryID: *movement.JournalID,
			ActorID: actorID,
			Reason:  fmt.Sprintf("inventory movement %s deleted: %s", movement.ID, reason),
		}); err != nil && !reversedAlready(ctx, s.ledger, *movement.JournalID, err) {
			return fmt.Errorf("inventory: reverse movement %s: %w", movement.ID, err)
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

func (s *Service) GetMovement(ctx context.Context, id uuid.UUID) (Movement, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListMovements(ctx context.Context, sku string, limit int) ([]Movement, error) {
	return s.repo.List(ctx, sku, limit)
}

func (s *Service) OnHand(ctx context.Context, sku string) (decimal.Decimal, error) {
	return s.repo.OnHand(ctx, sku)
}
