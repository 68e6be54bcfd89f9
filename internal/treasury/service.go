package treasury

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

type MovementInput struct {
	Kind      MovementKind
	Amount    decimal.Decimal
	Currency  string
	CardID    *uuid.UUID
	Memo      string
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

// IssueCard creates a stored-value card with an opening balance.
func (s *Service) IssueCard(ctx context.Context, number, holder string, opening decimal.Decimal) (Card, error) {
	if number == "" {
		return Card{}, errors.New("treasury: card number required")
	}
	if opening.IsNegative() {
		return Card{}, errors.New("treasury: opening balance cannot be negative")
	}
	card := Card{ID: uuid.New(), Number: number, Holder: holder, Balance: opening}
	if err := s.repo.CreateCard(ctx, card); err != nil {
		return Card{}, err
	}
	return card, nil
}

func (s *Service) GetCard(ctx context.Context, id uuid.UUID) (Card, error) {
	return s.repo.GetCard(ctx, id)
}

// RecordMovement posts a deposit or withdrawal against the treasury
// control account. Card payments additionally deduct the card's stored
// value first; a later failure refunds the card (the ledger cannot roll
// that back for us).
func (s *Service) RecordMovement(ctx context.Context, input MovementInput) (Movement, error) {
	if !input.Amount.IsPositive() {
		return Movement{}, errors.New("treasury: amount must be positive")
	}
	if input.Currency == "" {
		input.Currency = "USD"
	}
	if input.Kind == MovementCardPayment && input.CardID == nil {
		return Movement{}, errors.New("treasury: card payment requires card id")
	}

	cash, err := s.registry.Resolve(ctx, sysaccounts.KeyCashDefault)
	if err != nil {
		return Movement{}, err
	}
	control, err := s.registry.Resolve(ctx, sysaccounts.KeyTreasuryControl)
	if err != nil {
		return Movement{}, err
	}

	movement := Movement{
		ID:        uuid.New(),
		Kind:      input.Kind,
		Amount:    input.Amount,
		Currency:  input.Currency,
		CardID:    input.CardID,
		Memo:      input.Memo,
		CreatedBy: input.CreatedBy,
	}

	var lines []journals.LineInput
	switch input.Kind {
	case MovementDeposit, MovementCardPayment:
		lines = []journals.LineInput{
			{AccountID: cash, Debit: input.Amount, Currency: input.Currency},
			{AccountID: control, Credit: input.Amount, Currency: input.Currency},
		}
	case MovementWithdrawal:
		lines = []journals.LineInput{
			{AccountID: control, Debit: input.Amount, Currency: input.Currency},
			{AccountID: cash, Credit: input.Amount, Currency: input.Currency},
		}
	default:
		return Movement{}, fmt.Errorf("treasury: unknown movement kind %q", input.Kind)
	}

	var entry journals.JournalEntry
	flow := saga.New(s.logger)
	if input.Kind == MovementCardPayment {
		cardID := *input.CardID
		flow.AddStep(saga.Step{
			Name: "deduct-card",
			Run: func(ctx context.Context) error {
				return s.repo.DeductCard(ctx, cardID, input.Amount)
			},
			Compensate: func(ctx context.Context) error {
				return s.repo.RefundCard(ctx, cardID, input.Amount)
			},
		})
	}
	flow.AddStep(saga.Step{
		Name: "create-movement",
		Run: func(ctx context.Context) error {
			return s.repo.CreateMovement(ctx, movement)
		},
		Compensate: func(ctx context.Context) error {
			return s.repo.DeleteMovement(ctx, movement.ID)
		},
	})
	flow.AddStep(saga.Step{
		Name: "post-journal",
		Run: func(ctx context.Context) error {
			entry, err = s.ledger.Post(ctx, journals.PostingInput{
				Date:        s.now(),
				Description: fmt.Sprintf("Treasury %s %s", input.Kind, movement.ID),
				Source:      &journals.SourceRef{Kind: SourceKindMovement, ID: movement.ID},
				CreatedBy:   input.CreatedBy,
				Currency:    input.Currency,
				Lines:       lines,
			})
			return err
		},
		Compensate: func(ctx context.Context) error {
			_, rerr := s.ledger.Reverse(ctx, journals.ReverseInput{
				EntryID: entry.ID,
				ActorID: input.CreatedBy,
				Reason:  "treasury movement creation unwound",
			})
			return rerr
		},
	})
	flow.AddStep(saga.Step{
		Name: "attach-journal",
		Run: func(ctx context.Context) error {
			return s.repo.SetJournal(ctx, movement.ID, entry.ID)
		},
	})

	if err := flow.Execute(ctx); err != nil {
		return Movement{}, err
	}
	movement.JournalID = &entry.ID
	return movement, nil
}

// DeleteMovement reverses the linked entry, refunds any card deduction,
// then removes the record. Reversal failure keeps everything in place.
func (s *Service) DeleteMovement(ctx context.Context, id uuid.UUID, actorID int64, reason string) error {
	movement, err := s.repo.GetMovement(ctx, id)
	if err != nil {
		return err
	}
	if movement.JournalID != nil {
		if _, err := s.ledger.Reverse(ctx, journals.ReverseInput{
			EntryID: *movement.JournalID,
			ActorID: actorID,
			Reason:  fmt.Sprintf("treasury movement %s deleted: %s", movement.ID, reason),
		}); err != nil && !reversedAlready(ctx, s.ledger, *movement.JournalID, err) {
			return fmt.Errorf("treasury: reverse movement %s: %w", movement.ID, err)
		}
	}
	if movement.Kind == MovementCardPayment && movement.CardID != nil {
		if err := s.repo.RefundCard(ctx, *movement.CardID, movement.Amount); err != nil {
			return err
		}
	}
	return s.repo.DeleteMovement(ctx, id)
}

func (s *Service) ListMovements(ctx context.Context, limit int) ([]Movement, error) {
	return s.repo.ListMovements(ctx, limit)
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
