package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/accounting/sysaccounts"
	"github.com/meridian-erp/meridian-erp/internal/saga"
)

type LedgerPort interface {
	Post(ctx context.Context, input journals.PostingInput) (journals.JournalEntry, error)
	Reverse(ctx context.Context, input journals.ReverseInput) (journals.JournalEntry, error)
}

type AccountResolver interface {
	Resolve(ctx context.Context, key string) (int64, error)
}

type RegisterInput struct {
	Name             string
	Cost             decimal.Decimal
	SalvageValue     decimal.Decimal
	UsefulLifeMonths int
	AcquiredAt       time.Time
	CreatedBy        int64
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

// Register adds an asset to the register. Acquisition itself is a
// purchasing concern; this only starts the depreciation schedule.
func (s *Service) Register(ctx context.Context, input RegisterInput) (Asset, error) {
	if input.Name == "" {
		return Asset{}, errors.New("assets: name required")
	}
	if !input.Cost.IsPositive() {
		return Asset{}, errors.New("assets: cost must be positive")
	}
	if input.SalvageValue.IsNegative() || input.SalvageValue.GreaterThan(input.Cost) {
		return Asset{}, errors.New("assets: salvage value must be between zero and cost")
	}
	if input.UsefulLifeMonths <= 0 {
		return Asset{}, errors.New("assets: useful life must be positive")
	}
	if input.AcquiredAt.IsZero() {
		input.AcquiredAt = s.now()
	}
	asset := Asset{
		ID:               uuid.New(),
		Name:             input.Name,
		Cost:             input.Cost,
		SalvageValue:     input.SalvageValue,
		UsefulLifeMonths: input.UsefulLifeMonths,
		AcquiredAt:       input.AcquiredAt,
		Accumulated:      decimal.Zero,
		CreatedBy:        input.CreatedBy,
	}
	if err := s.repo.Create(ctx, asset); err != nil {
		return Asset{}, err
	}
	return asset, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Asset, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListActive(ctx context.Context) ([]Asset, error) {
	return s.repo.ListActive(ctx)
}

// RunDepreciation posts one straight-line charge per active asset for the
// period (YYYY-MM). Already-charged and fully-depreciated assets are
// skipped; a failure on one asset stops the run after unwinding that
// asset's steps, leaving earlier charges posted.
func (s *Service) RunDepreciation(ctx context.Context, period string, actorID int64) (RunSummary, error) {
	if _, err := time.Parse("2006-01", period); err != nil {
		return RunSummary{}, fmt.Errorf("assets: period must be YYYY-MM: %w", err)
	}

	expense, err := s.registry.Resolve(ctx, sysaccounts.KeyDepreciationExpense)
	if err != nil {
		return RunSummary{}, err
	}
	accumulated, err := s.registry.Resolve(ctx, sysaccounts.KeyAccumulatedDepreciation)
	if err != nil {
		return RunSummary{}, err
	}

	list, err := s.repo.ListActive(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{Period: period}
	for _, asset := range list {
		amount := decimal.Min(asset.MonthlyCharge(), asset.RemainingBase())
		if !amount.IsPositive() {
			summary.Skipped++
			continue
		}
		charged, err := s.repo.HasCharge(ctx, asset.ID, period)
		if err != nil {
			return summary, err
		}
		if charged {
			summary.Skipped++
			continue
		}
		if err := s.chargeAsset(ctx, asset, period, amount, expense, accumulated, actorID); err != nil {
			return summary, fmt.Errorf("assets: depreciate %s: %w", asset.Name, err)
		}
		summary.Charged++
		summary.Total = summary.Total.Add(amount)
	}
	return summary, nil
}

func (s *Service) chargeAsset(ctx context.Context, asset Asset, period string, amount decimal.Decimal, expense, accumulated, actorID int64) error {
	charge := Charge{ID: uuid.New(), AssetID: asset.ID, Period: period, Amount: amount}

	var entry journals.JournalEntry
	flow := saga.New(s.logger,
		saga.Step{
			Name: "create-charge",
			Run: func(ctx context.Context) error {
				return s.repo.CreateCharge(ctx, charge)
			},
			Compensate: func(ctx context.Context) error {
				return s.repo.DeleteCharge(ctx, charge.ID)
			},
		},
		saga.Step{
			Name: "accumulate",
			Run: func(ctx context.Context) error {
				return s.repo.AddAccumulated(ctx, asset.ID, amount)
			},
			Compensate: func(ctx context.Context) error {
				return s.repo.SubAccumulated(ctx, asset.ID, amount)
			},
		},
		saga.Step{
			Name: "post-journal",
			Run: func(ctx context.Context) error {
				var err error
				entry, err = s.ledger.Post(ctx, journals.PostingInput{
					Date:        s.now(),
					Description: fmt.Sprintf("Depreciation %s: %s", period, asset.Name),
					Source:      &journals.SourceRef{Kind: SourceKindDepreciation, ID: charge.ID},
					CreatedBy:   actorID,
					Lines: []journals.LineInput{
						{AccountID: expense, Debit: amount, Description: "Depreciation expense"},
						{AccountID: accumulated, Credit: amount, Description: "Accumulated depreciation"},
					},
				})
				return err
			},
			Compensate: func(ctx context.Context) error {
				_, rerr := s.ledger.Reverse(ctx, journals.ReverseInput{
					EntryID: entry.ID,
					ActorID: actorID,
					Reason:  "depreciation charge unwound",
				})
				return rerr
			},
		},
		saga.Step{
			Name: "attach-journal",
			Run: func(ctx context.Context) error {
				return s.repo.SetChargeJournal(ctx, charge.ID, entry.ID)
			},
		},
	)
	return flow.Execute(ctx)
}
