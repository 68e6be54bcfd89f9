package assets

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/accounting/sysaccounts"
)

const (
	accExpense     int64 = 1
	accAccumulated int64 = 2
)

type memoryRepo struct {
	assets  map[uuid.UUID]Asset
	charges map[uuid.UUID]Charge
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{assets: make(map[uuid.UUID]Asset), charges: make(map[uuid.UUID]Charge)}
}

func (m *memoryRepo) Create(ctx context.Context, asset Asset) error {
	m.assets[asset.ID] = asset
	return nil
}

func (m *memoryRepo) Get(ctx context.Context, id uuid.UUID) (Asset, error) {
	asset, ok := m.assets[id]
	if !ok {
		return Asset{}, ErrAssetNotFound
	}
	return asset, nil
}

func (m *memoryRepo) ListActive(ctx context.Context) ([]Asset, error) {
	var out []Asset
	for _, asset := range m.assets {
		if !asset.Disposed {
			out = append(out, asset)
		}
	}
	return out, nil
}

func (m *memoryRepo) AddAccumulated(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	asset := m.assets[id]
	asset.Accumulated = asset.Accumulated.Add(amount)
	m.assets[id] = asset
	return nil
}

func (m *memoryRepo) SubAccumulated(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	asset := m.assets[id]
	asset.Accumulated = asset.Accumulated.Sub(amount)
	m.assets[id] = asset
	return nil
}

func (m *memoryRepo) CreateCharge(ctx context.Context, charge Charge) error {
	m.charges[charge.ID] = charge
	return nil
}

func (m *memoryRepo) HasCharge(ctx context.Context, assetID uuid.UUID, period string) (bool, error) {
	for _, charge := range m.charges {
		if charge.AssetID == assetID && charge.Period == period {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepo) SetChargeJournal(ctx context.Context, id uuid.UUID, journalID int64) error {
	charge := m.charges[id]
	charge.JournalID = &journalID
	m.charges[id] = charge
	return nil
}

func (m *memoryRepo) DeleteCharge(ctx context.Context, id uuid.UUID) error {
	delete(m.charges, id)
	return nil
}

type stubLedger struct {
	nextID int64
	posted []journals.PostingInput
}

func (l *stubLedger) Post(ctx context.Context, input journals.PostingInput) (journals.JournalEntry, error) {
	l.nextID++
	l.posted = append(l.posted, input)
	return journals.JournalEntry{ID: l.nextID, Status: journals.StatusPosted}, nil
}

func (l *stubLedger) Reverse(ctx context.Context, input journals.ReverseInput) (journals.JournalEntry, error) {
	l.nextID++
	return journals.JournalEntry{ID: l.nextID}, nil
}

type stubRegistry map[string]int64

func (r stubRegistry) Resolve(ctx context.Context, key string) (int64, error) {
	id, ok := r[key]
	if !ok {
		return 0, fmt.Errorf("key %s not configured", key)
	}
	return id, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService() (*Service, *memoryRepo, *stubLedger) {
	repo := newMemoryRepo()
	ledger := &stubLedger{}
	registry := stubRegistry{
		sysaccounts.KeyDepreciationExpense:     accExpense,
		sysaccounts.KeyAccumulatedDepreciation: accAccumulated,
	}
	return NewService(slog.Default(), repo, ledger, registry), repo, ledger
}

func TestMonthlyChargeIsStraightLine(t *testing.T) {
	asset := Asset{Cost: dec("12000"), SalvageValue: dec("2000"), UsefulLifeMonths: 36}
	// (12000 - 2000) / 36 = 277.777... rounds to 277.78
	require.True(t, asset.MonthlyCharge().Equal(dec("277.78")))
}

func TestRunDepreciationChargesActiveAssets(t *testing.T) {
	svc, repo, ledger := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{
		Name: "Delivery van", Cost: dec("24000"), UsefulLifeMonths: 24,
		AcquiredAt: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	summary, err := svc.RunDepreciation(ctx, "2026-08", 1)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Charged)
	require.True(t, summary.Total.Equal(dec("1000")))

	require.Len(t, ledger.posted, 1)
	lines := ledger.posted[0].Lines
	require.Equal(t, accExpense, lines[0].AccountID)
	require.True(t, lines[0].Debit.Equal(dec("1000")))
	require.Equal(t, accAccumulated, lines[1].AccountID)
	require.True(t, lines[1].Credit.Equal(dec("1000")))

	for _, asset := range repo.assets {
		require.True(t, asset.Accumulated.Equal(dec("1000")))
	}
}

func TestRunDepreciationSkipsChargedPeriod(t *testing.T) {
	svc, _, ledger := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "Laptop", Cost: dec("2400"), UsefulLifeMonths: 24})
	require.NoError(t, err)

	_, err = svc.RunDepreciation(ctx, "2026-08", 1)
	require.NoError(t, err)
	summary, err := svc.RunDepreciation(ctx, "2026-08", 1)
	require.NoError(t, err)

	require.Equal(t, 0, summary.Charged)
	require.Equal(t, 1, summary.Skipped)
	require.Len(t, ledger.posted, 1)
}

func TestRunDepreciationCapsFinalCharge(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	asset, err := svc.Register(ctx, RegisterInput{Name: "Printer", Cost: dec("100"), UsefulLifeMonths: 3})
	require.NoError(t, err)
	// Monthly 33.33; after two charges 66.66 accumulated, remaining 33.34.
	for i, period := range []string{"2026-06", "2026-07", "2026-08"} {
		summary, err := svc.RunDepreciation(ctx, period, 1)
		require.NoError(t, err)
		require.Equal(t, 1, summary.Charged, "run %d", i)
	}

	stored, err := repo.Get(ctx, asset.ID)
	require.NoError(t, err)
	require.True(t, stored.Accumulated.Equal(dec("99.99")))

	// The next run charges only the remaining cent, then nothing more.
	summary, err := svc.RunDepreciation(ctx, "2026-09", 1)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Charged)
	require.True(t, summary.Total.Equal(dec("0.01")))

	summary, err = svc.RunDepreciation(ctx, "2026-10", 1)
	require.NoError(t, err)
	require.Equal(t, 0, summary.Charged)
	require.Equal(t, 1, summary.Skipped)
}

func TestRunDepreciationRejectsBadPeriod(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.RunDepreciation(context.Background(), "August 2026", 1)
	require.Error(t, err)
}
