package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/accounting/sysaccounts"
)

const (
	accSalary int64 = 1
	accTaxes  int64 = 2
	accCash   int64 = 3
)

type memoryRepo struct {
	slips   map[uuid.UUID]Slip
	nextNum int64
}

func (m *memoryRepo) Create(ctx context.Context, slip Slip) error {
	m.slips[slip.ID] = slip
	return nil
}

func (m *memoryRepo) Get(ctx context.Context, id uuid.UUID) (Slip, error) {
	slip, ok := m.slips[id]
	if !ok {
		return Slip{}, ErrSlipNotFound
	}
	return slip, nil
}

func (m *memoryRepo) List(ctx context.Context, period string, limit int) ([]Slip, error) {
	var out []Slip
	for _, slip := range m.slips {
		if period == "" || slip.Period == period {
			out = append(out, slip)
		}
	}
	return out, nil
}

func (m *memoryRepo) SetJournal(ctx context.Context, id uuid.UUID, journalID int64) error {
	slip := m.slips[id]
	slip.JournalID = &journalID
	m.slips[id] = slip
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.slips, id)
	return nil
}

func (m *memoryRepo) NextNumber(ctx context.Context) (string, error) {
	m.nextNum++
	return fmt.Sprintf("PAY-%06d", m.nextNum), nil
}

type stubLedger struct {
	nextID   int64
	posted   []journals.PostingInput
	reversed []journals.ReverseInput
}

func (l *stubLedger) Post(ctx context.Context, input journals.PostingInput) (journals.JournalEntry, error) {
	l.nextID++
	l.posted = append(l.posted, input)
	return journals.JournalEntry{ID: l.nextID, Status: journals.StatusPosted}, nil
}

func (l *stubLedger) Reverse(ctx context.Context, input journals.ReverseInput) (journals.JournalEntry, error) {
	l.reversed = append(l.reversed, input)
	l.nextID++
	return journals.JournalEntry{ID: l.nextID}, nil
}

func (l *stubLedger) Get(ctx context.Context, id int64) (journals.JournalEntry, error) {
	return journals.JournalEntry{ID: id, Status: journals.StatusPosted}, nil
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
	repo := &memoryRepo{slips: make(map[uuid.UUID]Slip)}
	ledger := &stubLedger{}
	registry := stubRegistry{
		sysaccounts.KeySalaryExpense:     accSalary,
		sysaccounts.KeyPayrollTaxPayable: accTaxes,
		sysaccounts.KeyCashDefault:       accCash,
	}
	return NewService(slog.Default(), repo, ledger, registry), repo, ledger
}

func TestPaySlipSplitsGrossIntoTaxAndNet(t *testing.T) {
	svc, _, ledger := newTestService()

	slip, err := svc.PaySlip(context.Background(), PaySlipInput{
		EmployeeName: "Dana Smith",
		Period:       "2026-08",
		Gross:        dec("5000"),
		TaxWithheld:  dec("1200"),
		CreatedBy:    3,
	})
	require.NoError(t, err)
	require.True(t, slip.Net.Equal(dec("3800")))
	require.NotNil(t, slip.JournalID)

	require.Len(t, ledger.posted, 1)
	lines := ledger.posted[0].Lines
	require.Len(t, lines, 3)
	require.Equal(t, accSalary, lines[0].AccountID)
	require.True(t, lines[0].Debit.Equal(dec("5000")))
	require.Equal(t, accTaxes, lines[1].AccountID)
	require.True(t, lines[1].Credit.Equal(dec("1200")))
	require.Equal(t, accCash, lines[2].AccountID)
	require.True(t, lines[2].Credit.Equal(dec("3800")))
}

func TestPaySlipWithoutWithholdingSkipsTaxLine(t *testing.T) {
	svc, _, ledger := newTestService()

	_, err := svc.PaySlip(context.Background(), PaySlipInput{
		EmployeeName: "Contractor",
		Period:       "2026-08",
		Gross:        dec("1000"),
	})
	require.NoError(t, err)
	require.Len(t, ledger.posted[0].Lines, 2)
}

func TestPaySlipRejectsWithholdingAboveGross(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.PaySlip(context.Background(), PaySlipInput{
		EmployeeName: "Dana",
		Period:       "2026-08",
		Gross:        dec("100"),
		TaxWithheld:  dec("101"),
	})
	require.Error(t, err)
}

func TestDeleteSlipReversesLedgerEntry(t *testing.T) {
	svc, repo, ledger := newTestService()

	slip, err := svc.PaySlip(context.Background(), PaySlipInput{
		EmployeeName: "Dana",
		Period:       "2026-08",
		Gross:        dec("5000"),
		TaxWithheld:  dec("1000"),
		CreatedBy:    3,
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSlip(context.Background(), slip.ID, 3, "duplicate run"))
	require.Empty(t, repo.slips)
	require.Len(t, ledger.reversed, 1)
	require.Equal(t, *slip.JournalID, ledger.reversed[0].EntryID)
}
