package journals

import (
	"context"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/accounting/types"
	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

const (
	accCash     int64 = 1
	accBank     int64 = 2
	accSales    int64 = 3
	accOther    int64 = 4
	accRent     int64 = 5
	accGroup    int64 = 6
	accInactive int64 = 7
)

type memoryLedger struct {
	mu       sync.Mutex
	accounts map[int64]accounts.Account
	entries  map[int64]JournalEntry
	lines    map[int64][]Line
	links    map[string]int64

	nextEntryID int64
	nextNumber  int64

	// lockFailures injects serialization failures into LockAccounts.
	lockFailures int
}

func newMemoryLedger() *memoryLedger {
	m := &memoryLedger{
		accounts: make(map[int64]accounts.Account),
		entries:  make(map[int64]JournalEntry),
		lines:    make(map[int64][]Line),
		links:    make(map[string]int64),
	}
	add := func(id int64, code string, category types.Category, group, active bool) {
		m.accounts[id] = accounts.Account{
			ID: id, Code: code, Name: code, Category: category,
			IsGroup: group, IsActive: active, Currency: "USD",
			CurrentBalance: decimal.Zero,
		}
	}
	add(accCash, "11", types.CategoryAsset, false, true)
	add(accBank, "12", types.CategoryAsset, false, true)
	add(accSales, "41", types.CategoryRevenue, false, true)
	add(accOther, "42", types.CategoryRevenue, false, true)
	add(accRent, "51", types.CategoryExpense, false, true)
	add(accGroup, "1", types.CategoryAsset, true, true)
	add(accInactive, "13", types.CategoryAsset, false, false)
	return m
}

func (m *memoryLedger) balance(id int64) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].CurrentBalance
}

func (m *memoryLedger) Get(ctx context.Context, id int64) (JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	entry.Lines = append([]Line(nil), m.lines[id]...)
	return entry, nil
}

func (m *memoryLedger) List(ctx context.Context, filter ListFilter) ([]JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []JournalEntry
	for _, entry := range m.entries {
		if filter.Status != "" && entry.Status != filter.Status {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// WithTx serializes transactions under one mutex and restores a snapshot
// of all state when fn fails, mimicking a rollback.
func (m *memoryLedger) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapAccounts := maps.Clone(m.accounts)
	snapEntries := maps.Clone(m.entries)
	snapLines := maps.Clone(m.lines)
	snapLinks := maps.Clone(m.links)
	snapID, snapNumber := m.nextEntryID, m.nextNumber
	if err := fn(ctx, (*memoryTx)(m)); err != nil {
		m.accounts = snapAccounts
		m.entries = snapEntries
		m.lines = snapLines
		m.links = snapLinks
		m.nextEntryID, m.nextNumber = snapID, snapNumber
		return err
	}
	return nil
}

type memoryTx memoryLedger

func (t *memoryTx) LockAccounts(ctx context.Context, ids []int64) ([]accounts.Account, error) {
	if t.lockFailures > 0 {
		t.lockFailures--
		return nil, &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	}
	var out []accounts.Account
	for _, id := range ids {
		if a, ok := t.accounts[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (t *memoryTx) ApplyDelta(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	a, ok := t.accounts[accountID]
	if !ok {
		return shared.ErrAccountNotFound
	}
	a.CurrentBalance = a.CurrentBalance.Add(delta)
	t.accounts[accountID] = a
	return nil
}

func (t *memoryTx) InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	t.nextEntryID++
	t.nextNumber++
	entry.ID = t.nextEntryID
	entry.Number = t.nextNumber
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt
	t.entries[entry.ID] = entry
	return entry, nil
}

func (t *memoryTx) InsertLines(ctx context.Context, entryID int64, lines []Line) error {
	t.lines[entryID] = append(t.lines[entryID], lines...)
	return nil
}

func (t *memoryTx) ReplaceLines(ctx context.Context, entryID int64, lines []Line) error {
	t.lines[entryID] = append([]Line(nil), lines...)
	return nil
}

func (t *memoryTx) LinkSource(ctx context.Context, ref SourceRef, entryID int64) error {
	key := ref.String()
	if _, exists := t.links[key]; exists {
		return shared.ErrSourceAlreadyLinked
	}
	t.links[key] = entryID
	return nil
}

func (t *memoryTx) GetForUpdate(ctx context.Context, id int64) (JournalEntry, error) {
	entry, ok := t.entries[id]
	if !ok {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	entry.Lines = append([]Line(nil), t.lines[id]...)
	return entry, nil
}

func (t *memoryTx) MarkPosted(ctx context.Context, id int64, totalDebit, totalCredit decimal.Decimal, postedAt time.Time) error {
	entry, ok := t.entries[id]
	if !ok {
		return shared.ErrJournalNotFound
	}
	entry.Status = StatusPosted
	entry.TotalDebit = totalDebit
	entry.TotalCredit = totalCredit
	entry.PostedAt = &postedAt
	t.entries[id] = entry
	return nil
}

func (t *memoryTx) UpdateStatus(ctx context.Context, id int64, status Status) error {
	entry, ok := t.entries[id]
	if !ok {
		return shared.ErrJournalNotFound
	}
	entry.Status = status
	t.entries[id] = entry
	return nil
}

func (t *memoryTx) MarkReversed(ctx context.Context, originalID, reversalID int64) error {
	entry, ok := t.entries[originalID]
	if !ok {
		return shared.ErrJournalNotFound
	}
	entry.ReversedBy = &reversalID
	t.entries[originalID] = entry
	return nil
}

func (t *memoryTx) UpdateDraftHeader(ctx context.Context, id int64, date time.Time, description string, totalDebit, totalCredit decimal.Decimal) error {
	entry, ok := t.entries[id]
	if !ok {
		return shared.ErrJournalNotFound
	}
	entry.Date = date
	entry.Description = description
	entry.TotalDebit = totalDebit
	entry.TotalCredit = totalCredit
	t.entries[id] = entry
	return nil
}

func (t *memoryTx) DeleteEntry(ctx context.Context, id int64) error {
	if _, ok := t.entries[id]; !ok {
		return shared.ErrJournalNotFound
	}
	delete(t.entries, id)
	delete(t.lines, id)
	return nil
}

type memoryAudit struct {
	mu      sync.Mutex
	records []internalShared.AuditLog
}

func (a *memoryAudit) Record(ctx context.Context, log internalShared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, log)
	return nil
}

const kindTest SourceKind = "TEST_DOC"

func newTestJournal(t *testing.T) (*Service, *memoryLedger, *memoryAudit) {
	t.Helper()
	reg, err := types.NewRegistry([]types.AccountType{
		{ID: 1, Category: types.CategoryAsset, NormalBalance: types.SideDebit},
		{ID: 2, Category: types.CategoryLiability, NormalBalance: types.SideCredit},
		{ID: 3, Category: types.CategoryEquity, NormalBalance: types.SideCredit},
		{ID: 4, Category: types.CategoryRevenue, NormalBalance: types.SideCredit},
		{ID: 5, Category: types.CategoryExpense, NormalBalance: types.SideDebit},
	})
	require.NoError(t, err)
	repo := newMemoryLedger()
	audit := &memoryAudit{}
	return NewService(repo, reg, NewKindSet(kindTest), audit), repo, audit
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func simpleInput(debitAccount, creditAccount int64, amount string) PostingInput {
	return PostingInput{
		Date:        time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Description: "test entry",
		CreatedBy:   9,
		Currency:    "USD",
		Lines: []LineInput{
			{AccountID: debitAccount, Debit: dec(amount), Currency: "USD"},
			{AccountID: creditAccount, Credit: dec(amount), Currency: "USD"},
		},
	}
}

func TestPostMovesBalancesOnNormalSides(t *testing.T) {
	svc, repo, audit := newTestJournal(t)
	ctx := context.Background()

	entry, err := svc.Post(ctx, simpleInput(accCash, accSales, "500"))
	require.NoError(t, err)
	require.Equal(t, StatusPosted, entry.Status)
	require.NotNil(t, entry.PostedAt)
	require.True(t, entry.TotalDebit.Equal(dec("500")))
	require.True(t, entry.TotalDebit.Equal(entry.TotalCredit))
	require.Equal(t, "JE-000001", entry.EntryNumber())

	// Both stored balances grow: each account moved on its own normal side.
	require.True(t, repo.balance(accCash).Equal(dec("500")))
	require.True(t, repo.balance(accSales).Equal(dec("500")))

	require.Len(t, audit.records, 1)
	require.Equal(t, "journal.post", audit.records[0].Action)
}

func TestPostRejectsSingleLine(t *testing.T) {
	svc, _, _ := newTestJournal(t)
	_, err := svc.Post(context.Background(), PostingInput{
		Date:  time.Now(),
		Lines: []LineInput{{AccountID: accCash, Debit: dec("100")}},
	})
	require.ErrorIs(t, err, shared.ErrEmptyEntry)
}

func TestPostRejectsHalfMinorUnitImbalance(t *testing.T) {
	svc, repo, _ := newTestJournal(t)
	input := PostingInput{
		Date:     time.Now(),
		Currency: "USD",
		Lines: []LineInput{
			{AccountID: accCash, Debit: dec("100.00")},
			{AccountID: accSales, Credit: dec("100.005")},
		},
	}
	_, err := svc.Post(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrUnbalancedEntry)
	require.True(t, repo.balance(accCash).IsZero())

	// Sub-tolerance dust is absorbed by minor-unit rounding.
	input.Lines[1].Credit = dec("100.004")
	_, err = svc.Post(context.Background(), input)
	require.NoError(t, err)
	require.True(t, repo.balance(accCash).Equal(dec("100.00")))
}

func TestPostRejectsLineWithBothSides(t *testing.T) {
	svc, _, _ := newTestJournal(t)
	_, err := svc.Post(context.Background(), PostingInput{
		Date:     time.Now(),
		Currency: "USD",
		Lines: []LineInput{
			{AccountID: accCash, Debit: dec("50"), Credit: dec("50")},
			{AccountID: accSales, Credit: dec("0")},
		},
	})
	require.ErrorIs(t, err, shared.ErrUnbalancedEntry)
}

func TestPostRejectsNonPostableAccounts(t *testing.T) {
	svc, repo, _ := newTestJournal(t)
	ctx := context.Background()

	for _, account := range []int64{accGroup, accInactive, 99} {
		_, err := svc.Post(ctx, simpleInput(account, accSales, "100"))
		require.ErrorIs(t, err, shared.ErrInvalidAccount, "account %d", account)
	}
	// Nothing moved on any failure.
	require.True(t, repo.balance(accSales).IsZero())
}

func TestPostRequiresRegisteredSourceKind(t *testing.T) {
	svc, _, _ := newTestJournal(t)
	ctx := context.Background()

	input := simpleInput(accCash, accSales, "100")
	input.Source = &SourceRef{Kind: "MADE_UP", ID: uuid.New()}
	_, err := svc.Post(ctx, input)
	require.ErrorIs(t, err, shared.ErrUnknownSourceKind)

	input.Source = &SourceRef{Kind: kindTest, ID: uuid.New()}
	_, err = svc.Post(ctx, input)
	require.NoError(t, err)
}

func TestPostRejectsDuplicateSourceLink(t *testing.T) {
	svc, repo, _ := newTestJournal(t)
	ctx := context.Background()

	ref := &SourceRef{Kind: kindTest, ID: uuid.New()}
	input := simpleInput(accCash, accSales, "100")
	input.Source = ref
	_, err := svc.Post(ctx, input)
	require.NoError(t, err)

	second := simpleInput(accCash, accOther, "40")
	second.Source = ref
	_, err = svc.Post(ctx, second)
	require.ErrorIs(t, err, shared.ErrSourceAlreadyLinked)

	// The rejected post left no trace: balance only reflects the first.
	require.True(t, repo.balance(accCash).Equal(dec("100")))
}

func TestReverseRestoresBalancesExactly(t *testing.T) {
	svc, repo, _ := newTestJournal(t)
	ctx := context.Background()

	before := repo.balance(accCash)

	entry, err := svc.Post(ctx, PostingInput{
		Date:     time.Now(),
		Currency: "USD",
		Lines: []LineInput{
			{AccountID: accCash, Debit: dec("123.45")},
			{AccountID: accRent, Debit: dec("76.55")},
			{AccountID: accSales, Credit: dec("200.00")},
		},
	})
	require.NoError(t, err)
	require.True(t, repo.balance(accCash).Equal(dec("123.45")))

	reversal, err := svc.Reverse(ctx, ReverseInput{EntryID: entry.ID, ActorID: 9, Reason: "posted against wrong period"})
	require.NoError(t, err)
	require.NotNil(t, reversal.Reverses)
	require.Equal(t, entry.ID, *reversal.Reverses)

	require.True(t, repo.balance(accCash).Equal(before))
	require.True(t, repo.balance(accRent).IsZero())
	require.True(t, repo.balance(accSales).IsZero())

	original, err := svc.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, original.Status)
	require.NotNil(t, original.ReversedBy)
	require.Equal(t, reversal.ID, *original.ReversedBy)
}

func TestReverseIsNotIdempotentButSafe(t *testing.T) {
	svc, repo, _ := newTestJournal(t)
	ctx := context.Background()

	entry, err := svc.Post(ctx, simpleInput(accCash, accSales, "100"))
	require.NoError(t, err)

	_, err = svc.Reverse(ctx, ReverseInput{EntryID: entry.ID, ActorID: 1, Reason: "dup"})
	require.NoError(t, err)

	_, err = svc.Reverse(ctx, ReverseInput{EntryID: entry.ID, ActorID: 1, Reason: "dup"})
	require.ErrorIs(t, err, shared.ErrAlreadyReversed)

	// The inverse delta was not applied twice.
	require.True(t, repo.balance(accCash).IsZero())
}

func TestReverseRequiresPostedEntryAndAuditInputs(t *testing.T) {
	svc, _, audit := newTestJournal(t)
	ctx := context.Background()

	draft, err := svc.SaveDraft(ctx, simpleInput(accCash, accSales, "100"))
	require.NoError(t, err)

	_, err = svc.Reverse(ctx, ReverseInput{EntryID: draft.ID, ActorID: 1, Reason: "x"})
	require.ErrorIs(t, err, shared.ErrNotPosted)

	posted, err := svc.Post(ctx, simpleInput(accCash, accSales, "100"))
	require.NoError(t, err)

	_, err = svc.Reverse(ctx, ReverseInput{EntryID: posted.ID, ActorID: 1})
	require.Error(t, err)
	_, err = svc.Reverse(ctx, ReverseInput{EntryID: posted.ID, Reason: "no actor"})
	require.Error(t, err)

	_, err = svc.Reverse(ctx, ReverseInput{EntryID: posted.ID, ActorID: 7, Reason: "audited"})
	require.NoError(t, err)
	last := audit.records[len(audit.records)-1]
	require.Equal(t, "journal.reverse", last.Action)
	require.Equal(t, int64(7), last.ActorID)
	require.Equal(t, "audited", last.Meta["reason"])
}

func TestDraftLifecycleNeverTouchesBalances(t *testing.T) {
	svc, repo, _ := newTestJournal(t)
	ctx := context.Background()

	// An unbalanced draft is fine: balance checks run at posting time.
	draft, err := svc.SaveDraft(ctx, PostingInput{
		Date:     time.Now(),
		Currency: "USD",
		Lines: []LineInput{
			{AccountID: accCash, Debit: dec("100")},
			{AccountID: accSales, Credit: dec("60")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, draft.Status)
	require.True(t, repo.balance(accCash).IsZero())

	// Posting the unbalanced draft fails.
	_, err = svc.PostDraft(ctx, draft.ID, 9)
	require.ErrorIs(t, err, shared.ErrUnbalancedEntry)

	// Fix the draft, then post it in place.
	updated, err := svc.UpdateDraft(ctx, draft.ID, PostingInput{
		Description: "fixed",
		Currency:    "USD",
		Lines: []LineInput{
			{AccountID: accCash, Debit: dec("100")},
			{AccountID: accSales, Credit: dec("100")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, draft.ID, updated.ID)

	posted, err := svc.PostDraft(ctx, draft.ID, 9)
	require.NoError(t, err)
	require.Equal(t, draft.ID, posted.ID)
	require.Equal(t, StatusPosted, posted.Status)
	require.True(t, repo.balance(accCash).Equal(dec("100")))

	// Posted entries are no longer drafts.
	_, err = svc.UpdateDraft(ctx, draft.ID, PostingInput{Currency: "USD"})
	require.ErrorIs(t, err, shared.ErrNotDraft)
	require.ErrorIs(t, svc.DiscardDraft(ctx, draft.ID), shared.ErrNotDraft)
}

func TestUpdateDraftRecomputesStoredTotals(t *testing.T) {
	svc, _, _ := newTestJournal(t)
	ctx := context.Background()

	draft, err := svc.SaveDraft(ctx, simpleInput(accCash, accSales, "60"))
	require.NoError(t, err)
	require.True(t, draft.TotalDebit.Equal(dec("60")))

	updated, err := svc.UpdateDraft(ctx, draft.ID, PostingInput{
		Description: "regraded",
		Currency:    "USD",
		Lines: []LineInput{
			{AccountID: accCash, Debit: dec("150")},
			{AccountID: accSales, Credit: dec("150")},
		},
	})
	require.NoError(t, err)
	require.True(t, updated.TotalDebit.Equal(dec("150")))
	require.True(t, updated.TotalCredit.Equal(dec("150")))

	// The stored header must agree with the replaced lines, not the
	// totals captured at save time.
	stored, err := svc.Get(ctx, draft.ID)
	require.NoError(t, err)
	require.True(t, stored.TotalDebit.Equal(dec("150")))
	require.True(t, stored.TotalCredit.Equal(dec("150")))
}

func TestDiscardDraftDeletes(t *testing.T) {
	svc, _, _ := newTestJournal(t)
	ctx := context.Background()

	draft, err := svc.SaveDraft(ctx, simpleInput(accCash, accSales, "10"))
	require.NoError(t, err)
	require.NoError(t, svc.DiscardDraft(ctx, draft.ID))

	_, err = svc.Get(ctx, draft.ID)
	require.ErrorIs(t, err, shared.ErrJournalNotFound)
}

func TestArchiveIsTerminal(t *testing.T) {
	svc, repo, _ := newTestJournal(t)
	ctx := context.Background()

	entry, err := svc.Post(ctx, simpleInput(accCash, accSales, "100"))
	require.NoError(t, err)
	require.NoError(t, svc.Archive(ctx, entry.ID, 1))

	_, err = svc.Reverse(ctx, ReverseInput{EntryID: entry.ID, ActorID: 1, Reason: "too late"})
	require.ErrorIs(t, err, shared.ErrAlreadyReversed)
	require.True(t, repo.balance(accCash).Equal(dec("100")))
}

func TestPostRetriesSerializationFailures(t *testing.T) {
	svc, repo, _ := newTestJournal(t)
	ctx := context.Background()

	repo.lockFailures = 2
	_, err := svc.Post(ctx, simpleInput(accCash, accSales, "100"))
	require.NoError(t, err)
	require.True(t, repo.balance(accCash).Equal(dec("100")))

	repo.lockFailures = postRetries
	_, err = svc.Post(ctx, simpleInput(accCash, accSales, "100"))
	require.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	require.True(t, repo.balance(accCash).Equal(dec("100")))
}

func TestConcurrentPostsDoNotLoseUpdates(t *testing.T) {
	svc, repo, _ := newTestJournal(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, credit := range []int64{accSales, accOther} {
		wg.Add(1)
		go func(credit int64) {
			defer wg.Done()
			_, err := svc.Post(ctx, simpleInput(accCash, credit, "100"))
			require.NoError(t, err)
		}(credit)
	}
	wg.Wait()

	require.True(t, repo.balance(accCash).Equal(dec("200")))
}

func TestPostedTotalsAlwaysEqual(t *testing.T) {
	svc, _, _ := newTestJournal(t)
	ctx := context.Background()

	inputs := []PostingInput{
		simpleInput(accCash, accSales, "0.01"),
		simpleInput(accBank, accOther, "99999.99"),
		{
			Date:     time.Now(),
			Currency: "USD",
			Lines: []LineInput{
				{AccountID: accCash, Debit: dec("33.34")},
				{AccountID: accBank, Debit: dec("66.66")},
				{AccountID: accSales, Credit: dec("100.00")},
			},
		},
	}
	for _, input := range inputs {
		entry, err := svc.Post(ctx, input)
		require.NoError(t, err)
		require.True(t, entry.TotalDebit.Equal(entry.TotalCredit))

		var sumDebit, sumCredit decimal.Decimal
		for _, line := range entry.Lines {
			sumDebit = sumDebit.Add(line.Debit)
			sumCredit = sumCredit.Add(line.Credit)
		}
		require.True(t, entry.TotalDebit.Equal(sumDebit))
		require.True(t, entry.TotalCredit.Equal(sumCredit))
	}
}
