package accounts

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/accounting/types"
)

type memoryAccountRepo struct {
	accounts    map[int64]Account
	postedLines map[int64]int
	nextID      int64
}

func newMemoryAccountRepo() *memoryAccountRepo {
	return &memoryAccountRepo{
		accounts:    make(map[int64]Account),
		postedLines: make(map[int64]int),
	}
}

func (r *memoryAccountRepo) List(ctx context.Context) ([]Account, error) {
	out := make([]Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *memoryAccountRepo) Get(ctx context.Context, id int64) (Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return Account{}, shared.ErrAccountNotFound
	}
	return a, nil
}

func (r *memoryAccountRepo) UpdateDetails(ctx context.Context, id int64, name, description string, tag *CashFlowTag) error {
	a, ok := r.accounts[id]
	if !ok {
		return shared.ErrAccountNotFound
	}
	a.Name = name
	a.Description = description
	a.CashFlowTag = tag
	r.accounts[id] = a
	return nil
}

func (r *memoryAccountRepo) SetActive(ctx context.Context, id int64, active bool) error {
	a, ok := r.accounts[id]
	if !ok {
		return shared.ErrAccountNotFound
	}
	a.IsActive = active
	r.accounts[id] = a
	return nil
}

func (r *memoryAccountRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.accounts[id]; !ok {
		return shared.ErrAccountNotFound
	}
	delete(r.accounts, id)
	return nil
}

func (r *memoryAccountRepo) CountChildren(ctx context.Context, id int64) (int, error) {
	count := 0
	for _, a := range r.accounts {
		if a.ParentID != nil && *a.ParentID == id {
			count++
		}
	}
	return count, nil
}

func (r *memoryAccountRepo) CountPostedLines(ctx context.Context, id int64) (int, error) {
	return r.postedLines[id], nil
}

func (r *memoryAccountRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryAccountTx{repo: r})
}

type memoryAccountTx struct {
	repo *memoryAccountRepo
}

func (t *memoryAccountTx) GetForUpdate(ctx context.Context, id int64) (Account, error) {
	return t.repo.Get(ctx, id)
}

func (t *memoryAccountTx) ListChildCodes(ctx context.Context, parentID *int64) ([]string, error) {
	var codes []string
	for _, a := range t.repo.accounts {
		switch {
		case parentID == nil && a.ParentID == nil:
			codes = append(codes, a.Code)
		case parentID != nil && a.ParentID != nil && *a.ParentID == *parentID:
			codes = append(codes, a.Code)
		}
	}
	return codes, nil
}

func (t *memoryAccountTx) Insert(ctx context.Context, a Account) (Account, error) {
	t.repo.nextID++
	a.ID = t.repo.nextID
	a.IsActive = true
	a.CurrentBalance = decimal.Zero
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	t.repo.accounts[a.ID] = a
	return a, nil
}

func (t *memoryAccountTx) MarkGroup(ctx context.Context, id int64) error {
	a, ok := t.repo.accounts[id]
	if !ok {
		return shared.ErrAccountNotFound
	}
	a.IsGroup = true
	t.repo.accounts[id] = a
	return nil
}

func (t *memoryAccountTx) HasPostedLines(ctx context.Context, id int64) (bool, error) {
	return t.repo.postedLines[id] > 0, nil
}

func testRegistry(t *testing.T) *types.Registry {
	t.Helper()
	reg, err := types.NewRegistry([]types.AccountType{
		{ID: 1, Category: types.CategoryAsset, NormalBalance: types.SideDebit},
		{ID: 2, Category: types.CategoryLiability, NormalBalance: types.SideCredit},
		{ID: 3, Category: types.CategoryEquity, NormalBalance: types.SideCredit},
		{ID: 4, Category: types.CategoryRevenue, NormalBalance: types.SideCredit},
		{ID: 5, Category: types.CategoryExpense, NormalBalance: types.SideDebit},
	})
	require.NoError(t, err)
	return reg
}

func newTestService(t *testing.T) (*Service, *memoryAccountRepo) {
	t.Helper()
	repo := newMemoryAccountRepo()
	return NewService(repo, testRegistry(t), ServiceConfig{}), repo
}

func asset() *types.Category {
	c := types.CategoryAsset
	return &c
}

func TestCreateAllocatesHierarchicalCodes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	root, err := svc.Create(ctx, CreateInput{Name: "Assets", Category: asset(), IsGroup: true})
	require.NoError(t, err)
	require.Equal(t, "1", root.Code)
	require.Equal(t, 1, root.Level)

	cash, err := svc.Create(ctx, CreateInput{Name: "Cash", ParentID: &root.ID})
	require.NoError(t, err)
	require.Equal(t, "11", cash.Code)
	require.Equal(t, 2, cash.Level)
	require.Equal(t, types.CategoryAsset, cash.Category)
	require.False(t, cash.IsGroup)

	bank, err := svc.Create(ctx, CreateInput{Name: "Bank", ParentID: &root.ID})
	require.NoError(t, err)
	require.Equal(t, "12", bank.Code)
}

func TestCreateRejectsMissingOrInactiveParent(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	missing := int64(42)
	_, err := svc.Create(ctx, CreateInput{Name: "Orphan", ParentID: &missing})
	require.ErrorIs(t, err, shared.ErrInvalidParent)

	root, err := svc.Create(ctx, CreateInput{Name: "Assets", Category: asset(), IsGroup: true})
	require.NoError(t, err)
	require.NoError(t, repo.SetActive(ctx, root.ID, false))

	_, err = svc.Create(ctx, CreateInput{Name: "Cash", ParentID: &root.ID})
	require.ErrorIs(t, err, shared.ErrInvalidParent)
}

func TestCreateRejectsConflictingCategory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	root, err := svc.Create(ctx, CreateInput{Name: "Assets", Category: asset(), IsGroup: true})
	require.NoError(t, err)

	revenue := types.CategoryRevenue
	_, err = svc.Create(ctx, CreateInput{Name: "Sales", ParentID: &root.ID, Category: &revenue})
	require.ErrorIs(t, err, shared.ErrTypeMismatch)
}

func TestCreatePromotesCleanLeafToGroup(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	root, err := svc.Create(ctx, CreateInput{Name: "Assets", Category: asset(), IsGroup: true})
	require.NoError(t, err)
	leaf, err := svc.Create(ctx, CreateInput{Name: "Cash", ParentID: &root.ID})
	require.NoError(t, err)

	child, err := svc.Create(ctx, CreateInput{Name: "Petty Cash", ParentID: &leaf.ID})
	require.NoError(t, err)
	require.Equal(t, leaf.Code+"1", child.Code)

	promoted, err := repo.Get(ctx, leaf.ID)
	require.NoError(t, err)
	require.True(t, promoted.IsGroup)
}

func TestCreateRefusesPromotingLeafWithHistory(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	root, err := svc.Create(ctx, CreateInput{Name: "Assets", Category: asset(), IsGroup: true})
	require.NoError(t, err)
	leaf, err := svc.Create(ctx, CreateInput{Name: "Cash", ParentID: &root.ID})
	require.NoError(t, err)
	repo.postedLines[leaf.ID] = 3

	_, err = svc.Create(ctx, CreateInput{Name: "Petty Cash", ParentID: &leaf.ID})
	require.ErrorIs(t, err, shared.ErrInvalidParent)
}

func TestUpdateRejectsStructuralFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	root, err := svc.Create(ctx, CreateInput{Name: "Assets", Category: asset(), IsGroup: true})
	require.NoError(t, err)

	newCode := "9"
	_, err = svc.Update(ctx, root.ID, UpdateInput{Code: &newCode})
	require.ErrorIs(t, err, shared.ErrImmutableField)

	parent := int64(7)
	_, err = svc.Update(ctx, root.ID, UpdateInput{ParentID: &parent})
	require.ErrorIs(t, err, shared.ErrImmutableField)

	name := "Current Assets"
	updated, err := svc.Update(ctx, root.ID, UpdateInput{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Current Assets", updated.Name)
	require.Equal(t, root.Code, updated.Code)
}

func TestDeleteGuards(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	root, err := svc.Create(ctx, CreateInput{Name: "Assets", Category: asset(), IsGroup: true})
	require.NoError(t, err)
	cash, err := svc.Create(ctx, CreateInput{Name: "Cash", ParentID: &root.ID})
	require.NoError(t, err)

	// Scenario: deleting the group while Cash is a child fails, and keeps
	// failing until the child itself is gone.
	require.ErrorIs(t, svc.Delete(ctx, root.ID), shared.ErrHasChildren)

	repo.postedLines[cash.ID] = 1
	require.ErrorIs(t, svc.Delete(ctx, cash.ID), shared.ErrHasHistory)

	repo.postedLines[cash.ID] = 0
	require.NoError(t, svc.Delete(ctx, cash.ID))
	require.NoError(t, svc.Delete(ctx, root.ID))
}

func TestDeactivateFlipsFlagOnly(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	root, err := svc.Create(ctx, CreateInput{Name: "Assets", Category: asset(), IsGroup: true})
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(ctx, root.ID, false))

	got, err := repo.Get(ctx, root.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
	require.True(t, got.CurrentBalance.IsZero())
}
