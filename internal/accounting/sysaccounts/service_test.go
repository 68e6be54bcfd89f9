package sysaccounts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

type memoryRegistry struct {
	entries map[string]SystemAccount
}

func (r *memoryRegistry) Get(ctx context.Context, key string) (SystemAccount, error) {
	entry, ok := r.entries[key]
	if !ok {
		return SystemAccount{}, shared.ErrSystemAccountNotConfigured
	}
	return entry, nil
}

func (r *memoryRegistry) Set(ctx context.Context, key string, accountID int64) error {
	r.entries[key] = SystemAccount{Key: key, AccountID: accountID, UpdatedAt: time.Now()}
	return nil
}

func (r *memoryRegistry) List(ctx context.Context) ([]SystemAccount, error) {
	out := make([]SystemAccount, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry)
	}
	return out, nil
}

type stubAccounts struct {
	byID map[int64]accounts.Account
}

func (s *stubAccounts) Get(ctx context.Context, id int64) (accounts.Account, error) {
	a, ok := s.byID[id]
	if !ok {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	return a, nil
}

func TestResolveUnconfiguredKey(t *testing.T) {
	svc := NewService(&memoryRegistry{entries: map[string]SystemAccount{}}, &stubAccounts{})

	_, err := svc.Resolve(context.Background(), KeyCashDefault)
	require.ErrorIs(t, err, shared.ErrSystemAccountNotConfigured)
}

func TestAssignRequiresPostableLeaf(t *testing.T) {
	reader := &stubAccounts{byID: map[int64]accounts.Account{
		1: {ID: 1, Code: "1", IsGroup: true, IsActive: true},
		2: {ID: 2, Code: "11", IsGroup: false, IsActive: true},
		3: {ID: 3, Code: "12", IsGroup: false, IsActive: false},
	}}
	svc := NewService(&memoryRegistry{entries: map[string]SystemAccount{}}, reader)
	ctx := context.Background()

	require.Error(t, svc.Assign(ctx, KeyCashDefault, 1))
	require.Error(t, svc.Assign(ctx, KeyCashDefault, 3))
	require.NoError(t, svc.Assign(ctx, KeyCashDefault, 2))

	id, err := svc.Resolve(ctx, KeyCashDefault)
	require.NoError(t, err)
	require.Equal(t, int64(2), id)
}
