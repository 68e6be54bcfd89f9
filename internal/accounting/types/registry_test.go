package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func builtinTypes() []AccountType {
	return []AccountType{
		{ID: 1, Category: CategoryAsset, NormalBalance: SideDebit},
		{ID: 2, Category: CategoryLiability, NormalBalance: SideCredit},
		{ID: 3, Category: CategoryEquity, NormalBalance: SideCredit},
		{ID: 4, Category: CategoryRevenue, NormalBalance: SideCredit},
		{ID: 5, Category: CategoryExpense, NormalBalance: SideDebit},
	}
}

func TestNewRegistryRejectsWrongSide(t *testing.T) {
	_, err := NewRegistry([]AccountType{
		{ID: 1, Category: CategoryAsset, NormalBalance: SideCredit},
	})
	require.Error(t, err)
}

func TestNewRegistryRejectsDuplicateCategory(t *testing.T) {
	_, err := NewRegistry([]AccountType{
		{ID: 1, Category: CategoryAsset, NormalBalance: SideDebit},
		{ID: 2, Category: CategoryAsset, NormalBalance: SideDebit},
	})
	require.Error(t, err)
}

func TestDeltaKeepsBalancesNaturallyPositive(t *testing.T) {
	reg, err := NewRegistry(builtinTypes())
	require.NoError(t, err)

	hundred := decimal.NewFromInt(100)

	// Debiting an asset grows it, crediting shrinks it.
	require.True(t, reg.Delta(CategoryAsset, hundred, decimal.Zero).Equal(hundred))
	require.True(t, reg.Delta(CategoryAsset, decimal.Zero, hundred).Equal(hundred.Neg()))

	// Crediting revenue grows it.
	require.True(t, reg.Delta(CategoryRevenue, decimal.Zero, hundred).Equal(hundred))
	require.True(t, reg.Delta(CategoryRevenue, hundred, decimal.Zero).Equal(hundred.Neg()))

	// Liability and equity follow the credit side.
	require.True(t, reg.Delta(CategoryLiability, decimal.Zero, hundred).Equal(hundred))
	require.True(t, reg.Delta(CategoryEquity, decimal.Zero, hundred).Equal(hundred))

	// Expenses follow the debit side.
	require.True(t, reg.Delta(CategoryExpense, hundred, decimal.Zero).Equal(hundred))
}

func TestByCategoryAndByID(t *testing.T) {
	reg, err := NewRegistry(builtinTypes())
	require.NoError(t, err)

	byCat, ok := reg.ByCategory(CategoryExpense)
	require.True(t, ok)
	require.Equal(t, int64(5), byCat.ID)

	byID, ok := reg.ByID(4)
	require.True(t, ok)
	require.Equal(t, CategoryRevenue, byID.Category)

	_, ok = reg.ByID(99)
	require.False(t, ok)
}
