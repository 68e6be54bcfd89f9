package reports

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/types"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func acct(id int64, code string, parent *int64, category types.Category, group bool, balance string) accounts.Account {
	return accounts.Account{
		ID: id, Code: code, Name: "Account " + code, ParentID: parent,
		Category: category, IsGroup: group, IsActive: true,
		CurrentBalance: dec(balance),
	}
}

func ptr(v int64) *int64 { return &v }

func TestBuildTreeRollsLeafBalancesIntoGroups(t *testing.T) {
	// Assets (1) > Current Assets (11) > Cash (111), Bank (112)
	//           > Fixed Assets (12, leaf)
	list := []accounts.Account{
		acct(1, "1", nil, types.CategoryAsset, true, "999"), // stored group balance is ignored
		acct(2, "11", ptr(1), types.CategoryAsset, true, "0"),
		acct(3, "111", ptr(2), types.CategoryAsset, false, "500.25"),
		acct(4, "112", ptr(2), types.CategoryAsset, false, "249.75"),
		acct(5, "12", ptr(1), types.CategoryAsset, false, "1000"),
	}
	roots := BuildTree(list)
	require.Len(t, roots, 1)

	root := roots[0]
	require.Equal(t, "1", root.Account.Code)
	require.True(t, root.Balance.Equal(dec("1750")))

	current := Find(roots, 2)
	require.NotNil(t, current)
	require.True(t, current.Balance.Equal(dec("750")))

	// Children sorted by code.
	require.Equal(t, "11", root.Children[0].Account.Code)
	require.Equal(t, "12", root.Children[1].Account.Code)
}

func TestBuildTreeKeepsOrphansVisible(t *testing.T) {
	list := []accounts.Account{
		acct(1, "11", ptr(99), types.CategoryAsset, false, "10"),
	}
	roots := BuildTree(list)
	require.Len(t, roots, 1)
	require.True(t, roots[0].Balance.Equal(dec("10")))
}

func TestBuildDashboardBalances(t *testing.T) {
	// A tiny ledger after one sale: cash 118, revenue 100, tax payable 18.
	list := []accounts.Account{
		acct(1, "1", nil, types.CategoryAsset, true, "0"),
		acct(2, "11", ptr(1), types.CategoryAsset, false, "118"),
		acct(3, "2", nil, types.CategoryLiability, true, "0"),
		acct(4, "21", ptr(3), types.CategoryLiability, false, "18"),
		acct(5, "3", nil, types.CategoryEquity, false, "0"),
		acct(6, "4", nil, types.CategoryRevenue, false, "100"),
		acct(7, "5", nil, types.CategoryExpense, false, "0"),
	}
	d := BuildDashboard(BuildTree(list))

	require.True(t, d.TotalAssets.Equal(dec("118")))
	require.True(t, d.TotalLiabilities.Equal(dec("18")))
	require.True(t, d.TotalEquity.IsZero())
	require.True(t, d.NetIncome.Equal(dec("100")))
	require.True(t, d.BalanceCheck)
	require.True(t, d.BalanceResidual.IsZero())

	require.Len(t, d.SubTotals, 5)
	require.Equal(t, "1", d.SubTotals[0].Code)
	require.True(t, d.SubTotals[0].Balance.Equal(dec("118")))
}

func TestBuildDashboardFlagsBrokenEquation(t *testing.T) {
	list := []accounts.Account{
		acct(1, "11", nil, types.CategoryAsset, false, "100"),
		acct(2, "41", nil, types.CategoryRevenue, false, "99"),
	}
	d := BuildDashboard(BuildTree(list))
	require.False(t, d.BalanceCheck)
	// Assets 100 against net income 99: off by exactly 1.
	require.True(t, d.BalanceResidual.Equal(dec("1")))
}

func TestBuildTrialBalanceGroupsByTopLevelCode(t *testing.T) {
	rows := []AccountBalance{
		{Code: "111", Name: "Cash", Category: "ASSET", Opening: dec("50"), Debit: dec("200"), Credit: dec("30")},
		{Code: "112", Name: "Bank", Category: "ASSET", Debit: dec("80")},
		{Code: "411", Name: "Sales", Category: "REVENUE", Credit: dec("250")},
	}
	tb := BuildTrialBalance(rows)

	require.Len(t, tb.Groups, 2)
	require.Equal(t, "1", tb.Groups[0].Key)
	require.Equal(t, "4", tb.Groups[1].Key)

	assets := tb.Groups[0]
	require.Len(t, assets.Accounts, 2)
	require.True(t, assets.Debit.Equal(dec("280")))
	require.True(t, assets.Closing.Equal(dec("300")))

	require.True(t, tb.TotalOpening.Equal(dec("50")))
	require.True(t, tb.TotalDebit.Equal(dec("280")))
	require.True(t, tb.TotalCredit.Equal(dec("280")))
	require.True(t, tb.Balanced())
}

func TestBuildTrialBalanceDetectsImbalance(t *testing.T) {
	tb := BuildTrialBalance([]AccountBalance{
		{Code: "111", Name: "Cash", Debit: dec("100")},
	})
	require.False(t, tb.Balanced())
}
