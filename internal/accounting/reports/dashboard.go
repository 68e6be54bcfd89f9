package reports

import (
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/types"
)

// SubTotal is a per-root aggregate, keyed by the root account's code.
type SubTotal struct {
	Code    string
	Name    string
	Balance decimal.Decimal
}

// Dashboard carries the headline figures. Balances are stored positive on
// each account's normal side, so category totals are direct sums.
type Dashboard struct {
	TotalAssets      decimal.Decimal
	TotalLiabilities decimal.Decimal
	TotalEquity      decimal.Decimal
	TotalRevenue     decimal.Decimal
	TotalExpenses    decimal.Decimal
	NetIncome        decimal.Decimal
	// BalanceResidual is assets minus liabilities, equity and retained
	// (unclosed) net income. BalanceCheck holds when the residual is zero;
	// the amount itself shows how far a broken equation is off.
	BalanceResidual decimal.Decimal
	BalanceCheck    bool
	SubTotals       []SubTotal
}

// BuildDashboard aggregates the rolled-up forest into category totals.
func BuildDashboard(roots []*Node) Dashboard {
	d := Dashboard{}
	for _, root := range roots {
		d.SubTotals = append(d.SubTotals, SubTotal{
			Code:    root.Account.Code,
			Name:    root.Account.Name,
			Balance: root.Balance,
		})
		addCategory(&d, root)
	}
	d.NetIncome = d.TotalRevenue.Sub(d.TotalExpenses)
	d.BalanceResidual = d.TotalAssets.Sub(d.TotalLiabilities.Add(d.TotalEquity).Add(d.NetIncome))
	d.BalanceCheck = d.BalanceResidual.IsZero()
	return d
}

// addCategory descends until it can attribute balances to a category.
// Mixed-category subtrees should not exist, but a root without one still
// contributes through its typed descendants.
func addCategory(d *Dashboard, node *Node) {
	switch node.Account.Category {
	case types.CategoryAsset:
		d.TotalAssets = d.TotalAssets.Add(node.Balance)
	case types.CategoryLiability:
		d.TotalLiabilities = d.TotalLiabilities.Add(node.Balance)
	case types.CategoryEquity:
		d.TotalEquity = d.TotalEquity.Add(node.Balance)
	case types.CategoryRevenue:
		d.TotalRevenue = d.TotalRevenue.Add(node.Balance)
	case types.CategoryExpense:
		d.TotalExpenses = d.TotalExpenses.Add(node.Balance)
	default:
		for _, child := range node.Children {
			addCategory(d, child)
		}
	}
}
