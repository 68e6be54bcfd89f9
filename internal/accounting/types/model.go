// Package types holds the account type reference data and the signed
// balance convention used by the posting engine and the reports.
package types

// Category enumerates chart-of-accounts categories.
type Category string

const (
	CategoryAsset     Category = "ASSET"
	CategoryLiability Category = "LIABILITY"
	CategoryEquity    Category = "EQUITY"
	CategoryRevenue   Category = "REVENUE"
	CategoryExpense   Category = "EXPENSE"
)

// Side enumerates the two sides of a journal line.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// AccountType is immutable reference data mapping a category to its
// normal balance side.
type AccountType struct {
	ID            int64
	Category      Category
	NormalBalance Side
}

// NormalSide returns the side on which a category's balance is naturally
// positive. Asset and expense accounts grow on the debit side, the rest
// on the credit side.
func NormalSide(c Category) (Side, bool) {
	switch c {
	case CategoryAsset, CategoryExpense:
		return SideDebit, true
	case CategoryLiability, CategoryEquity, CategoryRevenue:
		return SideCredit, true
	}
	return "", false
}

// Categories lists every known category in statement order.
func Categories() []Category {
	return []Category{
		CategoryAsset,
		CategoryLiability,
		CategoryEquity,
		CategoryRevenue,
		CategoryExpense,
	}
}
