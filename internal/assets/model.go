// Package assets owns the fixed asset register and the straight-line
// depreciation run. Each monthly charge is one balanced ledger entry.
package assets

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
)

// SourceKindDepreciation tags ledger entries generated by depreciation
// charges.
const SourceKindDepreciation journals.SourceKind = "DEPRECIATION_CHARGE"

// Asset is a depreciable fixed asset.
type Asset struct {
	ID               uuid.UUID
	Name             string
	Cost             decimal.Decimal
	SalvageValue     decimal.Decimal
	UsefulLifeMonths int
	AcquiredAt       time.Time
	Accumulated      decimal.Decimal
	Disposed         bool
	CreatedBy        int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DepreciableBase is the total amount the asset will ever depreciate.
func (a Asset) DepreciableBase() decimal.Decimal {
	return a.Cost.Sub(a.SalvageValue)
}

// MonthlyCharge is the straight-line charge per month, rounded to cents.
func (a Asset) MonthlyCharge() decimal.Decimal {
	if a.UsefulLifeMonths <= 0 {
		return decimal.Zero
	}
	return a.DepreciableBase().
		Div(decimal.NewFromInt(int64(a.UsefulLifeMonths))).
		Round(2)
}

// RemainingBase is how much depreciation is still to be charged. The last
// charge is capped to this so rounding never overshoots the base.
func (a Asset) RemainingBase() decimal.Decimal {
	remaining := a.DepreciableBase().Sub(a.Accumulated)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// Charge is one posted monthly depreciation amount for one asset.
type Charge struct {
	ID        uuid.UUID
	AssetID   uuid.UUID
	Period    string // YYYY-MM
	Amount    decimal.Decimal
	JournalID *int64
	CreatedAt time.Time
}

// RunSummary reports what a depreciation run did.
type RunSummary struct {
	Period  string
	Charged int
	Skipped int
	Total   decimal.Decimal
}
