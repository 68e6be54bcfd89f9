// Package payroll owns salary slips. Paying a slip debits gross salary
// expense and credits withheld taxes and cash.
package payroll

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
)

// SourceKindSlip tags ledger entries generated by payroll slips.
const SourceKindSlip journals.SourceKind = "PAYROLL_SLIP"

// Slip is one employee's salary payment for a period.
type Slip struct {
	ID           uuid.UUID
	Number       string
	EmployeeName string
	Period       string // YYYY-MM
	Date         time.Time
	Currency     string
	Gross        decimal.Decimal
	TaxWithheld  decimal.Decimal
	Net          decimal.Decimal
	JournalID    *int64
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
