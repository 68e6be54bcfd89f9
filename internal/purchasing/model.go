// Package purchasing owns supplier invoices and their ledger linkage.
package purchasing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
)

// SourceKindInvoice tags ledger entries generated by purchase invoices.
const SourceKindInvoice journals.SourceKind = "PURCHASE_INVOICE"

// Invoice is a supplier invoice. Stock purchases hit the inventory asset
// account; everything else is expensed directly.
type Invoice struct {
	ID           uuid.UUID
	Number       string
	SupplierName string
	Date         time.Time
	Currency     string
	Total        decimal.Decimal
	IsStock      bool
	JournalID    *int64
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
