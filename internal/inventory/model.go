// Package inventory owns stock movements and their costing entries.
// Receipts move value into the inventory account; issues move it out to
// cost of goods sold.
package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
)

// SourceKindMovement tags ledger entries generated by stock movements.
const SourceKindMovement journals.SourceKind = "INVENTORY_MOVEMENT"

type MovementKind string

const (
	MovementReceipt MovementKind = "RECEIPT"
	MovementIssue   MovementKind = "ISSUE"
)

// Movement is one costed stock movement.
type Movement struct {
	ID        uuid.UUID
	Kind      MovementKind
	SKU       string
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
	Total     decimal.Decimal
	JournalID *int64
	CreatedBy int64
	CreatedAt time.Time
}
