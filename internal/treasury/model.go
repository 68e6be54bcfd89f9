// Package treasury owns cash movements and stored-value cards. Card
// balances live outside the ledger; the ledger only sees the balanced
// entry each movement generates.
package treasury

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
)

// SourceKindMovement tags ledger entries generated by treasury movements.
const SourceKindMovement journals.SourceKind = "TREASURY_MOVEMENT"

type MovementKind string

const (
	MovementDeposit     MovementKind = "DEPOSIT"
	MovementWithdrawal  MovementKind = "WITHDRAWAL"
	MovementCardPayment MovementKind = "CARD_PAYMENT"
)

// Card is a stored-value card. Its balance is adapter-owned state, not a
// ledger account; mutations must be compensated by hand when a ledger
// post fails after a deduction.
type Card struct {
	ID        uuid.UUID
	Number    string
	Holder    string
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Movement is one cash movement with its ledger reference.
type Movement struct {
	ID        uuid.UUID
	Kind      MovementKind
	Amount    decimal.Decimal
	Currency  string
	CardID    *uuid.UUID
	Memo      string
	JournalID *int64
	CreatedBy int64
	CreatedAt time.Time
}
