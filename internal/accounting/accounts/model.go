package accounts

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/types"
)

// CashFlowTag classifies an account for the cash flow statement.
type CashFlowTag string

const (
	CashFlowOperating CashFlowTag = "OPERATING"
	CashFlowInvesting CashFlowTag = "INVESTING"
	CashFlowFinancing CashFlowTag = "FINANCING"
)

// Account models a chart of accounts node. Group nodes aggregate their
// subtree and are not postable; leaf nodes carry the authoritative stored
// balance, expressed naturally positive on the account's normal side.
type Account struct {
	ID             int64
	Code           string
	Name           string
	Description    string
	TypeID         int64
	Category       types.Category
	ParentID       *int64
	Level          int
	IsGroup        bool
	IsActive       bool
	Currency       string
	CurrentBalance decimal.Decimal
	CashFlowTag    *CashFlowTag
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Postable reports whether journal lines may reference this account.
func (a Account) Postable() bool {
	return a.IsActive && !a.IsGroup
}
