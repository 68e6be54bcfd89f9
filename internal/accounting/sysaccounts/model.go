// Package sysaccounts resolves logical account roles to concrete leaf
// accounts so calling code never hardcodes account ids.
package sysaccounts

import "time"

// Well-known keys assigned during setup and consumed by the sub-ledgers.
const (
	KeyCustomersControl        = "CUSTOMERS_CONTROL"
	KeySuppliersControl        = "SUPPLIERS_CONTROL"
	KeyCashDefault             = "CASH_DEFAULT"
	KeyBankDefault             = "BANK_DEFAULT"
	KeySalesRevenue            = "SALES_REVENUE"
	KeySalesTaxPayable         = "SALES_TAX_PAYABLE"
	KeyInventory               = "INVENTORY"
	KeyCostOfGoodsSold         = "COST_OF_GOODS_SOLD"
	KeySalaryExpense           = "SALARY_EXPENSE"
	KeyPayrollTaxPayable       = "PAYROLL_TAX_PAYABLE"
	KeyDepreciationExpense     = "DEPRECIATION_EXPENSE"
	KeyAccumulatedDepreciation = "ACCUMULATED_DEPRECIATION"
	KeyTreasuryControl         = "TREASURY_CONTROL"
	KeyPurchaseExpense         = "PURCHASE_EXPENSE"
)

// SystemAccount maps a logical key to a ledger account.
type SystemAccount struct {
	Key       string
	AccountID int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
