// Package sales owns customer invoices. Posting an invoice produces one
// balanced journal entry through the ledger; the invoice only keeps a
// reference to it.
package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
)

// SourceKindInvoice tags ledger entries generated by sales invoices.
const SourceKindInvoice journals.SourceKind = "SALES_INVOICE"

type InvoiceStatus string

const (
	InvoiceStatusPosted InvoiceStatus = "POSTED"
	InvoiceStatusVoid   InvoiceStatus = "VOID"
)

// Invoice is a posted customer invoice.
type Invoice struct {
	ID           uuid.UUID
	Number       string
	CustomerName string
	Date         time.Time
	Currency     string
	Subtotal     decimal.Decimal
	TaxAmount    decimal.Decimal
	Total        decimal.Decimal
	Status       InvoiceStatus
	JournalID    *int64
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Lines        []InvoiceLine
}

// InvoiceLine is one sold item or service.
type InvoiceLine struct {
	ID          uuid.UUID
	InvoiceID   uuid.UUID
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TaxPct      decimal.Decimal
	LineTotal   decimal.Decimal
}
