package journals

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

// LineInput describes one candidate journal line.
type LineInput struct {
	AccountID    int64
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	Description  string
	Currency     string
	ExchangeRate decimal.Decimal
	ProductID    *int64
	Quantity     *decimal.Decimal
}

// PostingInput groups the fields required to post a journal entry.
type PostingInput struct {
	Date        time.Time
	Description string
	Source      *SourceRef
	CreatedBy   int64
	Currency    string
	Lines       []LineInput
}

// ReverseInput wraps the parameters for reversing a posted entry. Reason
// and actor are mandatory and retained for audit.
type ReverseInput struct {
	EntryID int64
	ActorID int64
	Reason  string
}

// CurrencyExponent returns the number of minor-unit decimals for a
// currency code. Zero-decimal currencies are the only exceptions we carry;
// everything else uses two. Sub-ledgers round derived amounts with this
// before posting so their line sets balance exactly.
func CurrencyExponent(code string) int32 {
	switch code {
	case "JPY", "KRW", "VND", "IDR":
		return 0
	default:
		return 2
	}
}

// normalize rounds every line amount to the currency's minor unit and
// returns the rounded line set with its debit/credit sums.
func (in PostingInput) normalize() ([]LineInput, decimal.Decimal, decimal.Decimal) {
	exp := CurrencyExponent(in.Currency)
	lines := make([]LineInput, len(in.Lines))
	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for i, line := range in.Lines {
		line.Debit = line.Debit.Round(exp)
		line.Credit = line.Credit.Round(exp)
		if line.ExchangeRate.IsZero() {
			line.ExchangeRate = decimal.NewFromInt(1)
		}
		lines[i] = line
		totalDebit = totalDebit.Add(line.Debit)
		totalCredit = totalCredit.Add(line.Credit)
	}
	return lines, totalDebit, totalCredit
}

// Validate rejects structurally broken input before any storage work.
// Account existence and postability are checked later inside the posting
// transaction, where the rows are locked.
func (in PostingInput) Validate() error {
	if in.Date.IsZero() {
		return fmt.Errorf("journals: date required")
	}
	if len(in.Lines) < 2 {
		return shared.ErrEmptyEntry
	}
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("journals: line %d missing account: %w", idx, shared.ErrInvalidAccount)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("journals: line %d negative amount: %w", idx, shared.ErrUnbalancedEntry)
		}
		hasDebit := line.Debit.IsPositive()
		hasCredit := line.Credit.IsPositive()
		if hasDebit == hasCredit {
			return fmt.Errorf("journals: line %d must carry exactly one of debit or credit: %w", idx, shared.ErrUnbalancedEntry)
		}
	}
	// Tolerance is half the currency's minor unit: raw sums further apart
	// than that cannot reconcile, and sums within it must still round to
	// the exact same stored total.
	_, debit, credit := in.normalize()
	if !debit.Equal(credit) {
		return fmt.Errorf("journals: debits %s != credits %s: %w", debit.String(), credit.String(), shared.ErrUnbalancedEntry)
	}
	return nil
}
