package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Registry is an injectable lookup of account types loaded once at startup.
// It is the only place that knows how a raw debit/credit pair moves a
// stored balance: balances are kept naturally positive on the account's
// own normal side, so a credit to a revenue account increases its stored
// balance and a credit to an asset account decreases it.
type Registry struct {
	byID       map[int64]AccountType
	byCategory map[Category]AccountType
}

// NewRegistry builds a Registry and verifies the category/normal-balance
// invariant for every entry.
func NewRegistry(list []AccountType) (*Registry, error) {
	r := &Registry{
		byID:       make(map[int64]AccountType, len(list)),
		byCategory: make(map[Category]AccountType, len(list)),
	}
	for _, t := range list {
		want, ok := NormalSide(t.Category)
		if !ok {
			return nil, fmt.Errorf("types: unknown category %q", t.Category)
		}
		if t.NormalBalance != want {
			return nil, fmt.Errorf("types: category %s must have normal balance %s, got %s", t.Category, want, t.NormalBalance)
		}
		if _, dup := r.byCategory[t.Category]; dup {
			return nil, fmt.Errorf("types: duplicate category %s", t.Category)
		}
		r.byID[t.ID] = t
		r.byCategory[t.Category] = t
	}
	return r, nil
}

// ByID returns the account type for an id.
func (r *Registry) ByID(id int64) (AccountType, bool) {
	t, ok := r.byID[id]
	return t, ok
}

// ByCategory returns the account type for a category.
func (r *Registry) ByCategory(c Category) (AccountType, bool) {
	t, ok := r.byCategory[c]
	return t, ok
}

// Delta converts a debit/credit pair into the signed movement applied to
// the stored balance of an account of the given category.
func (r *Registry) Delta(c Category, debit, credit decimal.Decimal) decimal.Decimal {
	side, _ := NormalSide(c)
	if side == SideDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}
