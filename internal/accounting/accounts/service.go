package accounts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/accounting/types"
)

// ServiceConfig tunes account creation.
type ServiceConfig struct {
	// CodeSuffixWidth is the zero-padded width of the numeric suffix
	// appended to a parent code when allocating a child code. Reporting
	// filters by code prefix, so this must not change once accounts exist.
	CodeSuffixWidth int
	// DefaultCurrency is used when creation input omits a currency.
	DefaultCurrency string
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.CodeSuffixWidth <= 0 {
		c.CodeSuffixWidth = 1
	}
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = "USD"
	}
	return c
}

type Service struct {
	repo     Repository
	registry *types.Registry
	cfg      ServiceConfig
}

func NewService(repo Repository, registry *types.Registry, cfg ServiceConfig) *Service {
	return &Service{repo: repo, registry: registry, cfg: cfg.withDefaults()}
}

// CreateInput describes a new chart-of-accounts node. Category may be nil
// for child accounts, which then inherit the parent's category.
type CreateInput struct {
	Name        string
	ParentID    *int64
	Category    *types.Category
	Currency    string
	CashFlowTag *CashFlowTag
	IsGroup     bool
	Description string
}

// Create allocates the code and level from the parent and inserts the
// account. Codes extend the parent's code with the next unused zero-padded
// numeric suffix among existing siblings, so they stay sortable without a
// global counter.
func (s *Service) Create(ctx context.Context, input CreateInput) (Account, error) {
	if strings.TrimSpace(input.Name) == "" {
		return Account{}, fmt.Errorf("accounts: name required")
	}
	if input.Category != nil {
		if _, ok := s.registry.ByCategory(*input.Category); !ok {
			return Account{}, fmt.Errorf("accounts: unknown category %q", *input.Category)
		}
	}

	var created Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account := Account{
			Name:        strings.TrimSpace(input.Name),
			Description: input.Description,
			ParentID:    input.ParentID,
			IsGroup:     input.IsGroup,
			Currency:    input.Currency,
			CashFlowTag: input.CashFlowTag,
		}

		prefix := ""
		if input.ParentID == nil {
			if input.Category == nil {
				return fmt.Errorf("accounts: top-level account requires a category")
			}
			account.Category = *input.Category
			account.Level = 1
		} else {
			parent, err := tx.GetForUpdate(ctx, *input.ParentID)
			if err != nil {
				if errors.Is(err, shared.ErrAccountNotFound) {
					return shared.ErrInvalidParent
				}
				return err
			}
			if !parent.IsActive {
				return shared.ErrInvalidParent
			}
			if input.Category != nil && *input.Category != parent.Category {
				return shared.ErrTypeMismatch
			}
			if !parent.IsGroup {
				// A leaf may become a group only before it carries history.
				posted, err := tx.HasPostedLines(ctx, parent.ID)
				if err != nil {
					return err
				}
				if posted || !parent.CurrentBalance.IsZero() {
					return shared.ErrInvalidParent
				}
				if err := tx.MarkGroup(ctx, parent.ID); err != nil {
					return err
				}
			}
			account.Category = parent.Category
			account.Level = parent.Level + 1
			prefix = parent.Code
			if account.Currency == "" {
				account.Currency = parent.Currency
			}
			if account.CashFlowTag == nil {
				account.CashFlowTag = parent.CashFlowTag
			}
		}

		t, ok := s.registry.ByCategory(account.Category)
		if !ok {
			return fmt.Errorf("accounts: no account type for category %s", account.Category)
		}
		account.TypeID = t.ID

		if account.Currency == "" {
			account.Currency = s.cfg.DefaultCurrency
		}

		siblings, err := tx.ListChildCodes(ctx, input.ParentID)
		if err != nil {
			return err
		}
		account.Code = nextCode(prefix, siblings, s.cfg.CodeSuffixWidth)

		inserted, err := tx.Insert(ctx, account)
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return created, nil
}

// nextCode extends prefix with the next unused numeric suffix among the
// sibling codes, left-padded to width.
func nextCode(prefix string, siblings []string, width int) string {
	max := int64(0)
	for _, code := range siblings {
		if !strings.HasPrefix(code, prefix) {
			continue
		}
		suffix := code[len(prefix):]
		n, err := strconv.ParseInt(suffix, 10, 64)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s%0*d", prefix, width, max+1)
}

// UpdateInput carries mutable account fields. Code, parent, and type are
// structural: changing them would invalidate historical aggregation, so any
// attempt is rejected rather than ignored.
type UpdateInput struct {
	Name        *string
	Description *string
	CashFlowTag *CashFlowTag
	Code        *string
	ParentID    *int64
	TypeID      *int64
}

func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Account, error) {
	if input.Code != nil || input.ParentID != nil || input.TypeID != nil {
		return Account{}, shared.ErrImmutableField
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	name := current.Name
	if input.Name != nil {
		name = *input.Name
	}
	description := current.Description
	if input.Description != nil {
		description = *input.Description
	}
	tag := current.CashFlowTag
	if input.CashFlowTag != nil {
		tag = input.CashFlowTag
	}
	if err := s.repo.UpdateDetails(ctx, id, name, description, tag); err != nil {
		return Account{}, err
	}
	return s.repo.Get(ctx, id)
}

// Deactivate flips the active flag without touching balance or history.
func (s *Service) Deactivate(ctx context.Context, id int64, active bool) error {
	return s.repo.SetActive(ctx, id, active)
}

// Delete hard-deletes an account that has neither children nor posted
// journal history.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	children, err := s.repo.CountChildren(ctx, id)
	if err != nil {
		return err
	}
	if children > 0 {
		return shared.ErrHasChildren
	}
	lines, err := s.repo.CountPostedLines(ctx, id)
	if err != nil {
		return err
	}
	if lines > 0 {
		return shared.ErrHasHistory
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}
