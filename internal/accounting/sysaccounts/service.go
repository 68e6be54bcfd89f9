package sysaccounts

import (
	"context"
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
)

// AccountReader is the slice of the accounts repository the service needs
// to vet assignments.
type AccountReader interface {
	Get(ctx context.Context, id int64) (accounts.Account, error)
}

// Service is the injectable registry lookup. Mutation happens only through
// Assign during setup or migration; everything else reads.
type Service struct {
	repo     Repository
	accounts AccountReader
}

func NewService(repo Repository, accountReader AccountReader) *Service {
	return &Service{repo: repo, accounts: accountReader}
}

// Resolve returns the account id configured for a logical key.
func (s *Service) Resolve(ctx context.Context, key string) (int64, error) {
	entry, err := s.repo.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	return entry.AccountID, nil
}

// Assign points a key at a postable leaf account.
func (s *Service) Assign(ctx context.Context, key string, accountID int64) error {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.Postable() {
		return fmt.Errorf("sysaccounts: account %d (%s) is not a postable leaf", accountID, account.Code)
	}
	return s.repo.Set(ctx, key, accountID)
}

// List returns all configured mappings.
func (s *Service) List(ctx context.Context) ([]SystemAccount, error) {
	return s.repo.List(ctx)
}
