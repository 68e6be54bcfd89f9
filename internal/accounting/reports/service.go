package reports

import (
	"context"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
)

// AccountLister lists the chart of accounts for hierarchy reports.
type AccountLister interface {
	List(ctx context.Context) ([]accounts.Account, error)
}

// Service assembles reporting views from the chart of accounts and posted
// activity.
type Service struct {
	accounts AccountLister
	repo     Repository
	cache    *Cache
}

func NewService(accounts AccountLister, repo Repository) *Service {
	return &Service{accounts: accounts, repo: repo}
}

// WithCache enables short-lived Redis caching for the dashboard.
func (s *Service) WithCache(cache *Cache) *Service {
	s.cache = cache
	return s
}

// Tree returns the rolled-up account hierarchy.
func (s *Service) Tree(ctx context.Context) ([]*Node, error) {
	list, err := s.accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	return BuildTree(list), nil
}

// Dashboard aggregates the hierarchy into headline totals.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	var dashboard Dashboard
	err := s.cache.FetchJSON(ctx, "reports:dashboard", &dashboard, func(ctx context.Context) (interface{}, error) {
		roots, err := s.Tree(ctx)
		if err != nil {
			return nil, err
		}
		return BuildDashboard(roots), nil
	})
	return dashboard, err
}

// TrialBalance builds the grouped trial balance for a period.
func (s *Service) TrialBalance(ctx context.Context, from, to time.Time) (TrialBalance, error) {
	activity, err := s.repo.PeriodActivity(ctx, from, to)
	if err != nil {
		return TrialBalance{}, err
	}
	return BuildTrialBalance(activity), nil
}
