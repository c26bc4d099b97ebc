package services

import (
	"context"
	"fmt"

	"contabile/internal/core"
	"contabile/internal/storage"
)

// BudgetService owns budget definitions and computes budget-vs-actual
// projections. Reconciliation is a pure read: it is recomputed on every
// request from the current ledger and never cached, and it does not
// consult period lock state (closing affects mutability, not
// readability).
type BudgetService struct {
	store *storage.SQLiteRepository
}

func NewBudgetService(store *storage.SQLiteRepository) *BudgetService {
	return &BudgetService{store: store}
}

func (s *BudgetService) Create(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	created, err := s.store.CreateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	return created, nil
}

func (s *BudgetService) Update(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	updated, err := s.store.UpdateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}
	return updated, nil
}

func (s *BudgetService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteBudget(ctx, id); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return nil
}

func (s *BudgetService) Get(ctx context.Context, id int64) (core.Budget, error) {
	return s.store.GetBudget(ctx, id)
}

func (s *BudgetService) List(ctx context.Context, year int) ([]core.Budget, error) {
	return s.store.ListBudgets(ctx, year)
}

// BudgetVsActual computes the projection for one budget from the live
// ledger. An unknown id is ErrBudgetNotFound; a budget with no matching
// entries reconciles against a zero actual.
func (s *BudgetService) BudgetVsActual(ctx context.Context, id int64) (core.BudgetVsActual, error) {
	b, err := s.store.GetBudget(ctx, id)
	if err != nil {
		return core.BudgetVsActual{}, err
	}

	start, end := b.Range()
	actual, err := s.store.SumEntries(ctx, b.Category, start, end)
	if err != nil {
		return core.BudgetVsActual{}, fmt.Errorf("sum actuals for budget %d: %w", id, err)
	}

	return core.Reconcile(b, actual), nil
}

// BudgetVsActualForPeriod computes projections for every budget whose
// bounds contain (year, month). Used by the export worker after a close.
func (s *BudgetService) BudgetVsActualForPeriod(ctx context.Context, year, month int) ([]core.BudgetVsActual, error) {
	if err := core.ValidatePeriodKey(year, month); err != nil {
		return nil, err
	}

	budgets, err := s.store.ListBudgetsForPeriod(ctx, year, month)
	if err != nil {
		return nil, err
	}

	reports := make([]core.BudgetVsActual, 0, len(budgets))
	for _, b := range budgets {
		start, end := b.Range()
		actual, err := s.store.SumEntries(ctx, b.Category, start, end)
		if err != nil {
			return nil, fmt.Errorf("sum actuals for budget %d: %w", b.ID, err)
		}
		reports = append(reports, core.Reconcile(b, actual))
	}
	return reports, nil
}
