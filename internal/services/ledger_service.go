package services

import (
	"context"
	"fmt"

	"contabile/internal/core"
	"contabile/internal/storage"
)

// LedgerService performs guarded ledger mutations. The period-lock check
// is not done here: it lives inside the repository's write transactions,
// so an in-flight mutation racing a concurrent close is still denied.
type LedgerService struct {
	store *storage.SQLiteRepository
}

func NewLedgerService(store *storage.SQLiteRepository) *LedgerService {
	return &LedgerService{store: store}
}

func (s *LedgerService) Create(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	if err := e.Validate(); err != nil {
		return core.LedgerEntry{}, err
	}
	created, err := s.store.CreateEntry(ctx, e)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("create ledger entry: %w", err)
	}
	return created, nil
}

func (s *LedgerService) Update(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	if err := e.Validate(); err != nil {
		return core.LedgerEntry{}, err
	}
	updated, err := s.store.UpdateEntry(ctx, e)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("update ledger entry: %w", err)
	}
	return updated, nil
}

func (s *LedgerService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteEntry(ctx, id); err != nil {
		return fmt.Errorf("delete ledger entry: %w", err)
	}
	return nil
}

func (s *LedgerService) Get(ctx context.Context, id int64) (core.LedgerEntry, error) {
	return s.store.GetEntry(ctx, id)
}

// List returns the entries dated inside (year, month). Reads are never
// blocked by lock state.
func (s *LedgerService) List(ctx context.Context, year, month int) ([]core.LedgerEntry, error) {
	if err := core.ValidatePeriodKey(year, month); err != nil {
		return nil, err
	}
	return s.store.ListEntries(ctx, year, month)
}
