package services

import (
	"context"
	"errors"
	"testing"

	"contabile/internal/core"
)

func TestLedgerServiceValidation(t *testing.T) {
	store := newTestStore(t)
	ledger := NewLedgerService(store)
	ctx := context.Background()

	if _, err := ledger.Create(ctx, core.LedgerEntry{
		Date:     core.NewDate(2025, 6, 1),
		Amount:   core.Money{Cents: 100},
		Category: "Misc",
	}); !errors.Is(err, core.ErrEmptyDescription) {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}

	if _, err := ledger.Create(ctx, core.LedgerEntry{
		Date:        core.NewDate(1999, 6, 1),
		Description: "too old",
		Amount:      core.Money{Cents: 100},
		Category:    "Misc",
	}); !errors.Is(err, core.ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}

	if _, err := ledger.List(ctx, 2025, 13); !errors.Is(err, core.ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod on list, got %v", err)
	}
}

func TestLedgerServiceGuardedMutations(t *testing.T) {
	store := newTestStore(t)
	ledger := NewLedgerService(store)
	periods := NewPeriodService(store, nil)
	ctx := context.Background()

	e, err := ledger.Create(ctx, core.LedgerEntry{
		Date:        core.NewDate(2025, 6, 15),
		Description: "supplies",
		Amount:      core.Money{Cents: 4_500},
		Category:    "Office",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := periods.Close(ctx, 2025, 6, "alice", ""); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := ledger.Create(ctx, core.LedgerEntry{
		Date:        core.NewDate(2025, 6, 16),
		Description: "late",
		Amount:      core.Money{Cents: 100},
		Category:    "Office",
	}); !errors.Is(err, core.ErrPeriodLocked) {
		t.Fatalf("create: expected ErrPeriodLocked, got %v", err)
	}

	e.Amount.Cents = 5_000
	if _, err := ledger.Update(ctx, e); !errors.Is(err, core.ErrPeriodLocked) {
		t.Fatalf("update: expected ErrPeriodLocked, got %v", err)
	}
	if err := ledger.Delete(ctx, e.ID); !errors.Is(err, core.ErrPeriodLocked) {
		t.Fatalf("delete: expected ErrPeriodLocked, got %v", err)
	}

	// Reopen restores mutability.
	if _, err := periods.Reopen(ctx, 2025, 6, "alice", "fix"); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := ledger.Update(ctx, e); err != nil {
		t.Fatalf("update after reopen: %v", err)
	}
	if err := ledger.Delete(ctx, e.ID); err != nil {
		t.Fatalf("delete after reopen: %v", err)
	}
	if err := ledger.Delete(ctx, e.ID); !errors.Is(err, core.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}
