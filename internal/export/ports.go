package export

import (
	"context"

	"contabile/internal/core"
)

// Snapshot is one exported reconciliation report: the budget-vs-actual
// figures for a period at the moment it was closed (or re-exported).
type Snapshot struct {
	Year    int
	Month   int
	Event   string // period lifecycle event that triggered the export
	Reports []core.BudgetVsActual
}

// ReportWriter is the outbound port for reconciliation snapshots.
type ReportWriter interface {
	WriteSnapshot(ctx context.Context, s Snapshot) error
}
