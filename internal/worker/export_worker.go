package worker

import (
	"context"
	"fmt"
	"log/slog"

	"contabile/internal/amqp"
	"contabile/internal/core"
	"contabile/internal/export"
	"contabile/internal/services"
)

// ExportWorker turns period lifecycle events into budget-vs-actual
// snapshots and hands them to the configured report writer.
type ExportWorker struct {
	periods *services.PeriodService
	budgets *services.BudgetService
	writer  export.ReportWriter
}

func NewExportWorker(periods *services.PeriodService, budgets *services.BudgetService, writer export.ReportWriter) *ExportWorker {
	return &ExportWorker{
		periods: periods,
		budgets: budgets,
		writer:  writer,
	}
}

// HandlePeriodEvent processes a single period event from AMQP.
func (w *ExportWorker) HandlePeriodEvent(ctx context.Context, msg *amqp.PeriodEventMessage) error {
	slog.InfoContext(ctx, "Processing period event",
		"event_id", msg.EventID,
		"event", msg.Event,
		"year", msg.Year,
		"month", msg.Month,
		"actor", msg.Actor)

	if err := w.ExportPeriod(ctx, msg.Year, msg.Month, msg.Event); err != nil {
		return fmt.Errorf("export period %04d-%02d: %w", msg.Year, msg.Month, err)
	}
	return nil
}

// ExportPeriod computes the reconciliation reports for one period and
// writes them as a snapshot.
func (w *ExportWorker) ExportPeriod(ctx context.Context, year, month int, event string) error {
	reports, err := w.budgets.BudgetVsActualForPeriod(ctx, year, month)
	if err != nil {
		return fmt.Errorf("compute reports: %w", err)
	}

	if len(reports) == 0 {
		slog.InfoContext(ctx, "No budgets cover period, nothing to export",
			"year", year, "month", month)
		return nil
	}

	snapshot := export.Snapshot{
		Year:    year,
		Month:   month,
		Event:   event,
		Reports: reports,
	}
	if err := w.writer.WriteSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Period snapshot exported",
		"year", year,
		"month", month,
		"event", event,
		"reports", len(reports))
	return nil
}

// ExportClosedPeriods re-exports every closed period in the given year.
// This is a backup mechanism in case AMQP messages are lost.
func (w *ExportWorker) ExportClosedPeriods(ctx context.Context, year int) error {
	periods, err := w.periods.List(ctx, year)
	if err != nil {
		return fmt.Errorf("list periods: %w", err)
	}

	exported := 0
	failed := 0
	for _, p := range periods {
		if p.Status != core.StatusClosed {
			continue
		}
		if err := w.ExportPeriod(ctx, p.Year, p.Month, "periodic"); err != nil {
			slog.ErrorContext(ctx, "Failed to export closed period",
				"year", p.Year, "month", p.Month, "error", err)
			failed++
			continue
		}
		exported++
	}

	if exported > 0 || failed > 0 {
		slog.InfoContext(ctx, "Periodic export completed",
			"year", year,
			"exported", exported,
			"errors", failed)
	}
	return nil
}
