package services

import (
	"context"
	"fmt"
	"log/slog"

	"contabile/internal/amqp"
	"contabile/internal/core"
	"contabile/internal/storage"
)

// ReasonPeriodLocked is the only denial reason the write guard produces.
const ReasonPeriodLocked = "period_locked"

// Authorization is the write guard's advisory answer. The binding check
// happens again inside the mutation's own transaction; this exists so
// callers can surface a denial before attempting the write.
type Authorization struct {
	Allowed bool
	Reason  string
}

// PeriodEventPublisher is the outbound notification channel for period
// lifecycle changes.
type PeriodEventPublisher interface {
	PublishPeriodEvent(ctx context.Context, msg *amqp.PeriodEventMessage) error
}

// PeriodService orchestrates close/reopen transitions and answers write
// guard queries. The durable store is the source of truth; event
// publication is best-effort and never fails a transition.
type PeriodService struct {
	store  *storage.SQLiteRepository
	events PeriodEventPublisher
}

func NewPeriodService(store *storage.SQLiteRepository, events PeriodEventPublisher) *PeriodService {
	return &PeriodService{
		store:  store,
		events: events,
	}
}

// Close transitions (year, month) to CLOSED and stamps the actor. A
// period that is already CLOSED surfaces ErrAlreadyClosed so callers
// cannot silently double-close and overwrite the audit trail.
func (s *PeriodService) Close(ctx context.Context, year, month int, actor, notes string) (core.Period, error) {
	p, err := s.store.ClosePeriod(ctx, year, month, actor, notes)
	if err != nil {
		return core.Period{}, fmt.Errorf("close period: %w", err)
	}

	s.publish(ctx, amqp.EventPeriodClosed, year, month, actor)
	return p, nil
}

// Reopen transitions a CLOSED period back to OPEN, clearing the close
// metadata and recording the reopen rationale in the notes.
func (s *PeriodService) Reopen(ctx context.Context, year, month int, actor, notes string) (core.Period, error) {
	if err := core.ValidatePeriodKey(year, month); err != nil {
		return core.Period{}, err
	}

	p, err := s.store.ReopenPeriod(ctx, year, month, notes)
	if err != nil {
		return core.Period{}, fmt.Errorf("reopen period: %w", err)
	}

	s.publish(ctx, amqp.EventPeriodReopened, year, month, actor)
	return p, nil
}

// Get returns the materialized period row for (year, month).
func (s *PeriodService) Get(ctx context.Context, year, month int) (core.Period, error) {
	if err := core.ValidatePeriodKey(year, month); err != nil {
		return core.Period{}, err
	}
	return s.store.GetPeriod(ctx, year, month)
}

// List returns all materialized periods for a year.
func (s *PeriodService) List(ctx context.Context, year int) ([]core.Period, error) {
	return s.store.ListPeriods(ctx, year)
}

// Authorize answers whether a ledger mutation dated inside the given
// date's period would be allowed. A period that was never materialized
// was never closed, so the answer is Allow.
func (s *PeriodService) Authorize(ctx context.Context, date core.Date, kind core.WriteKind) (Authorization, error) {
	if err := kind.Validate(); err != nil {
		return Authorization{}, err
	}
	if err := date.Validate(); err != nil {
		return Authorization{}, err
	}

	closed, err := s.store.PeriodClosed(ctx, date)
	if err != nil {
		return Authorization{}, fmt.Errorf("authorize %s: %w", kind, err)
	}
	if closed {
		return Authorization{Allowed: false, Reason: ReasonPeriodLocked}, nil
	}
	return Authorization{Allowed: true}, nil
}

func (s *PeriodService) publish(ctx context.Context, event string, year, month int, actor string) {
	if s.events == nil {
		slog.WarnContext(ctx, "Event publisher not available, skipping period event",
			"event", event, "year", year, "month", month)
		return
	}

	msg := amqp.NewPeriodEventMessage(event, year, month, actor)
	if err := s.events.PublishPeriodEvent(ctx, msg); err != nil {
		// The transition already committed; the durable row is the
		// source of truth and consumers reconcile from it.
		slog.ErrorContext(ctx, "Failed to publish period event",
			"error", err, "event", event, "year", year, "month", month)
	}
}
