package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	StatusOpen   PeriodStatus = "OPEN"
	StatusClosed PeriodStatus = "CLOSED"
)

const (
	Monthly BudgetPeriodType = "monthly"
	Yearly  BudgetPeriodType = "yearly"
)

const (
	OpCreate WriteKind = "create"
	OpUpdate WriteKind = "update"
	OpDelete WriteKind = "delete"
)

// Supported range for accounting periods. Anything outside is rejected
// before a row is ever materialized.
const (
	MinYear = 2000
	MaxYear = 2100
)

type (
	// PeriodStatus is the two-state lock status of an accounting period.
	PeriodStatus string

	// BudgetPeriodType is the granularity a budget is defined over.
	BudgetPeriodType string

	// WriteKind is the kind of ledger mutation being authorized.
	WriteKind string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Period is one accounting period row. Exactly one exists per
	// (year, month) once materialized; it is transitioned, never deleted.
	Period struct {
		ID        int64
		Year      int
		Month     int
		Status    PeriodStatus
		ClosedBy  string // empty unless Status is CLOSED
		ClosedAt  *time.Time
		Notes     string
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// Budget is a spending target for a category (or all categories)
	// over a month or a year. Definitions are independent of period
	// lock state.
	Budget struct {
		ID         int64
		Name       string
		Category   string // empty means all categories
		Amount     Money
		PeriodType BudgetPeriodType
		Year       int
		Month      int // 1-12, set iff PeriodType is Monthly
		CreatedBy  string
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}

	// LedgerEntry is the (category, amount, date) projection of an
	// external financial record that the guard and the reconciliation
	// engine operate on.
	LedgerEntry struct {
		ID          int64
		Date        Date
		Description string
		Amount      Money
		Category    string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}
)

var (
	ErrInvalidPeriod  = errors.New("invalid period")
	ErrAlreadyClosed  = errors.New("period already closed")
	ErrNotClosed      = errors.New("period not closed")
	ErrPeriodNotFound = errors.New("period not found")
	ErrPeriodLocked   = errors.New("period locked")
	ErrBudgetNotFound = errors.New("budget not found")
	ErrEntryNotFound  = errors.New("ledger entry not found")

	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyCategory    = errors.New("empty category")
	ErrMonthRequired    = errors.New("month required for monthly budgets")
	ErrMonthForbidden   = errors.New("month set on non-monthly budget")
)

// ValidatePeriodKey checks the supported (year, month) range.
func ValidatePeriodKey(year, month int) error {
	if year < MinYear || year > MaxYear {
		return fmt.Errorf("%w: year %d out of range %d-%d", ErrInvalidPeriod, year, MinYear, MaxYear)
	}
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month %d out of range 1-12", ErrInvalidPeriod, month)
	}
	return nil
}

// IsClosed reports whether the period denies ledger mutations.
func (p Period) IsClosed() bool {
	return p.Status == StatusClosed
}

// NewDate creates a Date at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return ValidatePeriodKey(d.Year(), d.Month())
}

// Year returns the calendar year.
func (d Date) Year() int {
	return d.Time.Year()
}

// Month returns the calendar month as 1-12.
func (d Date) Month() int {
	return int(d.Time.Month())
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (k WriteKind) Validate() error {
	switch k {
	case OpCreate, OpUpdate, OpDelete:
		return nil
	default:
		return fmt.Errorf("invalid write kind %q", string(k))
	}
}

func (e LedgerEntry) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (b Budget) Validate() error {
	if len(strings.TrimSpace(b.Name)) == 0 {
		return ErrEmptyName
	}
	if len(b.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	switch b.PeriodType {
	case Monthly:
		if b.Month == 0 {
			return ErrMonthRequired
		}
		if err := ValidatePeriodKey(b.Year, b.Month); err != nil {
			return err
		}
	case Yearly:
		if b.Month != 0 {
			return ErrMonthForbidden
		}
		if b.Year < MinYear || b.Year > MaxYear {
			return fmt.Errorf("%w: year %d out of range %d-%d", ErrInvalidPeriod, b.Year, MinYear, MaxYear)
		}
	default:
		return errors.New("invalid budget period type")
	}
	return nil
}

// Range returns the inclusive date bounds the budget covers: the full
// calendar month for monthly budgets, the full calendar year otherwise.
func (b Budget) Range() (start, end Date) {
	if b.PeriodType == Monthly {
		start = NewDate(b.Year, b.Month, 1)
		end = Date{Time: start.AddDate(0, 1, -1)}
		return start, end
	}
	return NewDate(b.Year, 1, 1), NewDate(b.Year, 12, 31)
}

// Covers reports whether the budget's bounds contain the given period.
func (b Budget) Covers(year, month int) bool {
	if b.Year != year {
		return false
	}
	return b.PeriodType == Yearly || b.Month == month
}
