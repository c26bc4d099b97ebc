package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"contabile/internal/core"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// SQLiteRepository is the durable store for accounting periods, budgets
// and ledger entries. Every decision that depends on a period's status
// (close, reopen, guarded ledger writes) runs inside a single SQL
// transaction on that period's row, so the status check and the
// dependent write share one commit boundary.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite has a single writer; one pooled connection avoids
	// SQLITE_BUSY and keeps :memory: databases usable in tests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- accounting periods ---

const periodColumns = `id, year, month, status, closed_by, closed_at, notes, created_at, updated_at`

func scanPeriod(row interface{ Scan(...any) error }) (core.Period, error) {
	var (
		p        core.Period
		status   string
		closedBy sql.NullString
		closedAt sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Year, &p.Month, &status, &closedBy, &closedAt, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return core.Period{}, err
	}
	p.Status = core.PeriodStatus(status)
	p.ClosedBy = closedBy.String
	if closedAt.Valid {
		t := closedAt.Time
		p.ClosedAt = &t
	}
	return p, nil
}

// GetPeriod returns the materialized period row for (year, month).
func (r *SQLiteRepository) GetPeriod(ctx context.Context, year, month int) (core.Period, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+periodColumns+` FROM accounting_periods WHERE year = ? AND month = ?`,
		year, month)
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Period{}, fmt.Errorf("period %d-%02d: %w", year, month, core.ErrPeriodNotFound)
	}
	if err != nil {
		return core.Period{}, fmt.Errorf("get period: %w", err)
	}
	return p, nil
}

// GetOrCreatePeriod returns the period row, materializing it in OPEN
// status if it was never referenced before.
func (r *SQLiteRepository) GetOrCreatePeriod(ctx context.Context, year, month int) (core.Period, error) {
	if err := core.ValidatePeriodKey(year, month); err != nil {
		return core.Period{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Period{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := ensurePeriodTx(ctx, tx, year, month, r.now()); err != nil {
		return core.Period{}, err
	}

	p, err := scanPeriod(tx.QueryRowContext(ctx,
		`SELECT `+periodColumns+` FROM accounting_periods WHERE year = ? AND month = ?`,
		year, month))
	if err != nil {
		return core.Period{}, fmt.Errorf("get period: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Period{}, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

func ensurePeriodTx(ctx context.Context, tx *sql.Tx, year, month int, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO accounting_periods (year, month, status, notes, created_at, updated_at)
		 VALUES (?, ?, 'OPEN', '', ?, ?)
		 ON CONFLICT (year, month) DO NOTHING`,
		year, month, now, now)
	if err != nil {
		return fmt.Errorf("materialize period: %w", err)
	}
	return nil
}

// ClosePeriod transitions (year, month) to CLOSED, materializing the row
// first if needed. The conditional UPDATE is the atomic boundary: of two
// concurrent closes exactly one flips the status, the other sees
// ErrAlreadyClosed with the winner's metadata intact.
func (r *SQLiteRepository) ClosePeriod(ctx context.Context, year, month int, closedBy, notes string) (core.Period, error) {
	if err := core.ValidatePeriodKey(year, month); err != nil {
		return core.Period{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Period{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := r.now()
	if err := ensurePeriodTx(ctx, tx, year, month, now); err != nil {
		return core.Period{}, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE accounting_periods
		 SET status = 'CLOSED', closed_by = ?, closed_at = ?, notes = ?, updated_at = ?
		 WHERE year = ? AND month = ? AND status = 'OPEN'`,
		closedBy, now, notes, now, year, month)
	if err != nil {
		return core.Period{}, fmt.Errorf("close period: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Period{}, fmt.Errorf("close period: %w", err)
	}
	if n == 0 {
		return core.Period{}, fmt.Errorf("period %d-%02d: %w", year, month, core.ErrAlreadyClosed)
	}

	p, err := scanPeriod(tx.QueryRowContext(ctx,
		`SELECT `+periodColumns+` FROM accounting_periods WHERE year = ? AND month = ?`,
		year, month))
	if err != nil {
		return core.Period{}, fmt.Errorf("get period: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Period{}, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Period closed",
		"year", year, "month", month, "closed_by", closedBy)
	return p, nil
}

// ReopenPeriod transitions a CLOSED period back to OPEN and clears the
// close metadata. A period that was never materialized cannot be
// reopened.
func (r *SQLiteRepository) ReopenPeriod(ctx context.Context, year, month int, notes string) (core.Period, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Period{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM accounting_periods WHERE year = ? AND month = ?`,
		year, month).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Period{}, fmt.Errorf("period %d-%02d: %w", year, month, core.ErrPeriodNotFound)
	}
	if err != nil {
		return core.Period{}, fmt.Errorf("get period status: %w", err)
	}
	if status != string(core.StatusClosed) {
		return core.Period{}, fmt.Errorf("period %d-%02d: %w", year, month, core.ErrNotClosed)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE accounting_periods
		 SET status = 'OPEN', closed_by = NULL, closed_at = NULL, notes = ?, updated_at = ?
		 WHERE year = ? AND month = ? AND status = 'CLOSED'`,
		notes, r.now(), year, month)
	if err != nil {
		return core.Period{}, fmt.Errorf("reopen period: %w", err)
	}

	p, err := scanPeriod(tx.QueryRowContext(ctx,
		`SELECT `+periodColumns+` FROM accounting_periods WHERE year = ? AND month = ?`,
		year, month))
	if err != nil {
		return core.Period{}, fmt.Errorf("get period: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Period{}, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Period reopened", "year", year, "month", month)
	return p, nil
}

// ListPeriods returns all materialized periods for a year, oldest first.
func (r *SQLiteRepository) ListPeriods(ctx context.Context, year int) ([]core.Period, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+periodColumns+` FROM accounting_periods WHERE year = ? ORDER BY month`,
		year)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	defer rows.Close()

	var periods []core.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// PeriodClosed reports whether the period containing the date is CLOSED.
// A period that was never materialized was never closed.
func (r *SQLiteRepository) PeriodClosed(ctx context.Context, date core.Date) (bool, error) {
	closed, err := periodClosedQuery(ctx, r.db, date.Year(), date.Month())
	if err != nil {
		return false, fmt.Errorf("period status for %s: %w", date.Format(dateLayout), err)
	}
	return closed, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func periodClosedQuery(ctx context.Context, q querier, year, month int) (bool, error) {
	var status string
	err := q.QueryRowContext(ctx,
		`SELECT status FROM accounting_periods WHERE year = ? AND month = ?`,
		year, month).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status == string(core.StatusClosed), nil
}

// guardTx denies the write when the period containing date is CLOSED.
// It runs on the mutation's own transaction so the check and the write
// commit or fail together.
func guardTx(ctx context.Context, tx *sql.Tx, date core.Date) error {
	closed, err := periodClosedQuery(ctx, tx, date.Year(), date.Month())
	if err != nil {
		return fmt.Errorf("check period status: %w", err)
	}
	if closed {
		return fmt.Errorf("period %d-%02d: %w", date.Year(), date.Month(), core.ErrPeriodLocked)
	}
	return nil
}

// --- ledger entries ---

const entryColumns = `id, entry_date, description, amount_cents, category, created_at, updated_at`

func scanEntry(row interface{ Scan(...any) error }) (core.LedgerEntry, error) {
	var (
		e       core.LedgerEntry
		dateStr string
	)
	err := row.Scan(&e.ID, &dateStr, &e.Description, &e.Amount.Cents, &e.Category, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	t, err := time.ParseInLocation(dateLayout, dateStr, time.UTC)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("parse entry date %q: %w", dateStr, err)
	}
	e.Date = core.Date{Time: t}
	return e, nil
}

// CreateEntry inserts a ledger entry after re-checking, on the same
// transaction, that the entry's period is not CLOSED.
func (r *SQLiteRepository) CreateEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := guardTx(ctx, tx, e.Date); err != nil {
		return core.LedgerEntry{}, err
	}

	now := r.now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (entry_date, description, amount_cents, category, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Date.Format(dateLayout), e.Description, e.Amount.Cents, e.Category, now, now)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("create entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("create entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("commit: %w", err)
	}

	e.ID = id
	e.CreatedAt = now
	e.UpdatedAt = now
	slog.InfoContext(ctx, "Ledger entry created",
		"id", e.ID, "amount_cents", e.Amount.Cents, "category", e.Category,
		"entry_date", e.Date.Format(dateLayout))
	return e, nil
}

// UpdateEntry rewrites an entry, guarding both the stored date and the
// incoming one so an entry cannot be moved into or out of a closed
// period.
func (r *SQLiteRepository) UpdateEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanEntry(tx.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE id = ?`, e.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.LedgerEntry{}, fmt.Errorf("entry %d: %w", e.ID, core.ErrEntryNotFound)
	}
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("get entry: %w", err)
	}

	if err := guardTx(ctx, tx, existing.Date); err != nil {
		return core.LedgerEntry{}, err
	}
	if existing.Date != e.Date {
		if err := guardTx(ctx, tx, e.Date); err != nil {
			return core.LedgerEntry{}, err
		}
	}

	now := r.now()
	_, err = tx.ExecContext(ctx,
		`UPDATE ledger_entries
		 SET entry_date = ?, description = ?, amount_cents = ?, category = ?, updated_at = ?
		 WHERE id = ?`,
		e.Date.Format(dateLayout), e.Description, e.Amount.Cents, e.Category, now, e.ID)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("update entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("commit: %w", err)
	}

	e.CreatedAt = existing.CreatedAt
	e.UpdatedAt = now
	slog.InfoContext(ctx, "Ledger entry updated", "id", e.ID)
	return e, nil
}

// DeleteEntry removes an entry unless its period is CLOSED.
func (r *SQLiteRepository) DeleteEntry(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanEntry(tx.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("entry %d: %w", id, core.ErrEntryNotFound)
	}
	if err != nil {
		return fmt.Errorf("get entry: %w", err)
	}

	if err := guardTx(ctx, tx, existing.Date); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Ledger entry deleted", "id", id)
	return nil
}

func (r *SQLiteRepository) GetEntry(ctx context.Context, id int64) (core.LedgerEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.LedgerEntry{}, fmt.Errorf("entry %d: %w", id, core.ErrEntryNotFound)
	}
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// ListEntries returns all entries dated inside (year, month).
func (r *SQLiteRepository) ListEntries(ctx context.Context, year, month int) ([]core.LedgerEntry, error) {
	start := core.NewDate(year, month, 1)
	end := core.Date{Time: start.AddDate(0, 1, -1)}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries
		 WHERE entry_date BETWEEN ? AND ?
		 ORDER BY entry_date, id`,
		start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []core.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SumEntries returns the summed amount of entries inside the inclusive
// date range, optionally scoped to one category. No matching entries is
// a zero sum, not an error.
func (r *SQLiteRepository) SumEntries(ctx context.Context, category string, start, end core.Date) (core.Money, error) {
	query := `SELECT COALESCE(SUM(amount_cents), 0) FROM ledger_entries WHERE entry_date BETWEEN ? AND ?`
	args := []any{start.Format(dateLayout), end.Format(dateLayout)}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}

	var cents int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&cents); err != nil {
		return core.Money{}, fmt.Errorf("sum entries: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// --- budgets ---

const budgetColumns = `id, name, category, amount_cents, period_type, year, month, created_by, created_at, updated_at`

func scanBudget(row interface{ Scan(...any) error }) (core.Budget, error) {
	var (
		b          core.Budget
		periodType string
	)
	err := row.Scan(&b.ID, &b.Name, &b.Category, &b.Amount.Cents, &periodType,
		&b.Year, &b.Month, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return core.Budget{}, err
	}
	b.PeriodType = core.BudgetPeriodType(periodType)
	return b, nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	now := r.now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (name, category, amount_cents, period_type, year, month, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Name, b.Category, b.Amount.Cents, string(b.PeriodType), b.Year, b.Month, b.CreatedBy, now, now)
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}

	b.ID = id
	b.CreatedAt = now
	b.UpdatedAt = now
	slog.InfoContext(ctx, "Budget created",
		"id", b.ID, "name", b.Name, "amount_cents", b.Amount.Cents,
		"period_type", string(b.PeriodType), "year", b.Year, "month", b.Month)
	return b, nil
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	now := r.now()
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets
		 SET name = ?, category = ?, amount_cents = ?, period_type = ?, year = ?, month = ?, updated_at = ?
		 WHERE id = ?`,
		b.Name, b.Category, b.Amount.Cents, string(b.PeriodType), b.Year, b.Month, now, b.ID)
	if err != nil {
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}
	if n == 0 {
		return core.Budget{}, fmt.Errorf("budget %d: %w", b.ID, core.ErrBudgetNotFound)
	}

	return r.GetBudget(ctx, b.ID)
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("budget %d: %w", id, core.ErrBudgetNotFound)
	}

	slog.InfoContext(ctx, "Budget deleted", "id", id)
	return nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, id int64) (core.Budget, error) {
	b, err := scanBudget(r.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %d: %w", id, core.ErrBudgetNotFound)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

// ListBudgets returns budget definitions, optionally filtered by year
// (0 means all years).
func (r *SQLiteRepository) ListBudgets(ctx context.Context, year int) ([]core.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets`
	var args []any
	if year != 0 {
		query += ` WHERE year = ?`
		args = append(args, year)
	}
	query += ` ORDER BY year, month, name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// ListBudgetsForPeriod returns the budgets whose bounds contain
// (year, month): the month's own budgets plus that year's yearly ones.
func (r *SQLiteRepository) ListBudgetsForPeriod(ctx context.Context, year, month int) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets
		 WHERE year = ? AND (period_type = 'yearly' OR month = ?)
		 ORDER BY name`,
		year, month)
	if err != nil {
		return nil, fmt.Errorf("list budgets for period: %w", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}
