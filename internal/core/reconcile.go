package core

import "github.com/shopspring/decimal"

// BudgetVsActual is a read-time projection comparing a budget's target
// against summed ledger activity. It is recomputed on every request and
// never persisted, so it always reflects the latest ledger state.
type BudgetVsActual struct {
	BudgetID       int64
	Name           string
	Category       string // empty means all categories
	Year           int
	Month          int // 0 for yearly budgets
	Budgeted       Money
	Actual         Money
	Remaining      Money // Budgeted - Actual, negative when over budget
	PercentageUsed float64
}

var hundred = decimal.NewFromInt(100)

// Reconcile builds the projection for a budget given the summed actual
// spend inside the budget's bounds. Remaining may go negative; a zero
// budget yields a zero percentage rather than a division fault.
func Reconcile(b Budget, actual Money) BudgetVsActual {
	r := BudgetVsActual{
		BudgetID:  b.ID,
		Name:      b.Name,
		Category:  b.Category,
		Year:      b.Year,
		Month:     b.Month,
		Budgeted:  b.Amount,
		Actual:    actual,
		Remaining: Money{Cents: b.Amount.Cents - actual.Cents},
	}
	if b.Amount.Cents > 0 {
		pct := decimal.NewFromInt(actual.Cents).
			Div(decimal.NewFromInt(b.Amount.Cents)).
			Mul(hundred).
			Round(2)
		r.PercentageUsed = pct.InexactFloat64()
	}
	return r
}
