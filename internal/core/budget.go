package core

import "github.com/shopspring/decimal"

// BudgetUsage is the computed spend position of a budget. It is never
// cached in the budget record; every read recomputes it.
type BudgetUsage struct {
	Spent          decimal.Decimal
	Remaining      decimal.Decimal // negative when over budget
	PercentageUsed decimal.Decimal
}

// Matches reports whether the expense falls inside the budget's window
// (inclusive on both ends) and passes its optional category filter.
func (b Budget) Matches(e Expense) bool {
	day := DateOnly(e.TransactionDate)
	if day.Before(DateOnly(b.StartDate)) || day.After(DateOnly(b.EndDate)) {
		return false
	}
	if b.Category != "" && e.Category != b.Category {
		return false
	}
	return true
}

// ComputeBudgetUsage sums base-currency expense amounts against the
// budget cap. Over-budget is a valid, representable state, not an
// error. A non-positive cap reports zero percent used.
func ComputeBudgetUsage(b Budget, expenses []Expense) BudgetUsage {
	spent := decimal.Zero
	for _, e := range expenses {
		if b.Matches(e) {
			spent = spent.Add(e.AmountInBase)
		}
	}
	spent = RoundCents(spent)

	usage := BudgetUsage{
		Spent:     spent,
		Remaining: RoundCents(b.Amount.Sub(spent)),
	}
	if b.Amount.IsPositive() {
		usage.PercentageUsed = spent.Div(b.Amount).Mul(hundred).Round(2)
	} else {
		usage.PercentageUsed = decimal.Zero
	}
	return usage
}

// AlertTriggered reports whether usage has reached the budget's alert
// threshold percentage.
func (b Budget) AlertTriggered(u BudgetUsage) bool {
	if !b.AlertThreshold.IsPositive() {
		return false
	}
	return u.PercentageUsed.GreaterThanOrEqual(b.AlertThreshold)
}
