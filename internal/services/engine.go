package services

import (
	"kosh/internal/rates"
	"kosh/internal/storage"
)

// Engine bundles every ledger service behind one constructor so
// entrypoints wire the stack in one call.
type Engine struct {
	Loans    *LoanService
	Debts    *DebtService
	Budgets  *BudgetService
	Expenses *ExpenseService
	Rates    *RateService
}

func NewEngine(st *storage.Repository, normalizer *rates.Normalizer, alerts AlertPublisher, baseCurrency string, defaultThreshold float64, settlementRetries int) *Engine {
	budgets := NewBudgetService(st, alerts, defaultThreshold)
	return &Engine{
		Loans:    NewLoanService(st),
		Debts:    NewDebtService(st, settlementRetries),
		Budgets:  budgets,
		Expenses: NewExpenseService(st, normalizer, budgets, baseCurrency),
		Rates:    NewRateService(st),
	}
}
