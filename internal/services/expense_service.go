package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kosh/internal/core"
	"kosh/internal/rates"
	"kosh/internal/storage"
)

// ExpenseService records expenses, normalizing each amount into the
// base currency at write time with the rate in effect on the
// transaction date. The normalized amount and the rate used are frozen
// on the record; later rate changes never rewrite history.
type ExpenseService struct {
	storage      *storage.Repository
	normalizer   *rates.Normalizer
	budgets      *BudgetService
	baseCurrency string
}

// NewExpenseService builds the expense writer. budgets may be nil to
// run without threshold alerts.
func NewExpenseService(st *storage.Repository, normalizer *rates.Normalizer, budgets *BudgetService, baseCurrency string) *ExpenseService {
	return &ExpenseService{
		storage:      st,
		normalizer:   normalizer,
		budgets:      budgets,
		baseCurrency: baseCurrency,
	}
}

func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	now := time.Now().UTC()
	e.ID = uuid.New()
	e.TransactionDate = core.DateOnly(e.TransactionDate)
	e.CreatedAt = now
	e.UpdatedAt = now

	if err := s.normalize(ctx, &e); err != nil {
		return core.Expense{}, err
	}
	if err := s.storage.CreateExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	s.checkAlerts(ctx, e)
	return e, nil
}

// UpdateExpense rewrites an expense, re-normalizing with the rate for
// its (possibly changed) transaction date.
func (s *ExpenseService) UpdateExpense(ctx context.Context, tenantID uuid.UUID, e core.Expense) (core.Expense, error) {
	existing, err := s.storage.GetExpense(ctx, e.ID)
	if err != nil {
		return core.Expense{}, err
	}
	if err := checkTenant(ctx, "expense", e.ID, existing.TenantID, tenantID); err != nil {
		return core.Expense{}, err
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	e.TenantID = existing.TenantID
	e.UserID = existing.UserID
	e.TransactionDate = core.DateOnly(e.TransactionDate)
	e.CreatedAt = existing.CreatedAt
	e.UpdatedAt = time.Now().UTC()

	if err := s.normalize(ctx, &e); err != nil {
		return core.Expense{}, err
	}
	if err := s.storage.UpdateExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	s.checkAlerts(ctx, e)
	return e, nil
}

func (s *ExpenseService) GetExpense(ctx context.Context, tenantID, id uuid.UUID) (core.Expense, error) {
	e, err := s.storage.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	if err := checkTenant(ctx, "expense", id, e.TenantID, tenantID); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (s *ExpenseService) ListExpenses(ctx context.Context, tenantID, userID uuid.UUID) ([]core.Expense, error) {
	return s.storage.ListExpenses(ctx, tenantID, userID)
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, tenantID, id uuid.UUID) error {
	return s.storage.DeleteExpense(ctx, tenantID, id)
}

func (s *ExpenseService) checkAlerts(ctx context.Context, e core.Expense) {
	if s.budgets == nil {
		return
	}
	s.budgets.CheckExpenseAlerts(ctx, e)
}

func (s *ExpenseService) normalize(ctx context.Context, e *core.Expense) error {
	inBase, rate, err := s.normalizer.Normalize(ctx, e.Amount, e.Currency, s.baseCurrency, e.TransactionDate)
	if err != nil {
		return fmt.Errorf("normalize amount: %w", err)
	}
	e.AmountInBase = inBase
	e.ExchangeRate = rate
	return nil
}
