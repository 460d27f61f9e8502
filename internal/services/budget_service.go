package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"kosh/internal/amqp"
	"kosh/internal/core"
	"kosh/internal/storage"
)

// AlertPublisher sends budget threshold alerts to the worker queue.
type AlertPublisher interface {
	PublishBudgetAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error
}

// BudgetService manages budgets and computes their usage on demand.
// Usage figures are never stored; every read recomputes them from the
// expenses in the budget's window.
type BudgetService struct {
	storage          *storage.Repository
	alerts           AlertPublisher
	defaultThreshold decimal.Decimal
}

func NewBudgetService(st *storage.Repository, alerts AlertPublisher, defaultThreshold float64) *BudgetService {
	return &BudgetService{
		storage:          st,
		alerts:           alerts,
		defaultThreshold: decimal.NewFromFloat(defaultThreshold),
	}
}

// BudgetView pairs a budget with its computed usage.
type BudgetView struct {
	Budget core.Budget
	Usage  core.BudgetUsage
}

func (s *BudgetService) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if b.AlertThreshold.IsZero() {
		b.AlertThreshold = s.defaultThreshold
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	now := time.Now().UTC()
	b.ID = uuid.New()
	b.StartDate = core.DateOnly(b.StartDate)
	b.EndDate = core.DateOnly(b.EndDate)
	b.CreatedAt = now
	b.UpdatedAt = now

	if err := s.storage.CreateBudget(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	return b, nil
}

func (s *BudgetService) UpdateBudget(ctx context.Context, tenantID uuid.UUID, b core.Budget) (core.Budget, error) {
	existing, err := s.storage.GetBudget(ctx, b.ID)
	if err != nil {
		return core.Budget{}, err
	}
	if err := checkTenant(ctx, "budget", b.ID, existing.TenantID, tenantID); err != nil {
		return core.Budget{}, err
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	b.TenantID = existing.TenantID
	b.UserID = existing.UserID
	b.StartDate = core.DateOnly(b.StartDate)
	b.EndDate = core.DateOnly(b.EndDate)
	b.CreatedAt = existing.CreatedAt
	b.UpdatedAt = time.Now().UTC()

	if err := s.storage.UpdateBudget(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}
	return b, nil
}

// GetBudget returns the budget with usage computed from the expenses
// in its window. Reads never publish alerts; those fire on expense
// writes.
func (s *BudgetService) GetBudget(ctx context.Context, tenantID, id uuid.UUID) (BudgetView, error) {
	b, err := s.storage.GetBudget(ctx, id)
	if err != nil {
		return BudgetView{}, err
	}
	if err := checkTenant(ctx, "budget", id, b.TenantID, tenantID); err != nil {
		return BudgetView{}, err
	}
	return s.view(ctx, b)
}

func (s *BudgetService) ListBudgets(ctx context.Context, tenantID, userID uuid.UUID) ([]BudgetView, error) {
	budgets, err := s.storage.ListBudgets(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	views := make([]BudgetView, 0, len(budgets))
	for _, b := range budgets {
		v, err := s.view(ctx, b)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *BudgetService) DeleteBudget(ctx context.Context, tenantID, id uuid.UUID) error {
	return s.storage.DeleteBudget(ctx, tenantID, id)
}

// CheckExpenseAlerts re-evaluates every budget the expense falls into
// and publishes an alert for each one over its threshold. Called after
// expense writes; failures are logged, never surfaced, so a broker
// outage cannot fail the write.
func (s *BudgetService) CheckExpenseAlerts(ctx context.Context, e core.Expense) {
	if s.alerts == nil {
		return
	}
	budgets, err := s.storage.ListBudgets(ctx, e.TenantID, e.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load budgets for alert check",
			"tenant_id", e.TenantID,
			"error", err)
		return
	}

	day := core.DateOnly(e.TransactionDate)
	for _, b := range budgets {
		if day.Before(core.DateOnly(b.StartDate)) || day.After(core.DateOnly(b.EndDate)) {
			continue
		}
		if b.Category != "" && b.Category != e.Category {
			continue
		}
		v, err := s.view(ctx, b)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to compute budget usage for alert check",
				"budget_id", b.ID,
				"error", err)
			continue
		}
		if b.AlertTriggered(v.Usage) {
			s.publishAlert(ctx, b, v.Usage)
		}
	}
}

func (s *BudgetService) view(ctx context.Context, b core.Budget) (BudgetView, error) {
	from := b.StartDate.Format("2006-01-02")
	to := b.EndDate.Format("2006-01-02")
	expenses, err := s.storage.ListExpensesInWindow(ctx, b.TenantID, b.UserID, from, to)
	if err != nil {
		return BudgetView{}, fmt.Errorf("load budget expenses: %w", err)
	}
	return BudgetView{Budget: b, Usage: core.ComputeBudgetUsage(b, expenses)}, nil
}

func (s *BudgetService) publishAlert(ctx context.Context, b core.Budget, usage core.BudgetUsage) {
	if s.alerts == nil {
		return
	}
	msg := &amqp.BudgetAlertMessage{
		BudgetID:    b.ID,
		TenantID:    b.TenantID,
		UserID:      b.UserID,
		Name:        b.Name,
		Category:    b.Category,
		Currency:    b.Currency,
		Cap:         b.Amount,
		Spent:       usage.Spent,
		PercentUsed: usage.PercentageUsed,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.alerts.PublishBudgetAlert(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish budget alert",
			"budget_id", b.ID,
			"tenant_id", b.TenantID,
			"error", err)
	}
}
