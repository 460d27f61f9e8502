// Package worker delivers budget threshold alerts consumed from AMQP.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kosh/internal/amqp"
	"kosh/internal/core"
	"kosh/internal/storage"
)

// Notifier delivers an alert to its final destination. The default
// implementation writes a structured log line; email or push delivery
// plugs in here.
type Notifier interface {
	Notify(ctx context.Context, msg *amqp.BudgetAlertMessage) error
}

// LogNotifier emits each alert as a structured log record.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, msg *amqp.BudgetAlertMessage) error {
	slog.InfoContext(ctx, "BUDGET ALERT",
		"budget_id", msg.BudgetID,
		"tenant_id", msg.TenantID,
		"name", msg.Name,
		"spent", msg.Spent,
		"cap", msg.Cap,
		"percentage_used", msg.PercentUsed,
		"currency", msg.Currency)
	return nil
}

// AlertWorker validates queued alerts against current state before
// delivering them. An alert for a deleted budget, or one whose usage
// has since dropped below the threshold, is acked and dropped.
type AlertWorker struct {
	storage  *storage.Repository
	notifier Notifier
}

func NewAlertWorker(st *storage.Repository, notifier Notifier) *AlertWorker {
	return &AlertWorker{storage: st, notifier: notifier}
}

// HandleAlert processes one queued alert. A nil return acks the
// message; alerts that are stale by the time they are consumed are
// dropped, not requeued.
func (w *AlertWorker) HandleAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error {
	b, err := w.storage.GetBudget(ctx, msg.BudgetID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			slog.InfoContext(ctx, "Dropping alert for deleted budget", "budget_id", msg.BudgetID)
			return nil
		}
		return fmt.Errorf("load budget: %w", err)
	}

	usage, err := w.currentUsage(ctx, b)
	if err != nil {
		return err
	}
	if !b.AlertTriggered(usage) {
		slog.InfoContext(ctx, "Dropping stale alert, usage back under threshold",
			"budget_id", b.ID,
			"percentage_used", usage.PercentageUsed)
		return nil
	}

	// Deliver with the recomputed figures, not the queued snapshot.
	msg.Spent = usage.Spent
	msg.PercentUsed = usage.PercentageUsed
	return w.notifier.Notify(ctx, msg)
}

// SweepBudgets re-evaluates every budget and delivers alerts for those
// over threshold. It backstops lost AMQP messages.
func (w *AlertWorker) SweepBudgets(ctx context.Context) error {
	budgets, err := w.storage.ListAllBudgets(ctx)
	if err != nil {
		return fmt.Errorf("list budgets for sweep: %w", err)
	}

	delivered := 0
	for _, b := range budgets {
		usage, err := w.currentUsage(ctx, b)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to evaluate budget during sweep",
				"budget_id", b.ID, "error", err)
			continue
		}
		if !b.AlertTriggered(usage) {
			continue
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
		if err := w.notifier.Notify(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to deliver sweep alert",
				"budget_id", b.ID, "error", err)
			continue
		}
		delivered++
	}

	if delivered > 0 {
		slog.InfoContext(ctx, "Budget sweep completed",
			"budgets", len(budgets),
			"alerts", delivered)
	}
	return nil
}

// RunPeriodicSweep sweeps on the given interval until ctx is done.
func (w *AlertWorker) RunPeriodicSweep(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.SweepBudgets(ctx); err != nil {
				slog.ErrorContext(ctx, "Budget sweep failed", "error", err)
			}
		}
	}
}

func (w *AlertWorker) currentUsage(ctx context.Context, b core.Budget) (core.BudgetUsage, error) {
	from := b.StartDate.Format("2006-01-02")
	to := b.EndDate.Format("2006-01-02")
	expenses, err := w.storage.ListExpensesInWindow(ctx, b.TenantID, b.UserID, from, to)
	if err != nil {
		return core.BudgetUsage{}, fmt.Errorf("load budget expenses: %w", err)
	}
	return core.ComputeBudgetUsage(b, expenses), nil
}
