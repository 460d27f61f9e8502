package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"kosh/internal/amqp"
	"kosh/internal/cache"
	"kosh/internal/core"
	"kosh/internal/rates"
	"kosh/internal/storage"

	"github.com/shopspring/decimal"
)

type alertRecorder struct {
	messages []*amqp.BudgetAlertMessage
}

func (r *alertRecorder) PublishBudgetAlert(_ context.Context, msg *amqp.BudgetAlertMessage) error {
	r.messages = append(r.messages, msg)
	return nil
}

func newExpenseService(repo *storage.Repository, budgets *BudgetService, base string) *ExpenseService {
	normalizer := rates.NewNormalizer(repo, cache.NewLRUCache[decimal.Decimal](16, time.Minute), nil, time.Minute)
	return NewExpenseService(repo, normalizer, budgets, base)
}

func budgetDraft(tenantID, userID uuid.UUID) core.Budget {
	return core.Budget{
		TenantID:  tenantID,
		UserID:    userID,
		Name:      "Groceries Jan",
		Category:  "groceries",
		Amount:    d("1000"),
		Currency:  "INR",
		StartDate: date(2025, time.January, 1),
		EndDate:   date(2025, time.January, 31),
	}
}

func addExpense(t *testing.T, svc *ExpenseService, tenantID, userID uuid.UUID, category, amount string, day time.Time) {
	t.Helper()
	_, err := svc.CreateExpense(context.Background(), core.Expense{
		TenantID:        tenantID,
		UserID:          userID,
		Category:        category,
		Amount:          d(amount),
		Currency:        "INR",
		TransactionDate: day,
	})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
}

func TestBudgetUsageComputedOnRead(t *testing.T) {
	repo := newTestRepo(t)
	budgets := NewBudgetService(repo, nil, 80)
	expenses := newExpenseService(repo, budgets, "INR")
	ctx := context.Background()
	tenantID, userID := uuid.New(), uuid.New()

	b, err := budgets.CreateBudget(ctx, budgetDraft(tenantID, userID))
	if err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}
	if !b.AlertThreshold.Equal(d("80")) {
		t.Errorf("default threshold = %s, want 80", b.AlertThreshold)
	}

	addExpense(t, expenses, tenantID, userID, "groceries", "200", date(2025, time.January, 1))
	addExpense(t, expenses, tenantID, userID, "groceries", "100", date(2025, time.January, 31))
	// Outside window or category: must not count.
	addExpense(t, expenses, tenantID, userID, "groceries", "50", date(2025, time.February, 1))
	addExpense(t, expenses, tenantID, userID, "transport", "75", date(2025, time.January, 15))

	view, err := budgets.GetBudget(ctx, tenantID, b.ID)
	if err != nil {
		t.Fatalf("GetBudget: %v", err)
	}
	if !view.Usage.Spent.Equal(d("300")) {
		t.Errorf("spent = %s, want 300", view.Usage.Spent)
	}
	if !view.Usage.Remaining.Equal(d("700")) {
		t.Errorf("remaining = %s, want 700", view.Usage.Remaining)
	}
	if !view.Usage.PercentageUsed.Equal(d("30")) {
		t.Errorf("percentage = %s, want 30", view.Usage.PercentageUsed)
	}
}

func TestBudgetAlertPublishedOnExpenseWrite(t *testing.T) {
	repo := newTestRepo(t)
	recorder := &alertRecorder{}
	budgets := NewBudgetService(repo, recorder, 80)
	expenses := newExpenseService(repo, budgets, "INR")
	ctx := context.Background()
	tenantID, userID := uuid.New(), uuid.New()

	b, err := budgets.CreateBudget(ctx, budgetDraft(tenantID, userID))
	if err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}

	addExpense(t, expenses, tenantID, userID, "groceries", "790", date(2025, time.January, 10))
	if len(recorder.messages) != 0 {
		t.Fatalf("alert published at 79%% usage")
	}

	// Off-category and out-of-window writes must not alert either.
	addExpense(t, expenses, tenantID, userID, "transport", "500", date(2025, time.January, 10))
	addExpense(t, expenses, tenantID, userID, "groceries", "500", date(2025, time.February, 2))
	if len(recorder.messages) != 0 {
		t.Fatalf("alert published by non-matching expense")
	}

	// The write that crosses the threshold publishes immediately.
	addExpense(t, expenses, tenantID, userID, "groceries", "10", date(2025, time.January, 11))
	if len(recorder.messages) != 1 {
		t.Fatalf("alerts = %d, want 1", len(recorder.messages))
	}
	msg := recorder.messages[0]
	if msg.BudgetID != b.ID || !msg.PercentUsed.Equal(d("80")) {
		t.Errorf("alert = %+v, want budget %s at 80%%", msg, b.ID)
	}

	// Reads are side-effect free: an over-threshold budget does not
	// re-publish on every view.
	if _, err := budgets.GetBudget(ctx, tenantID, b.ID); err != nil {
		t.Fatalf("GetBudget: %v", err)
	}
	if _, err := budgets.ListBudgets(ctx, tenantID, userID); err != nil {
		t.Fatalf("ListBudgets: %v", err)
	}
	if len(recorder.messages) != 1 {
		t.Fatalf("alerts after reads = %d, want 1", len(recorder.messages))
	}
}

func TestBudgetCrossTenant(t *testing.T) {
	repo := newTestRepo(t)
	budgets := NewBudgetService(repo, nil, 80)
	ctx := context.Background()

	b, err := budgets.CreateBudget(ctx, budgetDraft(uuid.New(), uuid.New()))
	if err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}

	if _, err := budgets.GetBudget(ctx, uuid.New(), b.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign tenant get = %v, want ErrNotFound", err)
	}
	if _, err := budgets.UpdateBudget(ctx, uuid.New(), b); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign tenant update = %v, want ErrNotFound", err)
	}
	if err := budgets.DeleteBudget(ctx, uuid.New(), b.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign tenant delete = %v, want ErrNotFound", err)
	}
}

func TestBudgetValidation(t *testing.T) {
	budgets := NewBudgetService(newTestRepo(t), nil, 80)
	ctx := context.Background()

	bad := budgetDraft(uuid.New(), uuid.New())
	bad.EndDate = bad.StartDate.AddDate(0, 0, -1)
	if _, err := budgets.CreateBudget(ctx, bad); !errors.Is(err, core.ErrInvalidWindow) {
		t.Errorf("inverted window = %v, want ErrInvalidWindow", err)
	}

	bad = budgetDraft(uuid.New(), uuid.New())
	bad.Amount = d("0")
	if _, err := budgets.CreateBudget(ctx, bad); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("zero cap = %v, want ErrInvalidAmount", err)
	}
}
