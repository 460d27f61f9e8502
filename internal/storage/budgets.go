package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"kosh/internal/core"
)

const budgetColumns = `id, tenant_id, user_id, name, category, amount, currency,
	start_date, end_date, alert_threshold, created_at, updated_at`

func (r *Repository) CreateBudget(ctx context.Context, b core.Budget) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO budgets (`+budgetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID.String(), b.TenantID.String(), b.UserID.String(),
		b.Name, b.Category, b.Amount.String(), b.Currency,
		fmtDate(b.StartDate), fmtDate(b.EndDate), b.AlertThreshold.String(),
		fmtTime(b.CreatedAt), fmtTime(b.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	return nil
}

func (r *Repository) UpdateBudget(ctx context.Context, b core.Budget) error {
	res, err := r.db.ExecContext(ctx, `UPDATE budgets SET
		name = ?, category = ?, amount = ?, currency = ?,
		start_date = ?, end_date = ?, alert_threshold = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?`,
		b.Name, b.Category, b.Amount.String(), b.Currency,
		fmtDate(b.StartDate), fmtDate(b.EndDate), b.AlertThreshold.String(),
		fmtTime(b.UpdatedAt), b.ID.String(), b.TenantID.String())
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update budget rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// GetBudget fetches by ID alone; callers compare the returned tenant
// against their own before acting on the row.
func (r *Repository) GetBudget(ctx context.Context, id uuid.UUID) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id.String())
	b, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, notFoundOr("get budget", err)
	}
	return b, nil
}

func (r *Repository) ListBudgets(ctx context.Context, tenantID, userID uuid.UUID) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets
		 WHERE tenant_id = ? AND user_id = ?
		 ORDER BY start_date, name`,
		tenantID.String(), userID.String())
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

// ListAllBudgets crosses tenant boundaries and exists only for the
// worker's periodic alert sweep. It must never back a user-facing
// operation.
func (r *Repository) ListAllBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets ORDER BY tenant_id, start_date`)
	if err != nil {
		return nil, fmt.Errorf("list all budgets: %w", err)
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

func (r *Repository) DeleteBudget(ctx context.Context, tenantID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM budgets WHERE id = ? AND tenant_id = ?`,
		id.String(), tenantID.String())
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete budget rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func scanBudget(row rowScanner) (core.Budget, error) {
	var (
		b                    core.Budget
		id, tenantID, userID string
		amount, threshold    string
		startDate, endDate   string
		createdAt, updatedAt string
	)
	err := row.Scan(&id, &tenantID, &userID, &b.Name, &b.Category,
		&amount, &b.Currency, &startDate, &endDate, &threshold,
		&createdAt, &updatedAt)
	if err != nil {
		return core.Budget{}, err
	}

	if b.ID, err = uuid.Parse(id); err != nil {
		return core.Budget{}, err
	}
	if b.TenantID, err = uuid.Parse(tenantID); err != nil {
		return core.Budget{}, err
	}
	if b.UserID, err = uuid.Parse(userID); err != nil {
		return core.Budget{}, err
	}
	if b.Amount, err = parseDec(amount); err != nil {
		return core.Budget{}, err
	}
	if b.AlertThreshold, err = parseDec(threshold); err != nil {
		return core.Budget{}, err
	}
	if b.StartDate, err = parseDate(startDate); err != nil {
		return core.Budget{}, err
	}
	if b.EndDate, err = parseDate(endDate); err != nil {
		return core.Budget{}, err
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Budget{}, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}
