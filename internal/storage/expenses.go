package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"kosh/internal/core"
)

const expenseColumns = `id, tenant_id, user_id, category, amount, currency,
	amount_in_base, exchange_rate, description, transaction_date, payment_method,
	created_at, updated_at`

func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO expenses (`+expenseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.TenantID.String(), e.UserID.String(),
		e.Category, e.Amount.String(), e.Currency,
		e.AmountInBase.String(), e.ExchangeRate.String(),
		e.Description, fmtDate(e.TransactionDate), e.PaymentMethod,
		fmtTime(e.CreatedAt), fmtTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

func (r *Repository) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx, `UPDATE expenses SET
		category = ?, amount = ?, currency = ?, amount_in_base = ?,
		exchange_rate = ?, description = ?, transaction_date = ?,
		payment_method = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?`,
		e.Category, e.Amount.String(), e.Currency, e.AmountInBase.String(),
		e.ExchangeRate.String(), e.Description, fmtDate(e.TransactionDate),
		e.PaymentMethod, fmtTime(e.UpdatedAt),
		e.ID.String(), e.TenantID.String())
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update expense rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// GetExpense fetches by ID alone; callers compare the returned tenant
// against their own before acting on the row.
func (r *Repository) GetExpense(ctx context.Context, id uuid.UUID) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id.String())
	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, notFoundOr("get expense", err)
	}
	return e, nil
}

func (r *Repository) ListExpenses(ctx context.Context, tenantID, userID uuid.UUID) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses
		 WHERE tenant_id = ? AND user_id = ?
		 ORDER BY transaction_date, id`,
		tenantID.String(), userID.String())
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return collectExpenses(rows)
}

// ListExpensesInWindow feeds budget aggregation: the date bounds are
// inclusive on both ends.
func (r *Repository) ListExpensesInWindow(ctx context.Context, tenantID, userID uuid.UUID, from, to string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses
		 WHERE tenant_id = ? AND user_id = ?
		   AND transaction_date >= ? AND transaction_date <= ?
		 ORDER BY transaction_date, id`,
		tenantID.String(), userID.String(), from, to)
	if err != nil {
		return nil, fmt.Errorf("list expenses in window: %w", err)
	}
	return collectExpenses(rows)
}

func (r *Repository) DeleteExpense(ctx context.Context, tenantID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND tenant_id = ?`,
		id.String(), tenantID.String())
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func collectExpenses(rows *sql.Rows) ([]core.Expense, error) {
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e                    core.Expense
		id, tenantID, userID string
		amount, amountInBase string
		exchangeRate         string
		transactionDate      string
		createdAt, updatedAt string
	)
	err := row.Scan(&id, &tenantID, &userID, &e.Category, &amount, &e.Currency,
		&amountInBase, &exchangeRate, &e.Description, &transactionDate,
		&e.PaymentMethod, &createdAt, &updatedAt)
	if err != nil {
		return core.Expense{}, err
	}

	if e.ID, err = uuid.Parse(id); err != nil {
		return core.Expense{}, err
	}
	if e.TenantID, err = uuid.Parse(tenantID); err != nil {
		return core.Expense{}, err
	}
	if e.UserID, err = uuid.Parse(userID); err != nil {
		return core.Expense{}, err
	}
	if e.Amount, err = parseDec(amount); err != nil {
		return core.Expense{}, err
	}
	if e.AmountInBase, err = parseDec(amountInBase); err != nil {
		return core.Expense{}, err
	}
	if e.ExchangeRate, err = parseDec(exchangeRate); err != nil {
		return core.Expense{}, err
	}
	if e.TransactionDate, err = parseDate(transactionDate); err != nil {
		return core.Expense{}, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Expense{}, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}
