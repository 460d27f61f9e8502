package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"kosh/internal/core"
)

const debtColumns = `id, tenant_id, user_id, role, counterparty, counterparty_contact,
	principal, currency, rate, method, origination_date, due_date, purpose, status,
	total_applied, closed_at, notes, version, created_at, updated_at`

func (r *Repository) CreateDebt(ctx context.Context, debt core.Debt) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO debts (`+debtColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			debt.ID.String(), debt.TenantID.String(), debt.UserID.String(),
			string(debt.Role), debt.Counterparty, debt.CounterpartyContact,
			debt.Principal.String(), debt.Currency, debt.Rate.String(),
			string(debt.Method), fmtDate(debt.OriginationDate), fmtDatePtr(debt.DueDate),
			debt.Purpose, string(debt.Status), debt.TotalApplied.String(),
			fmtTimePtr(debt.ClosedAt), debt.Notes, debt.Version,
			fmtTime(debt.CreatedAt), fmtTime(debt.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert debt: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Debt saved",
		"debt_id", debt.ID,
		"tenant_id", debt.TenantID,
		"role", debt.Role,
		"principal", debt.Principal)
	return nil
}

// GetDebt fetches by ID alone; callers compare the returned tenant
// against their own before acting on the row.
func (r *Repository) GetDebt(ctx context.Context, id uuid.UUID) (core.Debt, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+debtColumns+` FROM debts WHERE id = ?`, id.String())
	debt, err := scanDebt(row)
	if err != nil {
		return core.Debt{}, notFoundOr("get debt", err)
	}
	return debt, nil
}

func (r *Repository) ListDebts(ctx context.Context, tenantID, userID uuid.UUID, role core.DebtRole) ([]core.Debt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+debtColumns+` FROM debts
		 WHERE tenant_id = ? AND user_id = ? AND role = ?
		 ORDER BY origination_date, id`,
		tenantID.String(), userID.String(), string(role))
	if err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}
	defer rows.Close()

	var debts []core.Debt
	for rows.Next() {
		debt, err := scanDebt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan debt: %w", err)
		}
		debts = append(debts, debt)
	}
	return debts, rows.Err()
}

func (r *Repository) DeleteDebt(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM debts WHERE id = ? AND tenant_id = ?`,
			id.String(), tenantID.String())
		if err != nil {
			return fmt.Errorf("delete debt: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete debt rows affected: %w", err)
		}
		if n == 0 {
			return core.ErrNotFound
		}
		return nil
	})
}

// updateDebtGuarded writes the debt's derived fields under the
// optimistic-concurrency version check. Zero rows affected means a
// concurrent writer got there first.
func updateDebtGuarded(ctx context.Context, tx *sql.Tx, debt core.Debt, expectedVersion int64) error {
	res, err := tx.ExecContext(ctx, `UPDATE debts SET
		counterparty = ?, counterparty_contact = ?, due_date = ?, purpose = ?,
		status = ?, total_applied = ?, closed_at = ?, notes = ?,
		version = version + 1, updated_at = ?
		WHERE id = ? AND tenant_id = ? AND version = ?`,
		debt.Counterparty, debt.CounterpartyContact, fmtDatePtr(debt.DueDate),
		debt.Purpose, string(debt.Status), debt.TotalApplied.String(),
		fmtTimePtr(debt.ClosedAt), debt.Notes, fmtTime(debt.UpdatedAt),
		debt.ID.String(), debt.TenantID.String(), expectedVersion)
	if err != nil {
		return fmt.Errorf("update debt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update debt rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrConcurrencyConflict
	}
	return nil
}

// ApplySettlement inserts the settlement event and writes the debt's
// recomputed derived fields together, or not at all.
func (r *Repository) ApplySettlement(ctx context.Context, debt core.Debt, ev core.Settlement, expectedVersion int64) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := updateDebtGuarded(ctx, tx, debt, expectedVersion); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO settlements
			(id, tenant_id, debt_id, amount, event_date, payment_method, reference, note, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.ID.String(), ev.TenantID.String(), ev.DebtID.String(),
			ev.Amount.String(), fmtDate(ev.EventDate), ev.PaymentMethod,
			ev.Reference, ev.Note, fmtTime(ev.CreatedAt), fmtTime(ev.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert settlement: %w", err)
		}
		return nil
	})
}

// UpdateSettlement rewrites an edited settlement event alongside the
// debt's retroactively adjusted derived fields.
func (r *Repository) UpdateSettlement(ctx context.Context, debt core.Debt, ev core.Settlement, expectedVersion int64) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := updateDebtGuarded(ctx, tx, debt, expectedVersion); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE settlements SET
			amount = ?, event_date = ?, payment_method = ?, reference = ?, note = ?, updated_at = ?
			WHERE id = ? AND tenant_id = ?`,
			ev.Amount.String(), fmtDate(ev.EventDate), ev.PaymentMethod,
			ev.Reference, ev.Note, fmtTime(ev.UpdatedAt),
			ev.ID.String(), ev.TenantID.String())
		if err != nil {
			return fmt.Errorf("update settlement: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update settlement rows affected: %w", err)
		}
		if n == 0 {
			return core.ErrNotFound
		}
		return nil
	})
}

// DeleteSettlement removes the event and reverses its contribution to
// the debt in one transaction.
func (r *Repository) DeleteSettlement(ctx context.Context, debt core.Debt, eventID uuid.UUID, expectedVersion int64) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := updateDebtGuarded(ctx, tx, debt, expectedVersion); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM settlements WHERE id = ? AND tenant_id = ?`,
			eventID.String(), debt.TenantID.String())
		if err != nil {
			return fmt.Errorf("delete settlement: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete settlement rows affected: %w", err)
		}
		if n == 0 {
			return core.ErrNotFound
		}
		return nil
	})
}

// UpdateDebt persists derived-field changes that carry no settlement
// event of their own (reopen, detail edits).
func (r *Repository) UpdateDebt(ctx context.Context, debt core.Debt, expectedVersion int64) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return updateDebtGuarded(ctx, tx, debt, expectedVersion)
	})
}

func (r *Repository) GetSettlement(ctx context.Context, id uuid.UUID) (core.Settlement, error) {
	row := r.db.QueryRowContext(ctx, `SELECT
		id, tenant_id, debt_id, amount, event_date, payment_method, reference, note, created_at, updated_at
		FROM settlements WHERE id = ?`, id.String())
	ev, err := scanSettlement(row)
	if err != nil {
		return core.Settlement{}, notFoundOr("get settlement", err)
	}
	return ev, nil
}

func (r *Repository) ListSettlements(ctx context.Context, debtID uuid.UUID) ([]core.Settlement, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT
		id, tenant_id, debt_id, amount, event_date, payment_method, reference, note, created_at, updated_at
		FROM settlements WHERE debt_id = ? ORDER BY event_date, created_at`, debtID.String())
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	defer rows.Close()

	var events []core.Settlement
	for rows.Next() {
		ev, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan settlement: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanDebt(row rowScanner) (core.Debt, error) {
	var (
		debt                 core.Debt
		id, tenantID, userID string
		role, method, status string
		principal, rate      string
		totalApplied         string
		originationDate      string
		dueDate, closedAt    sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&id, &tenantID, &userID, &role, &debt.Counterparty,
		&debt.CounterpartyContact, &principal, &debt.Currency, &rate, &method,
		&originationDate, &dueDate, &debt.Purpose, &status, &totalApplied,
		&closedAt, &debt.Notes, &debt.Version, &createdAt, &updatedAt)
	if err != nil {
		return core.Debt{}, err
	}

	if debt.ID, err = uuid.Parse(id); err != nil {
		return core.Debt{}, err
	}
	if debt.TenantID, err = uuid.Parse(tenantID); err != nil {
		return core.Debt{}, err
	}
	if debt.UserID, err = uuid.Parse(userID); err != nil {
		return core.Debt{}, err
	}
	if debt.Principal, err = parseDec(principal); err != nil {
		return core.Debt{}, err
	}
	if debt.Rate, err = parseDec(rate); err != nil {
		return core.Debt{}, err
	}
	if debt.TotalApplied, err = parseDec(totalApplied); err != nil {
		return core.Debt{}, err
	}
	if debt.OriginationDate, err = parseDate(originationDate); err != nil {
		return core.Debt{}, err
	}
	if debt.DueDate, err = parseDatePtr(dueDate); err != nil {
		return core.Debt{}, err
	}
	if debt.ClosedAt, err = parseTimePtr(closedAt); err != nil {
		return core.Debt{}, err
	}
	if debt.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Debt{}, err
	}
	if debt.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Debt{}, err
	}
	debt.Role = core.DebtRole(role)
	debt.Method = core.InterestMethod(method)
	debt.Status = core.DebtStatus(status)
	return debt, nil
}

func scanSettlement(row rowScanner) (core.Settlement, error) {
	var (
		ev                   core.Settlement
		id, tenantID, debtID string
		amount, eventDate    string
		createdAt, updatedAt string
	)
	err := row.Scan(&id, &tenantID, &debtID, &amount, &eventDate,
		&ev.PaymentMethod, &ev.Reference, &ev.Note, &createdAt, &updatedAt)
	if err != nil {
		return core.Settlement{}, err
	}

	if ev.ID, err = uuid.Parse(id); err != nil {
		return core.Settlement{}, err
	}
	if ev.TenantID, err = uuid.Parse(tenantID); err != nil {
		return core.Settlement{}, err
	}
	if ev.DebtID, err = uuid.Parse(debtID); err != nil {
		return core.Settlement{}, err
	}
	if ev.Amount, err = parseDec(amount); err != nil {
		return core.Settlement{}, err
	}
	if ev.EventDate, err = parseDate(eventDate); err != nil {
		return core.Settlement{}, err
	}
	if ev.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Settlement{}, err
	}
	if ev.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Settlement{}, err
	}
	return ev, nil
}
