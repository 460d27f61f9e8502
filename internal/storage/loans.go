package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"kosh/internal/core"
)

const loanColumns = `id, tenant_id, user_id, loan_type, lender_name, account_number,
	principal, currency, annual_rate, interest_type, tenure_months, monthly_payment,
	start_date, end_date, status, notes, created_at, updated_at`

// CreateLoan writes the loan and its full installment batch in one
// transaction; either everything lands or nothing does.
func (r *Repository) CreateLoan(ctx context.Context, loan core.Loan, installments []core.Installment) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertLoan(ctx, tx, loan); err != nil {
			return err
		}
		return insertInstallments(ctx, tx, installments)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Loan saved",
		"loan_id", loan.ID,
		"tenant_id", loan.TenantID,
		"principal", loan.Principal,
		"tenure_months", loan.TenureMonths)
	return nil
}

// ReplaceLoan updates the loan row and swaps the full installment set
// for the regenerated schedule, atomically.
func (r *Repository) ReplaceLoan(ctx context.Context, loan core.Loan, installments []core.Installment) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE loans SET
			loan_type = ?, lender_name = ?, account_number = ?, principal = ?,
			currency = ?, annual_rate = ?, interest_type = ?, tenure_months = ?,
			monthly_payment = ?, start_date = ?, end_date = ?, status = ?, notes = ?,
			updated_at = ?
			WHERE id = ? AND tenant_id = ?`,
			loan.LoanType, loan.LenderName, loan.AccountNumber, loan.Principal.String(),
			loan.Currency, loan.AnnualRate.String(), loan.InterestType, loan.TenureMonths,
			loan.MonthlyPayment.String(), fmtDate(loan.StartDate), fmtDate(loan.EndDate),
			string(loan.Status), loan.Notes, fmtTime(loan.UpdatedAt),
			loan.ID.String(), loan.TenantID.String())
		if err != nil {
			return fmt.Errorf("update loan: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update loan rows affected: %w", err)
		}
		if n == 0 {
			return core.ErrNotFound
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM installments WHERE loan_id = ? AND tenant_id = ?`,
			loan.ID.String(), loan.TenantID.String()); err != nil {
			return fmt.Errorf("discard installments: %w", err)
		}
		return insertInstallments(ctx, tx, installments)
	})
}

func insertLoan(ctx context.Context, tx *sql.Tx, loan core.Loan) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO loans (`+loanColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID.String(), loan.TenantID.String(), loan.UserID.String(),
		loan.LoanType, loan.LenderName, loan.AccountNumber,
		loan.Principal.String(), loan.Currency, loan.AnnualRate.String(),
		loan.InterestType, loan.TenureMonths, loan.MonthlyPayment.String(),
		fmtDate(loan.StartDate), fmtDate(loan.EndDate), string(loan.Status),
		loan.Notes, fmtTime(loan.CreatedAt), fmtTime(loan.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

func insertInstallments(ctx context.Context, tx *sql.Tx, installments []core.Installment) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO installments
		(id, tenant_id, loan_id, number, due_date, paid_date, amount,
		 principal_component, interest_component, outstanding_balance, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare installment insert: %w", err)
	}
	defer stmt.Close()

	for _, ins := range installments {
		if _, err := stmt.ExecContext(ctx,
			ins.ID.String(), ins.TenantID.String(), ins.LoanID.String(),
			ins.Number, fmtDate(ins.DueDate), fmtDatePtr(ins.PaidDate),
			ins.Amount.String(), ins.PrincipalComponent.String(),
			ins.InterestComponent.String(), ins.OutstandingBalance.String(),
			string(ins.Status)); err != nil {
			return fmt.Errorf("insert installment %d: %w", ins.Number, err)
		}
	}
	return nil
}

// GetLoan fetches by ID alone; the caller compares the returned tenant
// against its own before using the row.
func (r *Repository) GetLoan(ctx context.Context, id uuid.UUID) (core.Loan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = ?`, id.String())
	loan, err := scanLoan(row)
	if err != nil {
		return core.Loan{}, notFoundOr("get loan", err)
	}
	return loan, nil
}

func (r *Repository) ListLoans(ctx context.Context, tenantID, userID uuid.UUID) ([]core.Loan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+loanColumns+` FROM loans
		 WHERE tenant_id = ? AND user_id = ? ORDER BY start_date, id`,
		tenantID.String(), userID.String())
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	var loans []core.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

func (r *Repository) DeleteLoan(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM loans WHERE id = ? AND tenant_id = ?`,
			id.String(), tenantID.String())
		if err != nil {
			return fmt.Errorf("delete loan: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete loan rows affected: %w", err)
		}
		if n == 0 {
			return core.ErrNotFound
		}
		return nil
	})
}

func (r *Repository) ListInstallments(ctx context.Context, loanID uuid.UUID) ([]core.Installment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT
		id, tenant_id, loan_id, number, due_date, paid_date, amount,
		principal_component, interest_component, outstanding_balance, status
		FROM installments WHERE loan_id = ? ORDER BY number`, loanID.String())
	if err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	defer rows.Close()

	var installments []core.Installment
	for rows.Next() {
		ins, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan installment: %w", err)
		}
		installments = append(installments, ins)
	}
	return installments, rows.Err()
}

func (r *Repository) GetInstallment(ctx context.Context, id uuid.UUID) (core.Installment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT
		id, tenant_id, loan_id, number, due_date, paid_date, amount,
		principal_component, interest_component, outstanding_balance, status
		FROM installments WHERE id = ?`, id.String())
	ins, err := scanInstallment(row)
	if err != nil {
		return core.Installment{}, notFoundOr("get installment", err)
	}
	return ins, nil
}

// MarkInstallmentPaid records the paid date and, when no pending
// installments remain, closes the loan — in one transaction.
func (r *Repository) MarkInstallmentPaid(ctx context.Context, tenantID, id uuid.UUID, paidDate time.Time) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		var loanID string
		err := tx.QueryRowContext(ctx,
			`SELECT loan_id FROM installments WHERE id = ? AND tenant_id = ?`,
			id.String(), tenantID.String()).Scan(&loanID)
		if err != nil {
			return notFoundOr("find installment", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE installments SET status = ?, paid_date = ? WHERE id = ?`,
			string(core.InstallmentPaid), fmtDate(paidDate), id.String()); err != nil {
			return fmt.Errorf("mark installment paid: %w", err)
		}

		var pending int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM installments WHERE loan_id = ? AND status = ?`,
			loanID, string(core.InstallmentPending)).Scan(&pending)
		if err != nil {
			return fmt.Errorf("count pending installments: %w", err)
		}

		status := core.LoanActive
		if pending == 0 {
			status = core.LoanClosed
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE loans SET status = ?, updated_at = ? WHERE id = ?`,
			string(status), fmtTime(time.Now()), loanID); err != nil {
			return fmt.Errorf("update loan status: %w", err)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (core.Loan, error) {
	var (
		loan                                       core.Loan
		id, tenantID, userID                       string
		principal, rate, payment                   string
		startDate, endDate, createdAt, updatedAt   string
		status                                     string
	)
	err := row.Scan(&id, &tenantID, &userID, &loan.LoanType, &loan.LenderName,
		&loan.AccountNumber, &principal, &loan.Currency, &rate, &loan.InterestType,
		&loan.TenureMonths, &payment, &startDate, &endDate, &status, &loan.Notes,
		&createdAt, &updatedAt)
	if err != nil {
		return core.Loan{}, err
	}

	if loan.ID, err = uuid.Parse(id); err != nil {
		return core.Loan{}, err
	}
	if loan.TenantID, err = uuid.Parse(tenantID); err != nil {
		return core.Loan{}, err
	}
	if loan.UserID, err = uuid.Parse(userID); err != nil {
		return core.Loan{}, err
	}
	if loan.Principal, err = parseDec(principal); err != nil {
		return core.Loan{}, err
	}
	if loan.AnnualRate, err = parseDec(rate); err != nil {
		return core.Loan{}, err
	}
	if loan.MonthlyPayment, err = parseDec(payment); err != nil {
		return core.Loan{}, err
	}
	if loan.StartDate, err = parseDate(startDate); err != nil {
		return core.Loan{}, err
	}
	if loan.EndDate, err = parseDate(endDate); err != nil {
		return core.Loan{}, err
	}
	if loan.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Loan{}, err
	}
	if loan.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Loan{}, err
	}
	loan.Status = core.LoanStatus(status)
	return loan, nil
}

func scanInstallment(row rowScanner) (core.Installment, error) {
	var (
		ins                        core.Installment
		id, tenantID, loanID       string
		dueDate                    string
		paidDate                   sql.NullString
		amount, principal          string
		interest, outstanding      string
		status                     string
	)
	err := row.Scan(&id, &tenantID, &loanID, &ins.Number, &dueDate, &paidDate,
		&amount, &principal, &interest, &outstanding, &status)
	if err != nil {
		return core.Installment{}, err
	}

	if ins.ID, err = uuid.Parse(id); err != nil {
		return core.Installment{}, err
	}
	if ins.TenantID, err = uuid.Parse(tenantID); err != nil {
		return core.Installment{}, err
	}
	if ins.LoanID, err = uuid.Parse(loanID); err != nil {
		return core.Installment{}, err
	}
	if ins.DueDate, err = parseDate(dueDate); err != nil {
		return core.Installment{}, err
	}
	if ins.PaidDate, err = parseDatePtr(paidDate); err != nil {
		return core.Installment{}, err
	}
	if ins.Amount, err = parseDec(amount); err != nil {
		return core.Installment{}, err
	}
	if ins.PrincipalComponent, err = parseDec(principal); err != nil {
		return core.Installment{}, err
	}
	if ins.InterestComponent, err = parseDec(interest); err != nil {
		return core.Installment{}, err
	}
	if ins.OutstandingBalance, err = parseDec(outstanding); err != nil {
		return core.Installment{}, err
	}
	ins.Status = core.InstallmentStatus(status)
	return ins, nil
}
