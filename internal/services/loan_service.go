package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"kosh/internal/core"
	"kosh/internal/storage"
)

// LoanService manages amortized loans and their installment schedules.
// Creating or editing a loan derives the full schedule up front; edits
// discard and regenerate it.
type LoanService struct {
	storage *storage.Repository
}

func NewLoanService(st *storage.Repository) *LoanService {
	return &LoanService{storage: st}
}

// PreviewSchedule computes a repayment schedule without persisting
// anything. It backs the what-if calculator.
func (s *LoanService) PreviewSchedule(terms core.LoanTerms) (core.Schedule, error) {
	return core.ComputeSchedule(terms)
}

// CreateLoan derives the schedule from the loan's terms and persists
// loan and installments atomically. The derived fields on the input
// (payment, end date, status) are overwritten.
func (s *LoanService) CreateLoan(ctx context.Context, loan core.Loan) (core.Loan, error) {
	schedule, err := core.ComputeSchedule(core.LoanTerms{
		Principal:    loan.Principal,
		AnnualRate:   loan.AnnualRate,
		TenureMonths: loan.TenureMonths,
		StartDate:    loan.StartDate,
	})
	if err != nil {
		return core.Loan{}, err
	}
	if !core.ValidCurrency(loan.Currency) {
		return core.Loan{}, core.ErrInvalidCurrency
	}

	now := time.Now().UTC()
	loan.ID = uuid.New()
	loan.InterestType = "reducing"
	loan.MonthlyPayment = schedule.MonthlyPayment
	loan.StartDate = core.DateOnly(loan.StartDate)
	loan.EndDate = schedule.EndDate
	loan.Status = core.LoanActive
	loan.CreatedAt = now
	loan.UpdatedAt = now

	installments := buildInstallments(loan, schedule)
	if err := s.storage.CreateLoan(ctx, loan, installments); err != nil {
		return core.Loan{}, fmt.Errorf("create loan: %w", err)
	}
	return loan, nil
}

// UpdateLoan replaces the loan's terms and regenerates its schedule.
// Paid-installment state does not survive a terms change.
func (s *LoanService) UpdateLoan(ctx context.Context, tenantID uuid.UUID, loan core.Loan) (core.Loan, error) {
	existing, err := s.storage.GetLoan(ctx, loan.ID)
	if err != nil {
		return core.Loan{}, err
	}
	if err := checkTenant(ctx, "loan", loan.ID, existing.TenantID, tenantID); err != nil {
		return core.Loan{}, err
	}

	schedule, err := core.ComputeSchedule(core.LoanTerms{
		Principal:    loan.Principal,
		AnnualRate:   loan.AnnualRate,
		TenureMonths: loan.TenureMonths,
		StartDate:    loan.StartDate,
	})
	if err != nil {
		return core.Loan{}, err
	}
	if !core.ValidCurrency(loan.Currency) {
		return core.Loan{}, core.ErrInvalidCurrency
	}

	loan.TenantID = existing.TenantID
	loan.UserID = existing.UserID
	loan.InterestType = "reducing"
	loan.MonthlyPayment = schedule.MonthlyPayment
	loan.StartDate = core.DateOnly(loan.StartDate)
	loan.EndDate = schedule.EndDate
	loan.Status = core.LoanActive
	loan.CreatedAt = existing.CreatedAt
	loan.UpdatedAt = time.Now().UTC()

	installments := buildInstallments(loan, schedule)
	if err := s.storage.ReplaceLoan(ctx, loan, installments); err != nil {
		return core.Loan{}, fmt.Errorf("update loan: %w", err)
	}

	slog.InfoContext(ctx, "Loan schedule regenerated",
		"loan_id", loan.ID,
		"tenant_id", loan.TenantID,
		"tenure_months", loan.TenureMonths)
	return loan, nil
}

func (s *LoanService) GetLoan(ctx context.Context, tenantID, id uuid.UUID) (core.Loan, error) {
	loan, err := s.storage.GetLoan(ctx, id)
	if err != nil {
		return core.Loan{}, err
	}
	if err := checkTenant(ctx, "loan", id, loan.TenantID, tenantID); err != nil {
		return core.Loan{}, err
	}
	return loan, nil
}

func (s *LoanService) ListLoans(ctx context.Context, tenantID, userID uuid.UUID) ([]core.Loan, error) {
	return s.storage.ListLoans(ctx, tenantID, userID)
}

func (s *LoanService) DeleteLoan(ctx context.Context, tenantID, id uuid.UUID) error {
	return s.storage.DeleteLoan(ctx, tenantID, id)
}

// ListInstallments returns the loan's schedule after verifying the
// loan belongs to the caller.
func (s *LoanService) ListInstallments(ctx context.Context, tenantID, loanID uuid.UUID) ([]core.Installment, error) {
	if _, err := s.GetLoan(ctx, tenantID, loanID); err != nil {
		return nil, err
	}
	return s.storage.ListInstallments(ctx, loanID)
}

// MarkInstallmentPaid records a payment; when it is the last pending
// installment the loan closes with it.
func (s *LoanService) MarkInstallmentPaid(ctx context.Context, tenantID, installmentID uuid.UUID, paidDate time.Time) error {
	if paidDate.IsZero() {
		return core.ErrInvalidDate
	}
	ins, err := s.storage.GetInstallment(ctx, installmentID)
	if err != nil {
		return err
	}
	if err := checkTenant(ctx, "installment", installmentID, ins.TenantID, tenantID); err != nil {
		return err
	}
	if err := s.storage.MarkInstallmentPaid(ctx, tenantID, installmentID, core.DateOnly(paidDate)); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Installment marked paid",
		"loan_id", ins.LoanID,
		"tenant_id", tenantID,
		"number", ins.Number)
	return nil
}

func buildInstallments(loan core.Loan, schedule core.Schedule) []core.Installment {
	installments := make([]core.Installment, 0, len(schedule.Rows))
	for _, row := range schedule.Rows {
		installments = append(installments, core.Installment{
			ID:                 uuid.New(),
			TenantID:           loan.TenantID,
			LoanID:             loan.ID,
			Number:             row.Number,
			DueDate:            row.DueDate,
			Amount:             row.Amount,
			PrincipalComponent: row.PrincipalComponent,
			InterestComponent:  row.InterestComponent,
			OutstandingBalance: row.OutstandingBalance,
			Status:             core.InstallmentPending,
		})
	}
	return installments
}
