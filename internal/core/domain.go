package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	LoanActive LoanStatus = "active"
	LoanClosed LoanStatus = "closed"

	InstallmentPending InstallmentStatus = "pending"
	InstallmentPaid    InstallmentStatus = "paid"

	DebtOpen             DebtStatus = "open"
	DebtPartiallySettled DebtStatus = "partially_settled"
	DebtClosed           DebtStatus = "closed"

	// RoleBorrowing is money the user owes a counterparty (a lender);
	// RoleLending is money a counterparty (a borrower) owes the user.
	// The ledger arithmetic is identical for both sides.
	RoleBorrowing DebtRole = "borrowing"
	RoleLending   DebtRole = "lending"

	InterestNone     InterestMethod = "none"
	InterestSimple   InterestMethod = "simple"
	InterestCompound InterestMethod = "compound"
)

type (
	LoanStatus        string
	InstallmentStatus string
	DebtStatus        string
	DebtRole          string
	InterestMethod    string

	// Loan is a fixed-installment (EMI) loan with a reducing-balance
	// repayment schedule. Updating a loan discards and regenerates its
	// full installment set.
	Loan struct {
		ID             uuid.UUID
		TenantID       uuid.UUID
		UserID         uuid.UUID
		LoanType       string
		LenderName     string
		AccountNumber  string
		Principal      decimal.Decimal
		Currency       string
		AnnualRate     decimal.Decimal // percent per year
		InterestType   string          // only "reducing" is supported
		TenureMonths   int
		MonthlyPayment decimal.Decimal
		StartDate      time.Time
		EndDate        time.Time
		Status         LoanStatus
		Notes          string
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	// Installment is one scheduled payment of a Loan, split into
	// principal and interest components.
	Installment struct {
		ID                 uuid.UUID
		TenantID           uuid.UUID
		LoanID             uuid.UUID
		Number             int // 1..TenureMonths, unique per loan
		DueDate            time.Time
		PaidDate           *time.Time
		Amount             decimal.Decimal
		PrincipalComponent decimal.Decimal
		InterestComponent  decimal.Decimal
		OutstandingBalance decimal.Decimal
		Status             InstallmentStatus
	}

	// Debt is an informal open-ended debt, either side: Role selects
	// whether Counterparty is the lender (borrowing) or the borrower
	// (lending). TotalApplied is the running sum of settlement events;
	// the remaining balance is always derived from it, never stored as
	// an independent source of truth.
	Debt struct {
		ID                  uuid.UUID
		TenantID            uuid.UUID
		UserID              uuid.UUID
		Role                DebtRole
		Counterparty        string
		CounterpartyContact string
		Principal           decimal.Decimal
		Currency            string
		Rate                decimal.Decimal // percent per year
		Method              InterestMethod
		OriginationDate     time.Time
		DueDate             *time.Time
		Purpose             string
		Status              DebtStatus
		TotalApplied        decimal.Decimal
		ClosedAt            *time.Time
		Notes               string
		Version             int64 // optimistic-concurrency guard
		CreatedAt           time.Time
		UpdatedAt           time.Time
	}

	// Settlement is a repayment (borrowing) or collection (lending)
	// applied against a debt's remaining balance.
	Settlement struct {
		ID            uuid.UUID
		TenantID      uuid.UUID
		DebtID        uuid.UUID
		Amount        decimal.Decimal
		EventDate     time.Time
		PaymentMethod string
		Reference     string
		Note          string
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	// Budget caps spending over a window, optionally restricted to a
	// category. Spent/remaining/percentage are computed on demand and
	// never stored in the budget record.
	Budget struct {
		ID             uuid.UUID
		TenantID       uuid.UUID
		UserID         uuid.UUID
		Name           string
		Category       string // empty means all categories
		Amount         decimal.Decimal
		Currency       string
		StartDate      time.Time
		EndDate        time.Time
		AlertThreshold decimal.Decimal // percent, alert when usage reaches it
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	// ExchangeRate is one day's quote for a currency pair. Rates are
	// global reference data, not tenant-scoped.
	ExchangeRate struct {
		ID        uuid.UUID
		Base      string
		Target    string
		Rate      decimal.Decimal
		RateDate  time.Time
		Source    string
		CreatedAt time.Time
	}

	// Expense carries both its original amount and the amount
	// normalized to the tenant's base currency, computed once at write
	// time with the rate in effect on the transaction date.
	Expense struct {
		ID              uuid.UUID
		TenantID        uuid.UUID
		UserID          uuid.UUID
		Category        string
		Amount          decimal.Decimal
		Currency        string
		AmountInBase    decimal.Decimal
		ExchangeRate    decimal.Decimal
		Description     string
		TransactionDate time.Time
		PaymentMethod   string
		CreatedAt       time.Time
		UpdatedAt       time.Time
	}
)

func (m InterestMethod) Valid() bool {
	switch m {
	case InterestNone, InterestSimple, InterestCompound:
		return true
	}
	return false
}

func (r DebtRole) Valid() bool {
	return r == RoleBorrowing || r == RoleLending
}

// CounterpartyLabel names the counterparty field for the role; only
// labels differ between the two sides, never the arithmetic.
func (r DebtRole) CounterpartyLabel() string {
	if r == RoleLending {
		return "borrower"
	}
	return "lender"
}

func (d Debt) Validate() error {
	if !d.Principal.IsPositive() {
		return ErrInvalidPrincipal
	}
	if d.Rate.IsNegative() {
		return ErrInvalidRate
	}
	if !d.Method.Valid() {
		return ErrInvalidInterestMethod
	}
	if !d.Role.Valid() {
		return ErrInvalidRole
	}
	if d.OriginationDate.IsZero() {
		return ErrInvalidDate
	}
	if !ValidCurrency(d.Currency) {
		return ErrInvalidCurrency
	}
	if strings.TrimSpace(d.Counterparty) == "" {
		return ErrInvalidCounterparty
	}
	return nil
}

func (s Settlement) Validate() error {
	if !s.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if s.EventDate.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (b Budget) Validate() error {
	if !b.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if b.StartDate.IsZero() || b.EndDate.IsZero() {
		return ErrInvalidDate
	}
	if b.EndDate.Before(b.StartDate) {
		return ErrInvalidWindow
	}
	if !ValidCurrency(b.Currency) {
		return ErrInvalidCurrency
	}
	if b.AlertThreshold.IsNegative() {
		return ErrInvalidRate
	}
	return nil
}

func (e Expense) Validate() error {
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if e.TransactionDate.IsZero() {
		return ErrInvalidDate
	}
	if !ValidCurrency(e.Currency) {
		return ErrInvalidCurrency
	}
	if len(e.Description) > 500 {
		return ErrDescriptionTooLong
	}
	return nil
}
