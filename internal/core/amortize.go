package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type (
	// LoanTerms are the inputs to schedule derivation.
	LoanTerms struct {
		Principal    decimal.Decimal
		AnnualRate   decimal.Decimal // percent per year, >= 0
		TenureMonths int
		StartDate    time.Time
	}

	// ScheduleRow is one installment of a computed schedule, before it
	// is persisted as an Installment.
	ScheduleRow struct {
		Number             int
		DueDate            time.Time
		Amount             decimal.Decimal
		PrincipalComponent decimal.Decimal
		InterestComponent  decimal.Decimal
		OutstandingBalance decimal.Decimal
	}

	// Schedule is a full reducing-balance repayment plan.
	Schedule struct {
		MonthlyPayment decimal.Decimal
		TotalAmount    decimal.Decimal
		TotalInterest  decimal.Decimal
		EndDate        time.Time
		Rows           []ScheduleRow
	}
)

func (t LoanTerms) Validate() error {
	if !t.Principal.IsPositive() {
		return ErrInvalidPrincipal
	}
	if t.AnnualRate.IsNegative() {
		return ErrInvalidRate
	}
	if t.TenureMonths < 1 {
		return ErrInvalidTenure
	}
	if t.StartDate.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
	// Monthly rate divisor: percent per year to fraction per month.
	twelveHundred = decimal.NewFromInt(1200)
)

// MonthlyPayment computes the fixed monthly payment for a
// reducing-balance loan, rounded half-up to cents.
//
//	R = 0:  P / N
//	R > 0:  P * r * (1+r)^N / ((1+r)^N - 1),  r = R/1200
func MonthlyPayment(principal, annualRate decimal.Decimal, tenureMonths int) decimal.Decimal {
	n := decimal.NewFromInt(int64(tenureMonths))
	if annualRate.IsZero() {
		return RoundCents(principal.Div(n))
	}
	r := annualRate.Div(twelveHundred)
	growth := one.Add(r).Pow(n)
	payment := principal.Mul(r).Mul(growth).Div(growth.Sub(one))
	return RoundCents(payment)
}

// ComputeSchedule derives the full installment schedule from loan
// terms. The final installment absorbs cumulative rounding: its
// principal component is clamped so the outstanding balance lands on
// exactly zero and the principal components sum to the principal.
func ComputeSchedule(t LoanTerms) (Schedule, error) {
	if err := t.Validate(); err != nil {
		return Schedule{}, err
	}

	payment := MonthlyPayment(t.Principal, t.AnnualRate, t.TenureMonths)
	r := t.AnnualRate.Div(twelveHundred)
	start := DateOnly(t.StartDate)

	rows := make([]ScheduleRow, 0, t.TenureMonths)
	outstanding := t.Principal
	for i := 1; i <= t.TenureMonths; i++ {
		interest := RoundCents(outstanding.Mul(r))
		principalComponent := payment.Sub(interest)
		if principalComponent.GreaterThan(outstanding) || i == t.TenureMonths {
			principalComponent = outstanding
		}
		outstanding = outstanding.Sub(principalComponent)

		rows = append(rows, ScheduleRow{
			Number:             i,
			DueDate:            AddMonths(start, i-1),
			Amount:             payment,
			PrincipalComponent: principalComponent,
			InterestComponent:  interest,
			OutstandingBalance: outstanding,
		})
	}

	totalAmount := payment.Mul(decimal.NewFromInt(int64(t.TenureMonths)))
	return Schedule{
		MonthlyPayment: payment,
		TotalAmount:    totalAmount,
		TotalInterest:  totalAmount.Sub(t.Principal),
		EndDate:        AddMonths(start, t.TenureMonths),
		Rows:           rows,
	}, nil
}
