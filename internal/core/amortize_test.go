package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func TestMonthlyPayment(t *testing.T) {
	cases := []struct {
		name      string
		principal string
		rate      string
		months    int
		want      string
	}{
		{"zero rate", "1200", "0", 12, "100"},
		{"zero rate with remainder", "1000", "0", 3, "333.33"},
		{"reducing balance 10pct 12mo", "120000", "10", 12, "10549.91"},
		{"reducing balance 12pct 24mo", "50000", "12", 24, "2353.67"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MonthlyPayment(d(tc.principal), d(tc.rate), tc.months)
			if !got.Equal(d(tc.want)) {
				t.Fatalf("payment = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestComputeScheduleReducingBalance(t *testing.T) {
	sched, err := ComputeSchedule(LoanTerms{
		Principal:    d("120000"),
		AnnualRate:   d("10"),
		TenureMonths: 12,
		StartDate:    date(2025, time.January, 15),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sched.Rows) != 12 {
		t.Fatalf("schedule has %d rows, want 12", len(sched.Rows))
	}
	if !sched.MonthlyPayment.Equal(d("10549.91")) {
		t.Errorf("payment = %s, want 10549.91", sched.MonthlyPayment)
	}
	if !sched.TotalInterest.Equal(d("6598.92")) {
		t.Errorf("total interest = %s, want 6598.92", sched.TotalInterest)
	}
	if !sched.EndDate.Equal(date(2026, time.January, 15)) {
		t.Errorf("end date = %v, want 2026-01-15", sched.EndDate)
	}

	first := sched.Rows[0]
	if !first.InterestComponent.Equal(d("1000")) {
		t.Errorf("first interest = %s, want 1000.00", first.InterestComponent)
	}
	if !first.PrincipalComponent.Equal(d("9549.91")) {
		t.Errorf("first principal = %s, want 9549.91", first.PrincipalComponent)
	}
	if !first.OutstandingBalance.Equal(d("110450.09")) {
		t.Errorf("first outstanding = %s, want 110450.09", first.OutstandingBalance)
	}

	last := sched.Rows[11]
	if !last.OutstandingBalance.IsZero() {
		t.Errorf("final outstanding = %s, want 0", last.OutstandingBalance)
	}

	// Principal components must sum back to the principal exactly; the
	// final installment absorbs the rounding residue.
	sum := decimal.Zero
	for _, row := range sched.Rows {
		sum = sum.Add(row.PrincipalComponent)
	}
	if !sum.Equal(d("120000")) {
		t.Errorf("principal components sum to %s, want 120000", sum)
	}

	// Installments are numbered 1..N in order, one month apart.
	for i, row := range sched.Rows {
		if row.Number != i+1 {
			t.Fatalf("row %d has number %d", i, row.Number)
		}
		want := AddMonths(date(2025, time.January, 15), i)
		if !row.DueDate.Equal(want) {
			t.Fatalf("row %d due %v, want %v", row.Number, row.DueDate, want)
		}
	}
}

func TestComputeScheduleZeroRate(t *testing.T) {
	sched, err := ComputeSchedule(LoanTerms{
		Principal:    d("1200"),
		AnnualRate:   d("0"),
		TenureMonths: 12,
		StartDate:    date(2025, time.March, 1),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sched.MonthlyPayment.Equal(d("100")) {
		t.Errorf("payment = %s, want 100", sched.MonthlyPayment)
	}
	if !sched.TotalInterest.IsZero() {
		t.Errorf("total interest = %s, want 0", sched.TotalInterest)
	}
	for _, row := range sched.Rows {
		if !row.InterestComponent.IsZero() {
			t.Errorf("row %d interest = %s, want 0", row.Number, row.InterestComponent)
		}
	}
	if !sched.Rows[11].OutstandingBalance.IsZero() {
		t.Errorf("final outstanding = %s, want 0", sched.Rows[11].OutstandingBalance)
	}
}

func TestComputeScheduleMonthEndDueDates(t *testing.T) {
	sched, err := ComputeSchedule(LoanTerms{
		Principal:    d("10000"),
		AnnualRate:   d("8"),
		TenureMonths: 4,
		StartDate:    date(2024, time.January, 31),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Time{
		date(2024, time.January, 31),
		date(2024, time.February, 29), // leap year, day clamped
		date(2024, time.March, 31),
		date(2024, time.April, 30),
	}
	for i, row := range sched.Rows {
		if !row.DueDate.Equal(want[i]) {
			t.Errorf("row %d due %v, want %v", row.Number, row.DueDate, want[i])
		}
	}
}

func TestLoanTermsValidate(t *testing.T) {
	start := date(2025, time.June, 1)
	cases := []struct {
		name  string
		terms LoanTerms
		want  error
	}{
		{"zero principal", LoanTerms{Principal: d("0"), TenureMonths: 12, StartDate: start}, ErrInvalidPrincipal},
		{"negative principal", LoanTerms{Principal: d("-5"), TenureMonths: 12, StartDate: start}, ErrInvalidPrincipal},
		{"negative rate", LoanTerms{Principal: d("100"), AnnualRate: d("-1"), TenureMonths: 12, StartDate: start}, ErrInvalidRate},
		{"zero tenure", LoanTerms{Principal: d("100"), TenureMonths: 0, StartDate: start}, ErrInvalidTenure},
		{"zero start date", LoanTerms{Principal: d("100"), TenureMonths: 12}, ErrInvalidDate},
		{"valid", LoanTerms{Principal: d("100"), TenureMonths: 12, StartDate: start}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeSchedule(tc.terms)
			if !errors.Is(err, tc.want) {
				t.Fatalf("error = %v, want %v", err, tc.want)
			}
		})
	}
}
