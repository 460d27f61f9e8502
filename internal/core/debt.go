package core

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// AccruedInterest returns the interest accrued on the debt's principal
// from origination up to asOf. Elapsed time counts calendar days over a
// 365-day year.
func (d *Debt) AccruedInterest(asOf time.Time) decimal.Decimal {
	days := DaysBetween(d.OriginationDate, asOf)
	if days <= 0 || d.Method == InterestNone || d.Rate.IsZero() {
		return decimal.Zero
	}

	elapsed := decimal.NewFromInt(int64(days))
	switch d.Method {
	case InterestSimple:
		// principal * rate/100 * days/365
		accrued := d.Principal.Mul(d.Rate).Div(hundred).Mul(elapsed).Div(decimal.NewFromInt(365))
		return RoundCents(accrued)
	case InterestCompound:
		// principal * ((1 + rate/100)^(days/365) - 1). The fractional
		// exponent forces a float growth factor; the monetary result is
		// quantized back to exact cents.
		base, _ := one.Add(d.Rate.Div(hundred)).Float64()
		years := float64(days) / 365.0
		growth := decimal.NewFromFloat(math.Pow(base, years))
		return RoundCents(d.Principal.Mul(growth.Sub(one)))
	}
	return decimal.Zero
}

// Remaining recomputes the outstanding balance as of a date:
// principal + accrued interest - total applied. It is a derived value,
// refreshed on every read and mutation, never trusted from storage.
func (d *Debt) Remaining(asOf time.Time) decimal.Decimal {
	return RoundCents(d.Principal.Add(d.AccruedInterest(asOf)).Sub(d.TotalApplied))
}

// ApplySettlement applies a settlement event of the given amount, dated
// eventDate, to the debt. closeRequested forces the debt closed even if
// a balance remains (interest waived by agreement, for example).
//
// The over-settlement check runs against the pre-event remaining
// balance; a debt cannot be over-settled while still open.
func (d *Debt) ApplySettlement(amount decimal.Decimal, eventDate time.Time, closeRequested bool, asOf time.Time) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if DateOnly(eventDate).Before(DateOnly(d.OriginationDate)) {
		return ErrInvalidEventDate
	}
	remaining := d.Remaining(asOf)
	if remaining.IsPositive() && amount.GreaterThan(remaining) {
		return ErrExcessSettlement
	}

	d.TotalApplied = RoundCents(d.TotalApplied.Add(amount))
	d.refreshStatus(asOf, closeRequested)
	return nil
}

// ReverseSettlement removes a previously applied amount, used when a
// settlement event is edited or deleted. A closed debt whose balance
// becomes positive again is demoted and its closed timestamp cleared.
func (d *Debt) ReverseSettlement(amount decimal.Decimal, asOf time.Time) {
	d.TotalApplied = RoundCents(d.TotalApplied.Sub(amount))
	if d.TotalApplied.IsNegative() {
		d.TotalApplied = decimal.Zero
	}
	d.refreshStatus(asOf, false)
}

// Reopen clears the closed timestamp and derives status from the
// applied total alone, so even a fully settled debt comes back. A
// partially settled debt never reverts to open.
func (d *Debt) Reopen() {
	d.ClosedAt = nil
	if d.TotalApplied.IsPositive() {
		d.Status = DebtPartiallySettled
	} else {
		d.Status = DebtOpen
	}
}

// refreshStatus is the single place debt status and the closed
// timestamp are derived, so the two can never diverge.
func (d *Debt) refreshStatus(asOf time.Time, closeRequested bool) {
	remaining := d.Remaining(asOf)
	switch {
	case !remaining.IsPositive() || closeRequested:
		d.Status = DebtClosed
		if d.ClosedAt == nil {
			now := asOf
			d.ClosedAt = &now
		}
	case d.TotalApplied.IsPositive():
		d.Status = DebtPartiallySettled
		d.ClosedAt = nil
	default:
		d.Status = DebtOpen
		d.ClosedAt = nil
	}
}
