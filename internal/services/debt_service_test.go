package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"kosh/internal/core"
)

func debtDraft(tenantID, userID uuid.UUID) core.Debt {
	return core.Debt{
		TenantID:        tenantID,
		UserID:          userID,
		Role:            core.RoleBorrowing,
		Counterparty:    "Ravi",
		Principal:       d("10000"),
		Currency:        "INR",
		Rate:            d("0"),
		Method:          core.InterestNone,
		OriginationDate: date(2024, time.March, 1),
	}
}

func TestCreateDebtDefaults(t *testing.T) {
	svc := NewDebtService(newTestRepo(t), 1)
	ctx := context.Background()
	tenantID, userID := uuid.New(), uuid.New()

	draft := debtDraft(tenantID, userID)
	draft.Method = ""
	debt, err := svc.CreateDebt(ctx, draft)
	if err != nil {
		t.Fatalf("CreateDebt: %v", err)
	}
	if debt.Method != core.InterestNone {
		t.Errorf("method = %s, want none", debt.Method)
	}
	if debt.Status != core.DebtOpen {
		t.Errorf("status = %s, want open", debt.Status)
	}
	if debt.Version != 1 {
		t.Errorf("version = %d, want 1", debt.Version)
	}
}

func TestSettleLifecycle(t *testing.T) {
	svc := NewDebtService(newTestRepo(t), 1)
	ctx := context.Background()
	tenantID, userID := uuid.New(), uuid.New()

	debt, err := svc.CreateDebt(ctx, debtDraft(tenantID, userID))
	if err != nil {
		t.Fatalf("CreateDebt: %v", err)
	}

	settled, err := svc.Settle(ctx, tenantID, SettlementInput{
		DebtID:    debt.ID,
		Amount:    d("4000"),
		EventDate: date(2024, time.June, 1),
	})
	if err != nil {
		t.Fatalf("first Settle: %v", err)
	}
	if settled.Status != core.DebtPartiallySettled {
		t.Errorf("status = %s, want partially_settled", settled.Status)
	}
	if !settled.Remaining(time.Now().UTC()).Equal(d("6000")) {
		t.Errorf("remaining = %s, want 6000", settled.Remaining(time.Now().UTC()))
	}

	settled, err = svc.Settle(ctx, tenantID, SettlementInput{
		DebtID:    debt.ID,
		Amount:    d("6000"),
		EventDate: date(2024, time.July, 1),
	})
	if err != nil {
		t.Fatalf("second Settle: %v", err)
	}
	if settled.Status != core.DebtClosed {
		t.Errorf("status after full settlement = %s, want closed", settled.Status)
	}
	if settled.ClosedAt == nil {
		t.Error("closed debt has no closed timestamp")
	}

	events, err := svc.ListSettlements(ctx, tenantID, debt.ID)
	if err != nil {
		t.Fatalf("ListSettlements: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
}

func TestSettleRejectsExcessAndBackdating(t *testing.T) {
	svc := NewDebtService(newTestRepo(t), 1)
	ctx := context.Background()
	tenantID := uuid.New()

	debt, err := svc.CreateDebt(ctx, debtDraft(tenantID, uuid.New()))
	if err != nil {
		t.Fatalf("CreateDebt: %v", err)
	}

	_, err = svc.Settle(ctx, tenantID, SettlementInput{
		DebtID:    debt.ID,
		Amount:    d("10001"),
		EventDate: date(2024, time.June, 1),
	})
	if !errors.Is(err, core.ErrExcessSettlement) {
		t.Errorf("excess = %v, want ErrExcessSettlement", err)
	}

	_, err = svc.Settle(ctx, tenantID, SettlementInput{
		DebtID:    debt.ID,
		Amount:    d("100"),
		EventDate: date(2024, time.February, 1),
	})
	if !errors.Is(err, core.ErrInvalidEventDate) {
		t.Errorf("backdated = %v, want ErrInvalidEventDate", err)
	}
}

func TestSettleCrossTenant(t *testing.T) {
	svc := NewDebtService(newTestRepo(t), 1)
	ctx := context.Background()

	debt, err := svc.CreateDebt(ctx, debtDraft(uuid.New(), uuid.New()))
	if err != nil {
		t.Fatalf("CreateDebt: %v", err)
	}

	_, err = svc.Settle(ctx, uuid.New(), SettlementInput{
		DebtID:    debt.ID,
		Amount:    d("100"),
		EventDate: date(2024, time.June, 1),
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign tenant settle = %v, want ErrNotFound", err)
	}
	if _, err := svc.GetDebt(ctx, uuid.New(), debt.ID, time.Now().UTC()); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign tenant get = %v, want ErrNotFound", err)
	}
	if _, err := svc.ListSettlements(ctx, uuid.New(), debt.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign tenant events = %v, want ErrNotFound", err)
	}
}

func TestDeleteSettlementReopensDebt(t *testing.T) {
	svc := NewDebtService(newTestRepo(t), 1)
	ctx := context.Background()
	tenantID := uuid.New()

	debt, err := svc.CreateDebt(ctx, debtDraft(tenantID, uuid.New()))
	if err != nil {
		t.Fatalf("CreateDebt: %v", err)
	}
	if _, err := svc.Settle(ctx, tenantID, SettlementInput{
		DebtID:    debt.ID,
		Amount:    d("10000"),
		EventDate: date(2024, time.June, 1),
	}); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	events, err := svc.ListSettlements(ctx, tenantID, debt.ID)
	if err != nil {
		t.Fatalf("ListSettlements: %v", err)
	}
	reopened, err := svc.DeleteSettlement(ctx, tenantID, events[0].ID)
	if err != nil {
		t.Fatalf("DeleteSettlement: %v", err)
	}
	if reopened.Status != core.DebtOpen {
		t.Errorf("status after reversal = %s, want open", reopened.Status)
	}
	if reopened.ClosedAt != nil {
		t.Error("closed timestamp survived reversal")
	}
	if !reopened.TotalApplied.IsZero() {
		t.Errorf("total applied = %s, want 0", reopened.TotalApplied)
	}
}

func TestUpdateSettlementAdjustsTotals(t *testing.T) {
	svc := NewDebtService(newTestRepo(t), 1)
	ctx := context.Background()
	tenantID := uuid.New()

	debt, err := svc.CreateDebt(ctx, debtDraft(tenantID, uuid.New()))
	if err != nil {
		t.Fatalf("CreateDebt: %v", err)
	}
	if _, err := svc.Settle(ctx, tenantID, SettlementInput{
		DebtID:    debt.ID,
		Amount:    d("4000"),
		EventDate: date(2024, time.June, 1),
	}); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	events, err := svc.ListSettlements(ctx, tenantID, debt.ID)
	if err != nil {
		t.Fatalf("ListSettlements: %v", err)
	}
	updated, err := svc.UpdateSettlement(ctx, tenantID, events[0].ID, SettlementUpdate{
		Amount:        d("2500"),
		EventDate:     date(2024, time.June, 15),
		PaymentMethod: "upi",
		Reference:     "txn-8841",
		Note:          "corrected after bank statement",
	})
	if err != nil {
		t.Fatalf("UpdateSettlement: %v", err)
	}
	if !updated.TotalApplied.Equal(d("2500")) {
		t.Errorf("total applied = %s, want 2500", updated.TotalApplied)
	}

	events, err = svc.ListSettlements(ctx, tenantID, debt.ID)
	if err != nil {
		t.Fatalf("ListSettlements after edit: %v", err)
	}
	if len(events) != 1 || !events[0].Amount.Equal(d("2500")) {
		t.Fatalf("event after edit = %+v, want single 2500", events)
	}
	if events[0].PaymentMethod != "upi" || events[0].Reference != "txn-8841" {
		t.Errorf("event metadata = %q/%q, want upi/txn-8841", events[0].PaymentMethod, events[0].Reference)
	}
	if events[0].Note != "corrected after bank statement" {
		t.Errorf("event note = %q, want the corrected note", events[0].Note)
	}
}

func TestCloseRequestedWaivesBalance(t *testing.T) {
	svc := NewDebtService(newTestRepo(t), 1)
	ctx := context.Background()
	tenantID := uuid.New()

	draft := debtDraft(tenantID, uuid.New())
	draft.Rate = d("12")
	draft.Method = core.InterestSimple
	debt, err := svc.CreateDebt(ctx, draft)
	if err != nil {
		t.Fatalf("CreateDebt: %v", err)
	}

	// Pay only the principal and close anyway; accrued interest is
	// waived by agreement.
	closed, err := svc.Settle(ctx, tenantID, SettlementInput{
		DebtID:         debt.ID,
		Amount:         d("10000"),
		EventDate:      date(2024, time.June, 1),
		CloseRequested: true,
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if closed.Status != core.DebtClosed {
		t.Errorf("status = %s, want closed", closed.Status)
	}

	reopened, err := svc.ReopenDebt(ctx, tenantID, debt.ID)
	if err != nil {
		t.Fatalf("ReopenDebt: %v", err)
	}
	if reopened.Status != core.DebtPartiallySettled {
		t.Errorf("status after reopen = %s, want partially_settled", reopened.Status)
	}
}

func TestOpenDebtTotalPerRole(t *testing.T) {
	svc := NewDebtService(newTestRepo(t), 1)
	ctx := context.Background()
	tenantID, userID := uuid.New(), uuid.New()
	asOf := time.Now().UTC()

	open := debtDraft(tenantID, userID)
	partial := debtDraft(tenantID, userID)
	partial.Principal = d("5000")
	settled := debtDraft(tenantID, userID)
	settled.Principal = d("2000")
	lending := debtDraft(tenantID, userID)
	lending.Role = core.RoleLending
	lending.Principal = d("700")

	if _, err := svc.CreateDebt(ctx, open); err != nil {
		t.Fatalf("CreateDebt open: %v", err)
	}
	partialDebt, err := svc.CreateDebt(ctx, partial)
	if err != nil {
		t.Fatalf("CreateDebt partial: %v", err)
	}
	settledDebt, err := svc.CreateDebt(ctx, settled)
	if err != nil {
		t.Fatalf("CreateDebt settled: %v", err)
	}
	if _, err := svc.CreateDebt(ctx, lending); err != nil {
		t.Fatalf("CreateDebt lending: %v", err)
	}

	if _, err := svc.Settle(ctx, tenantID, SettlementInput{
		DebtID:    partialDebt.ID,
		Amount:    d("2000"),
		EventDate: date(2024, time.June, 1),
	}); err != nil {
		t.Fatalf("Settle partial: %v", err)
	}
	if _, err := svc.Settle(ctx, tenantID, SettlementInput{
		DebtID:    settledDebt.ID,
		Amount:    d("2000"),
		EventDate: date(2024, time.June, 1),
	}); err != nil {
		t.Fatalf("Settle full: %v", err)
	}

	// 10000 open + 3000 still outstanding; the closed debt and the
	// lending side do not count.
	owed, err := svc.OpenDebtTotal(ctx, tenantID, userID, core.RoleBorrowing, asOf)
	if err != nil {
		t.Fatalf("OpenDebtTotal borrowing: %v", err)
	}
	if !owed.Equal(d("13000")) {
		t.Errorf("total owed = %s, want 13000", owed)
	}

	receivable, err := svc.OpenDebtTotal(ctx, tenantID, userID, core.RoleLending, asOf)
	if err != nil {
		t.Fatalf("OpenDebtTotal lending: %v", err)
	}
	if !receivable.Equal(d("700")) {
		t.Errorf("total receivable = %s, want 700", receivable)
	}

	if _, err := svc.OpenDebtTotal(ctx, tenantID, userID, core.DebtRole("owning"), asOf); !errors.Is(err, core.ErrInvalidRole) {
		t.Errorf("bad role = %v, want ErrInvalidRole", err)
	}
}

func TestListDebtsByRole(t *testing.T) {
	svc := NewDebtService(newTestRepo(t), 1)
	ctx := context.Background()
	tenantID, userID := uuid.New(), uuid.New()

	borrowing := debtDraft(tenantID, userID)
	lending := debtDraft(tenantID, userID)
	lending.Role = core.RoleLending
	lending.Counterparty = "Meera"

	if _, err := svc.CreateDebt(ctx, borrowing); err != nil {
		t.Fatalf("CreateDebt borrowing: %v", err)
	}
	if _, err := svc.CreateDebt(ctx, lending); err != nil {
		t.Fatalf("CreateDebt lending: %v", err)
	}

	got, err := svc.ListDebts(ctx, tenantID, userID, core.RoleLending, time.Now().UTC())
	if err != nil {
		t.Fatalf("ListDebts: %v", err)
	}
	if len(got) != 1 || got[0].Debt.Counterparty != "Meera" {
		t.Fatalf("lending list = %+v, want only Meera", got)
	}
	if !got[0].Remaining.Equal(d("10000")) {
		t.Errorf("remaining = %s, want 10000", got[0].Remaining)
	}

	if _, err := svc.ListDebts(ctx, tenantID, userID, core.DebtRole("owning"), time.Now().UTC()); !errors.Is(err, core.ErrInvalidRole) {
		t.Errorf("bad role = %v, want ErrInvalidRole", err)
	}
}
