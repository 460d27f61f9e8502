package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"kosh/internal/core"
	"kosh/internal/storage"
)

// DebtService manages informal debts and their settlement events. All
// settlement mutations run under optimistic concurrency: a stale debt
// version is re-fetched and retried up to the configured count before
// the conflict is surfaced.
type DebtService struct {
	storage *storage.Repository
	retries int
}

func NewDebtService(st *storage.Repository, retries int) *DebtService {
	return &DebtService{storage: st, retries: retries}
}

// DebtPosition pairs a debt with its balance figures as of a date.
type DebtPosition struct {
	Debt            core.Debt
	AccruedInterest decimal.Decimal
	Remaining       decimal.Decimal
}

// SettlementInput describes one repayment or collection to apply.
type SettlementInput struct {
	DebtID         uuid.UUID
	Amount         decimal.Decimal
	EventDate      time.Time
	PaymentMethod  string
	Reference      string
	Note           string
	CloseRequested bool
}

func (s *DebtService) CreateDebt(ctx context.Context, debt core.Debt) (core.Debt, error) {
	if debt.Method == "" {
		debt.Method = core.InterestNone
	}
	if err := debt.Validate(); err != nil {
		return core.Debt{}, err
	}

	now := time.Now().UTC()
	debt.ID = uuid.New()
	debt.OriginationDate = core.DateOnly(debt.OriginationDate)
	debt.Status = core.DebtOpen
	debt.TotalApplied = decimal.Zero
	debt.ClosedAt = nil
	debt.Version = 1
	debt.CreatedAt = now
	debt.UpdatedAt = now

	if err := s.storage.CreateDebt(ctx, debt); err != nil {
		return core.Debt{}, fmt.Errorf("create debt: %w", err)
	}
	return debt, nil
}

func (s *DebtService) GetDebt(ctx context.Context, tenantID, id uuid.UUID, asOf time.Time) (DebtPosition, error) {
	debt, err := s.storage.GetDebt(ctx, id)
	if err != nil {
		return DebtPosition{}, err
	}
	if err := checkTenant(ctx, "debt", id, debt.TenantID, tenantID); err != nil {
		return DebtPosition{}, err
	}
	return position(debt, asOf), nil
}

func (s *DebtService) ListDebts(ctx context.Context, tenantID, userID uuid.UUID, role core.DebtRole, asOf time.Time) ([]DebtPosition, error) {
	if !role.Valid() {
		return nil, core.ErrInvalidRole
	}
	debts, err := s.storage.ListDebts(ctx, tenantID, userID, role)
	if err != nil {
		return nil, err
	}
	positions := make([]DebtPosition, 0, len(debts))
	for _, debt := range debts {
		positions = append(positions, position(debt, asOf))
	}
	return positions, nil
}

// OpenDebtTotal sums the outstanding balance of every non-closed debt
// held in the role, the total-owed / total-receivable figure dashboards
// aggregate per side.
func (s *DebtService) OpenDebtTotal(ctx context.Context, tenantID, userID uuid.UUID, role core.DebtRole, asOf time.Time) (decimal.Decimal, error) {
	positions, err := s.ListDebts(ctx, tenantID, userID, role, asOf)
	if err != nil {
		return decimal.Decimal{}, err
	}
	total := decimal.Zero
	for _, p := range positions {
		if p.Debt.Status == core.DebtClosed {
			continue
		}
		total = total.Add(p.Remaining)
	}
	return total, nil
}

func (s *DebtService) DeleteDebt(ctx context.Context, tenantID, id uuid.UUID) error {
	return s.storage.DeleteDebt(ctx, tenantID, id)
}

// Settle applies a settlement event to the debt and returns the
// updated debt.
func (s *DebtService) Settle(ctx context.Context, tenantID uuid.UUID, in SettlementInput) (core.Debt, error) {
	asOf := time.Now().UTC()
	var result core.Debt

	err := s.withRetry(ctx, in.DebtID, func(debt core.Debt) error {
		if err := checkTenant(ctx, "debt", debt.ID, debt.TenantID, tenantID); err != nil {
			return err
		}
		expected := debt.Version
		if err := debt.ApplySettlement(in.Amount, in.EventDate, in.CloseRequested, asOf); err != nil {
			return err
		}
		debt.UpdatedAt = asOf

		ev := core.Settlement{
			ID:            uuid.New(),
			TenantID:      debt.TenantID,
			DebtID:        debt.ID,
			Amount:        in.Amount,
			EventDate:     core.DateOnly(in.EventDate),
			PaymentMethod: in.PaymentMethod,
			Reference:     in.Reference,
			Note:          in.Note,
			CreatedAt:     asOf,
			UpdatedAt:     asOf,
		}
		if err := s.storage.ApplySettlement(ctx, debt, ev, expected); err != nil {
			return err
		}
		debt.Version = expected + 1
		result = debt
		return nil
	})
	if err != nil {
		return core.Debt{}, err
	}

	slog.InfoContext(ctx, "Settlement applied",
		"debt_id", result.ID,
		"tenant_id", tenantID,
		"amount", in.Amount,
		"status", result.Status,
		"remaining", result.Remaining(asOf))
	return result, nil
}

// SettlementUpdate carries the editable fields of a recorded event.
// All of them are replaced on edit.
type SettlementUpdate struct {
	Amount        decimal.Decimal
	EventDate     time.Time
	PaymentMethod string
	Reference     string
	Note          string
}

// UpdateSettlement edits a recorded event, adjusting the debt's
// applied total retroactively.
func (s *DebtService) UpdateSettlement(ctx context.Context, tenantID, eventID uuid.UUID, in SettlementUpdate) (core.Debt, error) {
	asOf := time.Now().UTC()

	ev, err := s.storage.GetSettlement(ctx, eventID)
	if err != nil {
		return core.Debt{}, err
	}
	if err := checkTenant(ctx, "settlement", eventID, ev.TenantID, tenantID); err != nil {
		return core.Debt{}, err
	}

	var result core.Debt
	err = s.withRetry(ctx, ev.DebtID, func(debt core.Debt) error {
		expected := debt.Version
		debt.ReverseSettlement(ev.Amount, asOf)
		if err := debt.ApplySettlement(in.Amount, in.EventDate, false, asOf); err != nil {
			return err
		}
		debt.UpdatedAt = asOf

		updated := ev
		updated.Amount = in.Amount
		updated.EventDate = core.DateOnly(in.EventDate)
		updated.PaymentMethod = in.PaymentMethod
		updated.Reference = in.Reference
		updated.Note = in.Note
		updated.UpdatedAt = asOf
		if err := s.storage.UpdateSettlement(ctx, debt, updated, expected); err != nil {
			return err
		}
		debt.Version = expected + 1
		result = debt
		return nil
	})
	if err != nil {
		return core.Debt{}, err
	}
	return result, nil
}

// DeleteSettlement removes a recorded event and reverses its effect on
// the debt. A closed debt reopens if its balance becomes positive.
func (s *DebtService) DeleteSettlement(ctx context.Context, tenantID, eventID uuid.UUID) (core.Debt, error) {
	asOf := time.Now().UTC()

	ev, err := s.storage.GetSettlement(ctx, eventID)
	if err != nil {
		return core.Debt{}, err
	}
	if err := checkTenant(ctx, "settlement", eventID, ev.TenantID, tenantID); err != nil {
		return core.Debt{}, err
	}

	var result core.Debt
	err = s.withRetry(ctx, ev.DebtID, func(debt core.Debt) error {
		expected := debt.Version
		debt.ReverseSettlement(ev.Amount, asOf)
		debt.UpdatedAt = asOf
		if err := s.storage.DeleteSettlement(ctx, debt, eventID, expected); err != nil {
			return err
		}
		debt.Version = expected + 1
		result = debt
		return nil
	})
	if err != nil {
		return core.Debt{}, err
	}
	return result, nil
}

// ReopenDebt clears a debt's closed state, recomputing status from its
// applied total.
func (s *DebtService) ReopenDebt(ctx context.Context, tenantID, id uuid.UUID) (core.Debt, error) {
	asOf := time.Now().UTC()

	var result core.Debt
	err := s.withRetry(ctx, id, func(debt core.Debt) error {
		if err := checkTenant(ctx, "debt", id, debt.TenantID, tenantID); err != nil {
			return err
		}
		expected := debt.Version
		debt.Reopen()
		debt.UpdatedAt = asOf
		if err := s.storage.UpdateDebt(ctx, debt, expected); err != nil {
			return err
		}
		debt.Version = expected + 1
		result = debt
		return nil
	})
	if err != nil {
		return core.Debt{}, err
	}
	return result, nil
}

func (s *DebtService) ListSettlements(ctx context.Context, tenantID, debtID uuid.UUID) ([]core.Settlement, error) {
	debt, err := s.storage.GetDebt(ctx, debtID)
	if err != nil {
		return nil, err
	}
	if err := checkTenant(ctx, "debt", debtID, debt.TenantID, tenantID); err != nil {
		return nil, err
	}
	return s.storage.ListSettlements(ctx, debtID)
}

// withRetry fetches the debt and runs fn against the fresh copy,
// repeating on a version conflict until the retry budget runs out.
func (s *DebtService) withRetry(ctx context.Context, debtID uuid.UUID, fn func(debt core.Debt) error) error {
	attempts := s.retries + 1
	for attempt := 1; ; attempt++ {
		debt, err := s.storage.GetDebt(ctx, debtID)
		if err != nil {
			return err
		}
		err = fn(debt)
		if err == nil {
			return nil
		}
		if !errors.Is(err, core.ErrConcurrencyConflict) || attempt >= attempts {
			return err
		}
		slog.WarnContext(ctx, "Settlement conflicted, retrying",
			"debt_id", debtID,
			"attempt", attempt)
	}
}

func position(debt core.Debt, asOf time.Time) DebtPosition {
	return DebtPosition{
		Debt:            debt,
		AccruedInterest: debt.AccruedInterest(asOf),
		Remaining:       debt.Remaining(asOf),
	}
}
