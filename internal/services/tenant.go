// Package services orchestrates the ledger engine's operations across
// storage, rate normalization and AMQP.
//
// Tenant scoping is enforced twice: list and mutation queries filter
// by tenant in SQL, and every fetch-by-ID is re-checked here against
// the caller's tenant. A cross-tenant hit is logged and surfaced as
// ErrNotFound so callers cannot probe for foreign IDs.
package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"kosh/internal/core"
)

func checkTenant(ctx context.Context, entity string, id, owner, caller uuid.UUID) error {
	if owner == caller {
		return nil
	}
	slog.WarnContext(ctx, "Cross-tenant access denied",
		"entity", entity,
		"id", id,
		"tenant_id", caller,
		"error", core.ErrCrossTenant)
	return core.ErrNotFound
}
