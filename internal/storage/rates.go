package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"kosh/internal/core"
)

// PutRate upserts the quote for a pair on a date. Re-ingesting a feed
// for the same day replaces the earlier value.
func (r *Repository) PutRate(ctx context.Context, rate core.ExchangeRate) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO exchange_rates
		(id, base_currency, target_currency, rate, rate_date, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (base_currency, target_currency, rate_date)
		DO UPDATE SET rate = excluded.rate, source = excluded.source`,
		rate.ID.String(), rate.Base, rate.Target, rate.Rate.String(),
		fmtDate(rate.RateDate), rate.Source, fmtTime(rate.CreatedAt))
	if err != nil {
		return fmt.Errorf("put rate: %w", err)
	}
	return nil
}

// GetRate returns the most recent quote for the pair dated on or
// before asOf.
func (r *Repository) GetRate(ctx context.Context, base, target, asOf string) (core.ExchangeRate, error) {
	row := r.db.QueryRowContext(ctx, `SELECT
		id, base_currency, target_currency, rate, rate_date, source, created_at
		FROM exchange_rates
		WHERE base_currency = ? AND target_currency = ? AND rate_date <= ?
		ORDER BY rate_date DESC LIMIT 1`,
		base, target, asOf)

	var (
		rate              core.ExchangeRate
		id, value         string
		rateDate, created string
	)
	err := row.Scan(&id, &rate.Base, &rate.Target, &value, &rateDate,
		&rate.Source, &created)
	if err != nil {
		return core.ExchangeRate{}, notFoundOr("get rate", err)
	}

	if rate.ID, err = uuid.Parse(id); err != nil {
		return core.ExchangeRate{}, err
	}
	if rate.Rate, err = parseDec(value); err != nil {
		return core.ExchangeRate{}, err
	}
	if rate.RateDate, err = parseDate(rateDate); err != nil {
		return core.ExchangeRate{}, err
	}
	if rate.CreatedAt, err = parseTime(created); err != nil {
		return core.ExchangeRate{}, err
	}
	return rate, nil
}
