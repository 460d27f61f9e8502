package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"kosh/internal/core"
	"kosh/internal/storage"
)

// RateService ingests exchange-rate quotes. Rates are global reference
// data shared by every tenant; only the engine's own ingestion paths
// call this.
type RateService struct {
	storage *storage.Repository
}

func NewRateService(st *storage.Repository) *RateService {
	return &RateService{storage: st}
}

// RecordRate upserts the quote for a pair on a date. Re-ingesting the
// same pair and date replaces the earlier quote.
func (s *RateService) RecordRate(ctx context.Context, base, target string, rate decimal.Decimal, day time.Time, source string) error {
	base = strings.ToUpper(base)
	target = strings.ToUpper(target)
	if !core.ValidCurrency(base) || !core.ValidCurrency(target) {
		return core.ErrInvalidCurrency
	}
	if !rate.IsPositive() {
		return core.ErrInvalidExchangeRate
	}
	if day.IsZero() {
		return core.ErrInvalidDate
	}
	if source == "" {
		source = "manual"
	}

	err := s.storage.PutRate(ctx, core.ExchangeRate{
		ID:        uuid.New(),
		Base:      base,
		Target:    target,
		Rate:      rate,
		RateDate:  core.DateOnly(day),
		Source:    source,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("record rate: %w", err)
	}

	slog.InfoContext(ctx, "Exchange rate recorded",
		"base", base,
		"target", target,
		"rate", rate,
		"source", source)
	return nil
}

type seedRate struct {
	Base   string          `json:"base"`
	Target string          `json:"target"`
	Rate   decimal.Decimal `json:"rate"`
	Date   string          `json:"date"`
}

// SeedFromFile ingests rates from a JSON file, an array of
// {base, target, rate, date} objects. A missing file is not an error;
// a malformed entry aborts the whole seed.
func (s *RateService) SeedFromFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.InfoContext(ctx, "No rate seed file, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read rate seed file: %w", err)
	}

	var seeds []seedRate
	if err := json.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("parse rate seed file: %w", err)
	}

	for _, seed := range seeds {
		day, err := time.ParseInLocation("2006-01-02", seed.Date, time.UTC)
		if err != nil {
			return fmt.Errorf("parse seed date %q: %w", seed.Date, err)
		}
		if err := s.RecordRate(ctx, seed.Base, seed.Target, seed.Rate, day, "seed"); err != nil {
			return fmt.Errorf("seed rate %s/%s: %w", seed.Base, seed.Target, err)
		}
	}

	slog.InfoContext(ctx, "Exchange rates seeded", "path", path, "count", len(seeds))
	return nil
}
