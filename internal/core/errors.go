package core

import "errors"

var (
	// Validation errors: rejected before any state change.
	ErrInvalidPrincipal      = errors.New("principal must be positive")
	ErrInvalidRate           = errors.New("interest rate cannot be negative")
	ErrInvalidTenure         = errors.New("tenure must be at least one month")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInvalidCurrency       = errors.New("unknown currency code")
	ErrInvalidDate           = errors.New("date cannot be zero")
	ErrInvalidInterestMethod = errors.New("invalid interest method")
	ErrInvalidWindow         = errors.New("end date must not precede start date")
	ErrInvalidCounterparty   = errors.New("counterparty name is required")
	ErrInvalidRole           = errors.New("role must be borrowing or lending")
	ErrInvalidExchangeRate   = errors.New("exchange rate must be positive")
	ErrDescriptionTooLong    = errors.New("description too long (max 500 characters)")

	// Domain-rule violations on settlement events.
	ErrInvalidEventDate = errors.New("settlement date precedes origination date")
	ErrExcessSettlement = errors.New("settlement exceeds remaining balance")

	// ErrCrossTenant marks an access to an entity owned by another tenant.
	// It is logged but surfaced to callers as ErrNotFound so that the
	// existence of foreign entities is never confirmed.
	ErrCrossTenant = errors.New("entity belongs to another tenant")

	ErrNotFound = errors.New("not found")

	// ErrConcurrencyConflict is retryable: re-fetch the debt and retry once.
	ErrConcurrencyConflict = errors.New("concurrent modification detected")
)
