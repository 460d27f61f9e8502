package amqp

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
		{63, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			result := exponentialBackoff(tt.attempt)
			if result != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("connection refused"), true},
		{"connection closed", errors.New("connection closed"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"other error", errors.New("some other error"), false},
		{"validation error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isConnectionError(tt.err)
			if result != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestBudgetAlertMessageJSON(t *testing.T) {
	timestamp := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	msg := &BudgetAlertMessage{
		BudgetID:    uuid.New(),
		TenantID:    uuid.New(),
		UserID:      uuid.New(),
		Name:        "Groceries Q1",
		Category:    "groceries",
		Currency:    "INR",
		Cap:         decimal.RequireFromString("1000"),
		Spent:       decimal.RequireFromString("850"),
		PercentUsed: decimal.RequireFromString("85"),
		Timestamp:   timestamp,
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := BudgetAlertMessageFromJSON(body)
	if err != nil {
		t.Fatalf("BudgetAlertMessageFromJSON() error = %v", err)
	}

	if parsed.BudgetID != msg.BudgetID {
		t.Errorf("BudgetID = %v, want %v", parsed.BudgetID, msg.BudgetID)
	}
	if !parsed.Spent.Equal(msg.Spent) {
		t.Errorf("Spent = %v, want %v", parsed.Spent, msg.Spent)
	}
	if !parsed.PercentUsed.Equal(msg.PercentUsed) {
		t.Errorf("PercentUsed = %v, want %v", parsed.PercentUsed, msg.PercentUsed)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestBudgetAlertMessageInvalidJSON(t *testing.T) {
	if _, err := BudgetAlertMessageFromJSON([]byte(`{"budget_id": 42}`)); err == nil {
		t.Error("BudgetAlertMessageFromJSON() should fail with invalid JSON")
	}
}
