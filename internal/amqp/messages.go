package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BudgetAlertMessage notifies the worker that a budget crossed its
// alert threshold. The usage figures are a snapshot from publish time;
// the worker re-validates the alert and recomputes them at delivery.
type BudgetAlertMessage struct {
	BudgetID    uuid.UUID       `json:"budget_id"`
	TenantID    uuid.UUID       `json:"tenant_id"`
	UserID      uuid.UUID       `json:"user_id"`
	Name        string          `json:"name"`
	Category    string          `json:"category,omitempty"`
	Currency    string          `json:"currency"`
	Cap         decimal.Decimal `json:"cap"`
	Spent       decimal.Decimal `json:"spent"`
	PercentUsed decimal.Decimal `json:"percent_used"`
	Timestamp   time.Time       `json:"timestamp"`
}

func (m *BudgetAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetAlertMessageFromJSON(data []byte) (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
