package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

// BudgetAlertMessage announces that a budget crossed into warning or danger
// for the window starting at WindowStart. Amounts travel as integer cents.
type BudgetAlertMessage struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"userId"`
	BudgetID    int64     `json:"budgetId"`
	Category    string    `json:"category"`
	Period      string    `json:"period"`
	WindowStart string    `json:"windowStart"`
	SpentCents  int64     `json:"spentCents"`
	BudgetCents int64     `json:"budgetCents"`
	Percentage  float64   `json:"percentage"`
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewBudgetAlertMessage wraps an alert with a fresh message id.
func NewBudgetAlertMessage(a core.BudgetAlert) *BudgetAlertMessage {
	return &BudgetAlertMessage{
		ID:          uuid.NewString(),
		UserID:      a.UserID,
		BudgetID:    a.BudgetID,
		Category:    a.Category,
		Period:      string(a.Period),
		WindowStart: a.WindowStart.String(),
		SpentCents:  a.Spent.Cents,
		BudgetCents: a.Budget.Cents,
		Percentage:  a.Percentage,
		Status:      a.Status,
		Timestamp:   time.Now(),
	}
}

// Alert converts the message back to a validated domain alert.
func (m *BudgetAlertMessage) Alert() (core.BudgetAlert, error) {
	start, err := core.ParseDate(m.WindowStart)
	if err != nil {
		return core.BudgetAlert{}, fmt.Errorf("window start %q: %w", m.WindowStart, err)
	}
	a := core.BudgetAlert{
		UserID:      m.UserID,
		BudgetID:    m.BudgetID,
		Category:    m.Category,
		Period:      core.Period(m.Period),
		WindowStart: start,
		Spent:       core.Money{Cents: m.SpentCents},
		Budget:      core.Money{Cents: m.BudgetCents},
		Percentage:  m.Percentage,
		Status:      m.Status,
		CreatedAt:   m.Timestamp,
	}
	if err := a.Validate(); err != nil {
		return core.BudgetAlert{}, err
	}
	return a, nil
}

// ToJSON converts the message to JSON bytes
func (m *BudgetAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BudgetAlertMessageFromJSON decodes a message body.
func BudgetAlertMessageFromJSON(data []byte) (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
