package amqp

import (
	"encoding/json"
	"time"
)

// BudgetAlertMessage tells the notifier that a user's spending crossed
// a threshold of the month's allocation for one category.
type BudgetAlertMessage struct {
	UserID         string    `json:"user_id"`
	Category       string    `json:"category"`
	Month          string    `json:"month"`
	SpentCents     int64     `json:"spent_cents"`
	AllocatedCents int64     `json:"allocated_cents"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewBudgetAlertMessage(userID, category, month string, spentCents, allocatedCents int64, message string) *BudgetAlertMessage {
	return &BudgetAlertMessage{
		UserID:         userID,
		Category:       category,
		Month:          month,
		SpentCents:     spentCents,
		AllocatedCents: allocatedCents,
		Message:        message,
		Timestamp:      time.Now(),
	}
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
