package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Period lifecycle event kinds carried on the queue.
const (
	EventPeriodClosed   = "period.closed"
	EventPeriodReopened = "period.reopened"
)

// PeriodEventMessage notifies the worker that a period's lock state
// changed. It carries only the period key; the worker reads current
// state from the database, so a stale or replayed event is harmless.
type PeriodEventMessage struct {
	EventID   string    `json:"event_id"`
	Event     string    `json:"event"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}

// NewPeriodEventMessage creates an event with a fresh idempotency id.
func NewPeriodEventMessage(event string, year, month int, actor string) *PeriodEventMessage {
	return &PeriodEventMessage{
		EventID:   uuid.NewString(),
		Event:     event,
		Year:      year,
		Month:     month,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *PeriodEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PeriodEventMessageFromJSON creates a message from JSON bytes
func PeriodEventMessageFromJSON(data []byte) (*PeriodEventMessage, error) {
	var msg PeriodEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
