package amqp

import (
	"testing"
	"time"
)

func TestNewPeriodEventMessage(t *testing.T) {
	msg := NewPeriodEventMessage(EventPeriodClosed, 2025, 6, "alice")

	if msg.Event != EventPeriodClosed {
		t.Errorf("Event = %v, want %v", msg.Event, EventPeriodClosed)
	}
	if msg.Year != 2025 || msg.Month != 6 {
		t.Errorf("period = %d-%d, want 2025-6", msg.Year, msg.Month)
	}
	if msg.Actor != "alice" {
		t.Errorf("Actor = %v", msg.Actor)
	}
	if msg.EventID == "" {
		t.Error("EventID should be set")
	}
	if msg.Timestamp.IsZero() || time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}

	other := NewPeriodEventMessage(EventPeriodClosed, 2025, 6, "alice")
	if other.EventID == msg.EventID {
		t.Error("event ids must be unique per message")
	}
}

func TestPeriodEventMessage_JSON(t *testing.T) {
	msg := &PeriodEventMessage{
		EventID:   "evt-1",
		Event:     EventPeriodReopened,
		Year:      2025,
		Month:     12,
		Actor:     "bob",
		Timestamp: time.Date(2025, 12, 31, 12, 0, 0, 0, time.UTC),
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := PeriodEventMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("PeriodEventMessageFromJSON() error = %v", err)
	}

	if parsed.EventID != msg.EventID || parsed.Event != msg.Event {
		t.Errorf("parsed %+v, want %+v", parsed, msg)
	}
	if parsed.Year != msg.Year || parsed.Month != msg.Month || parsed.Actor != msg.Actor {
		t.Errorf("parsed %+v, want %+v", parsed, msg)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestPeriodEventMessage_InvalidJSON(t *testing.T) {
	if _, err := PeriodEventMessageFromJSON([]byte(`{"year": "june"}`)); err == nil {
		t.Error("PeriodEventMessageFromJSON() should fail with invalid JSON")
	}
}
