package events

import (
	"context"
	"encoding/json"
	"time"
)

// Type names a change to the ledger. It doubles as the AMQP routing key.
type Type string

const (
	UserCreated    Type = "user.created"
	UserDeleted    Type = "user.deleted"
	ExpenseCreated Type = "expense.created"
	ExpenseUpdated Type = "expense.updated"
	ExpenseDeleted Type = "expense.deleted"
)

// Event describes a committed change.
type Event struct {
	Type       Type      `json:"type"`
	UserID     int64     `json:"user_id"`
	ExpenseID  int64     `json:"expense_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New stamps an event with the current time.
func New(t Type, userID, expenseID int64) Event {
	return Event{Type: t, UserID: userID, ExpenseID: expenseID, OccurredAt: time.Now().UTC()}
}

// ToJSON encodes the event for the wire.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers change events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
