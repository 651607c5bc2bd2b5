package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names a cache-invalidating change.
type EventType string

const (
	ImportCompleted EventType = "import.completed"
	BudgetChanged   EventType = "budget.changed"
)

// Event tells every server instance that a user's dashboard data changed.
// Events carry ids only; receivers refetch.
type Event struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"userId"`
	FilterID  string    `json:"filterId,omitempty"`
	ImportID  string    `json:"importId,omitempty"`
	Category  string    `json:"category,omitempty"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewImportCompleted is published after a statement import.
func NewImportCompleted(userID, importID string) Event {
	return Event{Type: ImportCompleted, UserID: userID, ImportID: importID, Timestamp: time.Now()}
}

// NewBudgetChanged is published after a ring limit was saved.
func NewBudgetChanged(userID, filterID, category string) Event {
	return Event{Type: BudgetChanged, UserID: userID, FilterID: filterID, Category: category, Timestamp: time.Now()}
}

// ToJSON converts the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes and checks an event body.
func EventFromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	switch e.Type {
	case ImportCompleted, BudgetChanged:
	default:
		return Event{}, fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.UserID == "" {
		return Event{}, fmt.Errorf("%s event without user", e.Type)
	}
	return e, nil
}
