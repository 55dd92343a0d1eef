package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventAssignmentCreated  EventType = "assignment.created"
	EventBatchStatusChanged EventType = "batch.status_changed"
	EventReversalRecorded   EventType = "reversal.recorded"
	EventMandateAmended     EventType = "mandate.amended"
	EventMandateTerminated  EventType = "mandate.terminated"
	EventMandateAnonymized  EventType = "mandate.anonymized"
)

// Event is a row of the outbox. It is written in the same unit of work as
// the change it describes and published afterwards.
type Event struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Type        EventType       `db:"type" json:"type"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	PublishedAt *time.Time      `db:"published_at" json:"publishedAt"`
}

// NewEvent marshals payload into a new unpublished event.
func NewEvent(t EventType, payload any, now time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{
		ID:        uuid.New(),
		Type:      t,
		Payload:   raw,
		CreatedAt: now,
	}, nil
}
