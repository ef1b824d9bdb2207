package eventlogger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is one audit record. Data is stored as JSON.
type Event struct {
	ID        uuid.UUID         `json:"id,omitempty"`
	Type      string            `json:"event_type,omitempty"`
	Data      any               `json:"event_data,omitempty"`
	Metadata  map[string]string `json:"event_metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type EventOption func(*Event)

func WithType(eventType string) EventOption {
	return func(e *Event) {
		e.Type = eventType
	}
}

func WithData(data any) EventOption {
	return func(e *Event) {
		e.Data = data
	}
}

func WithMetadata(metadata map[string]string) EventOption {
	return func(e *Event) {
		for k, v := range metadata {
			e.Metadata[k] = v
		}
	}
}

// WithSubject records what the event is about, e.g. ("recurring", id).
func WithSubject(kind, id string) EventOption {
	return func(e *Event) {
		e.Metadata["subject_type"] = kind
		e.Metadata["subject_id"] = id
	}
}

func WithTime(t time.Time) EventOption {
	return func(e *Event) {
		e.CreatedAt = t
	}
}

func NewEvent(opts ...EventOption) Event {
	e := Event{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		Metadata:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

type EventLogger interface {
	Save(ctx context.Context, e Event) error
	// GetBySubject returns the events recorded WithSubject(kind, id), oldest first.
	GetBySubject(ctx context.Context, kind, id string) ([]Event, error)
}
