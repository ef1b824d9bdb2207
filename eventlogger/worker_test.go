package eventlogger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLogger struct {
	mu     sync.Mutex
	events []Event
	block  chan struct{}
}

func (m *memLogger) Save(ctx context.Context, e Event) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memLogger) GetBySubject(ctx context.Context, kind, id string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.Metadata["subject_type"] == kind && e.Metadata["subject_id"] == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestNewEvent_Options(t *testing.T) {
	at := time.Date(2025, time.March, 10, 1, 0, 0, 0, time.UTC)
	e := NewEvent(
		WithType("recurring.materialized"),
		WithData(map[string]string{"amount": "10.00"}),
		WithSubject("recurring", "abc"),
		WithMetadata(map[string]string{"trigger": "sweep"}),
		WithTime(at),
	)

	assert.Equal(t, "recurring.materialized", e.Type)
	assert.Equal(t, at, e.CreatedAt)
	assert.Equal(t, "recurring", e.Metadata["subject_type"])
	assert.Equal(t, "abc", e.Metadata["subject_id"])
	assert.Equal(t, "sweep", e.Metadata["trigger"])
	assert.NotEqual(t, NewEvent().ID, e.ID)
}

func TestWorker_PersistsAndDrainsOnShutdown(t *testing.T) {
	store := &memLogger{}
	w := NewWorker(store, 10)
	w.Start()

	for i := 0; i < 5; i++ {
		w.Log(NewEvent(WithType("recurring.created"), WithSubject("recurring", "abc")))
	}
	w.Log(NewEvent(WithType("recurring.created"), WithSubject("recurring", "other")))
	w.Shutdown()

	got, err := store.GetBySubject(context.Background(), "recurring", "abc")
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestWorker_DropsWhenFull(t *testing.T) {
	store := &memLogger{}
	// Not started, so nothing consumes the buffer.
	w := NewWorker(store, 1)

	w.Log(NewEvent(WithType("a")))
	w.Log(NewEvent(WithType("b")))

	assert.Equal(t, int64(1), w.Dropped())
}
