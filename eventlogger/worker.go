package eventlogger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Worker persists events off the request path through a buffered channel.
type Worker struct {
	eventCh chan Event
	logger  EventLogger
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	dropped atomic.Int64
}

func NewWorker(logger EventLogger, bufferSize int) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		eventCh: make(chan Event, bufferSize),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (w *Worker) Start() {
	w.wg.Go(func() {
		for {
			select {
			case <-w.ctx.Done():
				slog.Info("draining events before shutdown", "remaining_events", len(w.eventCh))
				for len(w.eventCh) > 0 {
					w.save(context.Background(), <-w.eventCh)
				}
				return
			case event := <-w.eventCh:
				w.save(w.ctx, event)
			}
		}
	})
}

func (w *Worker) save(ctx context.Context, event Event) {
	if err := w.logger.Save(ctx, event); err != nil {
		slog.Error("failed to save event", "error", err, "event_type", event.Type, "event_id", event.ID)
	}
}

// Log enqueues event without blocking. A full buffer drops the event.
func (w *Worker) Log(event Event) {
	select {
	case w.eventCh <- event:
	default:
		w.dropped.Add(1)
		slog.Warn("event channel full, dropping event", "event_type", event.Type)
	}
}

// Dropped reports how many events were discarded because the buffer was full.
func (w *Worker) Dropped() int64 {
	return w.dropped.Load()
}

func (w *Worker) Shutdown() {
	w.cancel()
	w.wg.Wait()
}
