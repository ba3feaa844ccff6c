package audit

import (
	"context"
	"log/slog"
)

// Sink receives mirrored events, typically a broker producer.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// Worker drains the publisher's mirror channel into a sink.
type Worker struct {
	events <-chan Event
	sink   Sink
	logger *slog.Logger
}

func NewWorker(events <-chan Event, sink Sink, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{events: events, sink: sink, logger: logger}
}

// Run loops until ctx is canceled. Sink failures are logged and skipped; the
// durable order log already holds every event.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-w.events:
			if !ok {
				return
			}
			if err := w.sink.Publish(ctx, e); err != nil {
				w.logger.ErrorContext(ctx, "publish audit event",
					slog.Int64("order_id", e.OrderID),
					slog.String("event", e.Event),
					slog.Any("error", err))
			}
		}
	}
}
