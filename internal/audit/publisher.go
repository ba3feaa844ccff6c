package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Publisher appends events to the order log inside the caller's transaction
// and, when a mirror sink is attached, hands a copy to the background worker.
// The hand-off never blocks: if the worker is behind, the mirror copy is
// dropped and the durable log row remains the source of truth.
type Publisher struct {
	store  EventStore
	mirror chan Event
	logger *slog.Logger
}

type PublisherOption func(*Publisher)

func WithMirror(buffer int) PublisherOption {
	return func(p *Publisher) {
		p.mirror = make(chan Event, buffer)
	}
}

func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(events EventStore, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		store:  events,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit writes the event to the log. The store joins any transaction carried
// by ctx, so a rolled-back order decision leaves no stray log rows.
func (p *Publisher) Emit(ctx context.Context, orderID int64, event string, at time.Time) error {
	e := Event{
		ID:      uuid.New(),
		OrderID: orderID,
		Event:   event,
		At:      at.UTC(),
	}
	if err := p.store.Append(ctx, &e); err != nil {
		return err
	}

	if p.mirror != nil {
		select {
		case p.mirror <- e:
		default:
			p.logger.WarnContext(ctx, "audit mirror buffer full, dropping event",
				slog.Int64("order_id", e.OrderID),
				slog.String("event", e.Event))
		}
	}
	return nil
}

// Trail returns the full event history of one order.
func (p *Publisher) Trail(ctx context.Context, orderID int64) ([]*Event, error) {
	return p.store.ListByOrder(ctx, orderID)
}

// Mirror exposes the hand-off channel for the worker. Nil when no mirror was
// configured.
func (p *Publisher) Mirror() <-chan Event {
	return p.mirror
}
