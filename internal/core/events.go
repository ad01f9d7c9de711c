package core

import (
	"context"
	"errors"
	"sync"
)

// EventSink receives ledger notifications after the mutation that produced
// them has committed. Delivery failures never roll back the ledger.
type EventSink interface {
	Publish(ctx context.Context, evt Event) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, evt Event) error

// Publish implements EventSink.
func (f EventSinkFunc) Publish(ctx context.Context, evt Event) error { return f(ctx, evt) }

type discardSink struct{}

func (discardSink) Publish(context.Context, Event) error { return nil }

// LogSink writes each event to a Logger at info level.
type LogSink struct {
	Logger Logger
}

// Publish implements EventSink.
func (s LogSink) Publish(_ context.Context, evt Event) error {
	if s.Logger == nil {
		return nil
	}
	s.Logger.Info("ledger event",
		"id", evt.ID,
		"kind", string(evt.Kind),
		"record_id", evt.RecordID,
		"amount", evt.Amount,
		"price_per_unit", evt.PricePerUnit,
		"buyer", evt.Buyer,
		"seller", evt.Seller,
		"rect", evt.Rect.String(),
	)
	return nil
}

// EventRecorder retains published events in order.
type EventRecorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements EventSink.
func (r *EventRecorder) Publish(_ context.Context, evt Event) error {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything published so far.
func (r *EventRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// MultiSink fans an event out to every sink, joining their errors.
type MultiSink []EventSink

// Publish implements EventSink.
func (m MultiSink) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
