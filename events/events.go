package events

import (
	"context"
	"time"

	"go.uber.org/multierr"
)

// OrderEvent announces that an order reached a work status.
type OrderEvent struct {
	OrderID    uint      `json:"orderId"`
	CustomerID uint      `json:"-"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher delivers order events. Implementations must not block the
// caller on slow consumers; delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, evt OrderEvent) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, evt OrderEvent) error

func (f PublisherFunc) Publish(ctx context.Context, evt OrderEvent) error {
	return f(ctx, evt)
}

// Multi fans an event out to every publisher and combines their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt OrderEvent) error {
	var err error
	for _, p := range m {
		if p == nil {
			continue
		}
		err = multierr.Append(err, p.Publish(ctx, evt))
	}
	return err
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, OrderEvent) error { return nil }

// Recorder keeps published events in memory for tests.
type Recorder struct {
	ch chan OrderEvent
}

func NewRecorder(size int) *Recorder {
	return &Recorder{ch: make(chan OrderEvent, size)}
}

func (r *Recorder) Publish(_ context.Context, evt OrderEvent) error {
	select {
	case r.ch <- evt:
	default:
	}
	return nil
}

// Events drains everything recorded so far.
func (r *Recorder) Events() []OrderEvent {
	var out []OrderEvent
	for {
		select {
		case evt := <-r.ch:
			out = append(out, evt)
		default:
			return out
		}
	}
}
