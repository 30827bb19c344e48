// Package events carries expense change notifications from the gateway
// server to background consumers over AMQP.
package events

import (
	"context"
	"sync"
)

// Publisher sends expense events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev ExpenseEvent) error
	Close() error
}

// Nop discards every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, ExpenseEvent) error { return nil }

func (Nop) Close() error { return nil }

// Recorder keeps published events in memory, for tests and local runs.
type Recorder struct {
	mu     sync.Mutex
	events []ExpenseEvent
	Err    error
}

func (r *Recorder) Publish(_ context.Context, ev ExpenseEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []ExpenseEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ExpenseEvent(nil), r.events...)
}
