// Package broadcast fans committed decisions out to external subscribers.
// The channel implementation keeps background processing testable without
// wiring queue infrastructure; the Kafka publisher is the production sink.
package broadcast

import (
	"context"
	"log/slog"

	"veriflow/internal/verification/ports"
)

// Channel buffers decision events on an in-process channel for a Worker to
// drain. Notify never blocks the decision path: when the buffer is full the
// event is dropped and logged.
type Channel struct {
	inbox  chan ports.DecisionMade
	logger *slog.Logger
}

func NewChannel(buffer int, logger *slog.Logger) *Channel {
	return &Channel{
		inbox:  make(chan ports.DecisionMade, buffer),
		logger: logger,
	}
}

func (c *Channel) Notify(_ context.Context, event ports.DecisionMade) error {
	select {
	case c.inbox <- event:
	default:
		if c.logger != nil {
			c.logger.Warn("decision broadcast buffer full, dropping event",
				"request_id", event.RequestID.String())
		}
	}
	return nil
}

// Inbox exposes the receive side for a Worker.
func (c *Channel) Inbox() <-chan ports.DecisionMade {
	return c.inbox
}

// Worker consumes decision events from a channel and hands them to a sink.
type Worker struct {
	sink  ports.Subscriber
	inbox <-chan ports.DecisionMade
}

func NewWorker(sink ports.Subscriber, inbox <-chan ports.DecisionMade) *Worker {
	return &Worker{sink: sink, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Notify(ctx, event); err != nil {
				return err
			}
		}
	}
}

// Fanout notifies every subscriber, logging failures instead of propagating
// them so one broken sink cannot starve the rest.
type Fanout struct {
	subscribers []ports.Subscriber
	logger      *slog.Logger
}

func NewFanout(logger *slog.Logger, subscribers ...ports.Subscriber) *Fanout {
	return &Fanout{subscribers: subscribers, logger: logger}
}

func (f *Fanout) Notify(ctx context.Context, event ports.DecisionMade) error {
	for _, sub := range f.subscribers {
		if err := sub.Notify(ctx, event); err != nil && f.logger != nil {
			f.logger.WarnContext(ctx, "decision subscriber failed",
				"request_id", event.RequestID.String(), "error", err)
		}
	}
	return nil
}
