// Package notify provides Notifier implementations. The real mail transport
// lives outside this engine; the slog notifier serves development and the
// recorder serves tests.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"veriflow/internal/verification/ports"
)

// Slog logs messages instead of sending them. Useful until a deployment
// wires a real transport.
type Slog struct {
	logger *slog.Logger
}

func NewSlog(logger *slog.Logger) *Slog {
	return &Slog{logger: logger}
}

func (n *Slog) Send(ctx context.Context, msg ports.Message) error {
	n.logger.InfoContext(ctx, "notification",
		"to", msg.To,
		"bcc", msg.BCC,
		"subject", msg.Subject,
	)
	return nil
}

// Recorder captures sent messages for assertions and can be primed to fail.
type Recorder struct {
	mu   sync.Mutex
	sent []ports.Message
	err  error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes every subsequent Send return err. Pass nil to heal.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) Send(_ context.Context, msg ports.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

// Sent returns a copy of the captured messages in send order.
func (r *Recorder) Sent() []ports.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.Message(nil), r.sent...)
}
