// Package bus provides an in-process message bus: named channel-backed
// queues, a producer handle per queue, and a consumer loop dispatching
// messages to typed handlers registered by message kind. It is the
// reference transport adapter for simpletransform nodes; brokered
// transports implement the same MessageProducer and handler contracts.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tendant/simple-transform/pkg/simpletransform"
)

// Message kind constants.
const (
	KindTransformationRequest = "transformation-request"
	KindTransformationReply   = "transformation-reply"
)

// DefaultQueueDepth is the buffered depth of each queue.
const DefaultQueueDepth = 64

// Envelope wraps a message body with its kind for dispatch.
type Envelope struct {
	Kind string
	Body any
}

// KindOf maps a message body to its kind. Unknown types map to "".
func KindOf(message any) string {
	switch message.(type) {
	case simpletransform.TransformationRequest, *simpletransform.TransformationRequest:
		return KindTransformationRequest
	case simpletransform.TransformationReply, *simpletransform.TransformationReply:
		return KindTransformationReply
	}
	return ""
}

// Handler processes one dispatched message body.
type Handler func(ctx context.Context, message any) error

// Bus is a set of named in-process queues.
type Bus struct {
	mu     sync.Mutex
	queues map[string]chan Envelope
	depth  int
	logger *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithQueueDepth sets the buffered depth of each queue.
func WithQueueDepth(depth int) Option {
	return func(b *Bus) {
		if depth > 0 {
			b.depth = depth
		}
	}
}

// WithLogger sets the bus logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates an in-process bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		queues: make(map[string]chan Envelope),
		depth:  DefaultQueueDepth,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) queue(name string) chan Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		q = make(chan Envelope, b.depth)
		b.queues[name] = q
	}
	return q
}

// Producer returns a MessageProducer publishing to the named queue.
func (b *Bus) Producer(queueName string) simpletransform.MessageProducer {
	return &queueProducer{queue: b.queue(queueName)}
}

// Consume runs a dispatch loop over the named queue until the context is
// cancelled. Messages of unregistered kinds are logged and dropped; handler
// errors are logged and do not stop the loop.
func (b *Bus) Consume(ctx context.Context, queueName string, dispatcher *Dispatcher) error {
	queue := b.queue(queueName)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case envelope := <-queue:
			if err := dispatcher.Dispatch(ctx, envelope); err != nil {
				b.logger.Error("message handling failed",
					"queue", queueName,
					"kind", envelope.Kind,
					"error", err)
			}
		}
	}
}

type queueProducer struct {
	queue chan Envelope
}

// Send publishes the message onto the queue, blocking while the queue is
// full until the context is cancelled.
func (p *queueProducer) Send(ctx context.Context, message any) error {
	kind := KindOf(message)
	if kind == "" {
		return fmt.Errorf("%w: unroutable message type %T", simpletransform.ErrInvalidArgument, message)
	}
	select {
	case p.queue <- Envelope{Kind: kind, Body: message}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatcher routes envelopes to handlers registered by message kind.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register installs the handler for a message kind, replacing any previous
// registration.
func (d *Dispatcher) Register(kind string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = handler
}

// Dispatch invokes the handler registered for the envelope's kind.
func (d *Dispatcher) Dispatch(ctx context.Context, envelope Envelope) error {
	d.mu.RLock()
	handler, ok := d.handlers[envelope.Kind]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no handler registered for message kind %q", envelope.Kind)
	}
	return handler(ctx, envelope.Body)
}
