package publisher

import (
	"context"
	"errors"
)

var (
	// ErrSinkUnavailable marks a sink that cannot accept any message (bad topic, no credentials, broker down).
	ErrSinkUnavailable = errors.New("sink unavailable")
	// ErrAckTimeout is recorded when a sink does not acknowledge a message within the ack timeout.
	ErrAckTimeout = errors.New("ack timeout")
	ErrEncode     = errors.New("encode record")
)

// Message is what a Sink receives: opaque bytes plus string attributes.
type Message struct {
	Data       []byte
	Attributes map[string]string
}

// Sink delivers one message and returns the broker-assigned message ID.
// Publish must return once ctx is done.
type Sink interface {
	Publish(ctx context.Context, msg Message) (string, error)
}

type SinkFunc func(ctx context.Context, msg Message) (string, error)

func (f SinkFunc) Publish(ctx context.Context, msg Message) (string, error) {
	return f(ctx, msg)
}
