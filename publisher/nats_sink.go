package publisher

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes to a JetStream subject and waits for the stream ack.
// The returned ID is "<stream>:<sequence>".
type NATSSink struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	subject string
}

// NewNATSSink connects to url. When stream is non-empty the stream is created for subject if missing.
func NewNATSSink(url, subject, stream string) (*NATSSink, error) {
	conn, err := nats.Connect(url, nats.Name("banking-datagen"))
	if err != nil {
		return nil, fmt.Errorf("%w: connect nats: %v", ErrSinkUnavailable, err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if stream != "" {
		if _, err := js.StreamInfo(stream); errors.Is(err, nats.ErrStreamNotFound) {
			if _, err := js.AddStream(&nats.StreamConfig{Name: stream, Subjects: []string{subject}}); err != nil {
				conn.Close()
				return nil, fmt.Errorf("add stream %q: %w", stream, err)
			}
		} else if err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: stream info %q: %v", ErrSinkUnavailable, stream, err)
		}
	}
	return &NATSSink{conn: conn, js: js, subject: subject}, nil
}

func (s *NATSSink) Publish(ctx context.Context, msg Message) (string, error) {
	m := nats.NewMsg(s.subject)
	m.Data = msg.Data
	for k, v := range msg.Attributes {
		m.Header.Set(k, v)
	}
	ack, err := s.js.PublishMsg(m, nats.Context(ctx))
	if err != nil {
		return "", classifyNATSError(err)
	}
	return ack.Stream + ":" + strconv.FormatUint(ack.Sequence, 10), nil
}

func (s *NATSSink) Close() error {
	return s.conn.Drain()
}

func (s *NATSSink) String() string {
	return "nats:" + s.subject
}

func classifyNATSError(err error) error {
	switch {
	case errors.Is(err, nats.ErrNoResponders),
		errors.Is(err, nats.ErrNoStreamResponse),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrAuthorization):
		return fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
	default:
		return err
	}
}
