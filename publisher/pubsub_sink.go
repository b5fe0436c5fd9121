package publisher

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// PubSubSink publishes to one Google Cloud Pub/Sub topic.
type PubSubSink struct {
	topic *pubsub.Topic
	// client is closed with the sink when the sink owns it.
	client *pubsub.Client
}

func NewPubSubSink(topic *pubsub.Topic) *PubSubSink {
	return &PubSubSink{topic: topic}
}

func (s *PubSubSink) Publish(ctx context.Context, msg Message) (string, error) {
	result := s.topic.Publish(ctx, &pubsub.Message{
		Data:       msg.Data,
		Attributes: msg.Attributes,
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", classifyPubSubError(err)
	}
	return id, nil
}

// Close flushes pending messages and stops the topic's background goroutines.
func (s *PubSubSink) Close() error {
	s.topic.Stop()
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *PubSubSink) String() string {
	return "pubsub:" + s.topic.String()
}

func classifyPubSubError(err error) error {
	switch status.Code(err) {
	case codes.NotFound, codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable:
		return fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
	default:
		return err
	}
}
