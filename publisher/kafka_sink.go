package publisher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// KafkaSink writes each message to a Kafka topic. The returned ID is the generated message key.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

func (s *KafkaSink) Publish(ctx context.Context, msg Message) (string, error) {
	key := uuid.NewString()
	headers := make([]kafka.Header, 0, len(msg.Attributes))
	for k, v := range msg.Attributes {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	err := s.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   msg.Data,
		Headers: headers,
	})
	if err != nil {
		return "", classifyKafkaError(err)
	}
	return key, nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

func (s *KafkaSink) String() string {
	return "kafka:" + s.writer.Topic
}

func classifyKafkaError(err error) error {
	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) && len(writeErrs) == 1 && writeErrs[0] != nil {
		err = writeErrs[0]
	}
	var opErr *net.OpError
	switch {
	case errors.Is(err, kafka.UnknownTopicOrPartition),
		errors.Is(err, kafka.TopicAuthorizationFailed),
		errors.Is(err, kafka.SASLAuthenticationFailed),
		errors.Is(err, kafka.LeaderNotAvailable),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.As(err, &opErr):
		return fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
	default:
		return err
	}
}
