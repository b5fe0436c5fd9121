package publisher

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/banking_datagen/config"
)

const (
	SinkPubSub = "pubsub"
	SinkKafka  = "kafka"
	SinkNATS   = "nats"
)

type SinkConfig struct {
	Kind      string `validate:"required,oneof=pubsub kafka nats"`
	ProjectID string `validate:"required_if=Kind pubsub"`
	Topic     string `validate:"required"`
	// CreateTopic creates the Pub/Sub topic when it does not exist yet.
	CreateTopic  bool
	KafkaBrokers []string `validate:"required_if=Kind kafka,dive,hostname_port"`
	NATSURL      string   `validate:"required_if=Kind nats"`
	NATSStream   string
	// ConnectAttempts bounds client construction retries. Zero means 3.
	ConnectAttempts int `validate:"gte=0"`
}

// ClosableSink is a Sink that holds a connection.
type ClosableSink interface {
	Sink
	Close() error
}

var validate = validator.New()

func (c SinkConfig) Validate() error {
	return validate.Struct(c)
}

// Name is the short form stored with run records, e.g. "pubsub:projects/p/topics/t".
func (c SinkConfig) Name() string {
	switch c.Kind {
	case SinkPubSub:
		return c.Kind + ":" + config.TopicPath(c.ProjectID, c.Topic)
	default:
		return c.Kind + ":" + c.Topic
	}
}

func OpenSink(ctx context.Context, cfg SinkConfig) (ClosableSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sink config: %w", err)
	}
	attempts := cfg.ConnectAttempts
	if attempts == 0 {
		attempts = 3
	}

	switch cfg.Kind {
	case SinkPubSub:
		client, err := config.NewPubSubClient(ctx, cfg.ProjectID, attempts)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
		}
		topic := client.Topic(cfg.Topic)
		if cfg.CreateTopic {
			topic, err = config.CreateTopicIfNotExists(ctx, client, cfg.Topic)
			if err != nil {
				_ = client.Close()
				return nil, classifyPubSubError(err)
			}
		}
		return &PubSubSink{topic: topic, client: client}, nil
	case SinkKafka:
		return NewKafkaSink(cfg.KafkaBrokers, cfg.Topic), nil
	case SinkNATS:
		return NewNATSSink(cfg.NATSURL, cfg.Topic, cfg.NATSStream)
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Kind)
	}
}

// SplitBrokers parses a comma separated broker list.
func SplitBrokers(csv string) []string {
	var out []string
	for _, p := range strings.Split(csv, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
