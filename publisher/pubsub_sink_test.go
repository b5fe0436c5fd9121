package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestPubSub(t *testing.T) (*pstest.Server, *pubsub.Client) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.Dial(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial pstest: %v", err)
	}
	client, err := pubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestPubSubSink_PublishesThroughBatchPublisher(t *testing.T) {
	srv, client := newTestPubSub(t)
	ctx := context.Background()
	topic, err := client.CreateTopic(ctx, "banking-raw-data")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	sink := NewPubSubSink(topic)
	defer sink.Close()

	records := []Record{
		{Label: "customers", Payload: map[string]int{"customer_id": 1}},
		{Label: "customers", Payload: map[string]int{"customer_id": 2}},
		{Label: "accounts", Payload: map[string]int{"account_id": 1}},
	}
	p, err := NewBatchPublisher(sink, JSONEncoder{Envelope: true}, nil, Options{BatchSize: 2})
	if err != nil {
		t.Fatalf("NewBatchPublisher: %v", err)
	}
	report, err := p.Publish(ctx, records)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if report.Succeeded != 3 {
		t.Fatalf("report = %+v", report)
	}

	msgs := srv.Messages()
	if len(msgs) != 3 {
		t.Fatalf("server received %d messages, want 3", len(msgs))
	}
	tables := map[string]int{}
	for _, m := range msgs {
		tables[m.Attributes["table"]]++
	}
	if tables["customers"] != 2 || tables["accounts"] != 1 {
		t.Fatalf("table attributes = %v", tables)
	}
}

func TestPubSubSink_MissingTopicIsUnavailable(t *testing.T) {
	_, client := newTestPubSub(t)
	sink := NewPubSubSink(client.Topic("does-not-exist"))
	defer sink.Close()

	report, err := Publish(context.Background(), []Record{{Payload: 1}, {Payload: 2}}, sink, 1)
	if !errors.Is(err, ErrSinkUnavailable) {
		t.Fatalf("err = %v, want ErrSinkUnavailable", err)
	}
	if report != nil {
		t.Fatalf("expected no report")
	}
}

func TestPubSubSink_UnreachableEndpointIsUnavailable(t *testing.T) {
	ctx := context.Background()
	// nothing listens on port 1; the client keeps retrying Unavailable until the ack wait expires
	conn, err := grpc.Dial("127.0.0.1:1", grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	client, err := pubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	sink := NewPubSubSink(client.Topic("banking-raw-data"))

	p, err := NewBatchPublisher(sink, JSONEncoder{}, nil, Options{BatchSize: 2, AckTimeout: 300 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewBatchPublisher: %v", err)
	}
	start := time.Now()
	report, err := p.Publish(ctx, []Record{{Payload: 0}, {Payload: 1}, {Payload: 2}, {Payload: 3}, {Payload: 4}})
	if !errors.Is(err, ErrSinkUnavailable) {
		t.Fatalf("err = %v, want ErrSinkUnavailable", err)
	}
	if report != nil {
		t.Fatalf("expected no report, got %+v", report)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Publish took %s, want it to stop after the first ack wait", elapsed)
	}
}
