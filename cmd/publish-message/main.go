// publish-message publishes one JSON message to a Pub/Sub topic and prints the server message id.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/banking_datagen/config"
	"github.com/mmdatafocus/banking_datagen/publisher"
)

const sampleMessage = `{"customer_id": 1, "name": "John Smith", "email": "jsmith@example.com"}`

func main() {
	os.Exit(run())
}

// run returns the process exit code.
func run() int {
	projectID := flag.String("project_id", config.PubSubProjectID(), "Required: Pub/Sub project id")
	topicID := flag.String("topic_id", config.Getenv("PUBSUB_TOPIC_ID", config.DefaultTopicID), "Pub/Sub topic id")
	message := flag.String("message", sampleMessage, "JSON message body")
	file := flag.String("file", "", "Optional: read the JSON message body from a file")
	table := flag.String("table", "", "Optional: table attribute")
	timeout := flag.Duration("timeout", publisher.DefaultAckTimeout, "Wait for the acknowledgment")
	flag.Parse()

	if strings.TrimSpace(*projectID) == "" {
		fmt.Fprintln(os.Stderr, "--project_id is required")
		return 1
	}

	body := []byte(*message)
	if *file != "" {
		raw, err := os.ReadFile(*file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read %s: %v\n", *file, err)
			return 1
		}
		body = raw
	}
	if !json.Valid(body) {
		fmt.Fprintln(os.Stderr, "message is not valid JSON")
		return 1
	}

	ctx := context.Background()
	sink, err := publisher.OpenSink(ctx, publisher.SinkConfig{
		Kind:      publisher.SinkPubSub,
		ProjectID: *projectID,
		Topic:     *topicID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open sink: %v\n", err)
		return 1
	}
	defer sink.Close()

	msg := publisher.Message{Data: body}
	if *table != "" {
		msg.Attributes = map[string]string{"table": *table}
	}
	ackCtx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	start := time.Now()
	id, err := sink.Publish(ackCtx, msg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "publish: %v\n", err)
		return 1
	}
	fmt.Printf("Published message %s to %s in %s\n", id, config.TopicPath(*projectID, *topicID), time.Since(start).Round(time.Millisecond))
	return 0
}
