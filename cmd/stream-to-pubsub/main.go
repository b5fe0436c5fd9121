// stream-to-pubsub generates a dataset in-process and streams it to Pub/Sub in the
// BigQuery subscription shape: {"data": "<raw json>", "table": "...", "record": {field: {type: value}}}.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/mmdatafocus/banking_datagen/config"
	"github.com/mmdatafocus/banking_datagen/models"
	"github.com/mmdatafocus/banking_datagen/publisher"
	"github.com/mmdatafocus/banking_datagen/utils"
	"github.com/mmdatafocus/banking_datagen/workflow"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code.
func run() int {
	projectID := flag.String("project_id", config.PubSubProjectID(), "Required: Pub/Sub project id")
	topicID := flag.String("topic_id", config.Getenv("PUBSUB_TOPIC_ID", config.DefaultTopicID), "Pub/Sub topic id")
	schemaPath := flag.String("schema", "", "Optional: BigQuery schema.json (defaults to the bundled schema)")
	numCustomers := flag.Int("num_customers", 100, "Number of customers to generate")
	transactionsPerAccount := flag.Int("transactions_per_account", 10, "Transactions per account")
	dataType := flag.String("data_type", "", "Optional: only stream one table (customers, accounts, transactions, loans)")
	seed := flag.String("seed", "", "Optional: seed for a reproducible dataset")
	batchSize := flag.Int("batch_size", publisher.DefaultBatchSize, "Messages in flight per batch")
	createTopic := flag.Bool("create_topic", config.BoolFromEnv("CREATE_TOPIC", false), "Create the topic if it does not exist")
	flag.Parse()

	if strings.TrimSpace(*projectID) == "" {
		fmt.Fprintln(os.Stderr, "--project_id is required")
		return 1
	}
	if *dataType != "" && !models.IsValidTable(*dataType) {
		fmt.Fprintf(os.Stderr, "--data_type must be one of %s\n", strings.Join(models.Tables, ", "))
		return 1
	}

	schema := publisher.DefaultSchema()
	if *schemaPath != "" {
		var err error
		schema, err = publisher.LoadSchemaFile(*schemaPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load schema: %v\n", err)
			return 1
		}
	}
	enc, err := publisher.NewAvroUnionEncoder(schema)
	if err != nil {
		fmt.Fprintf(os.Stderr, "schema: %v\n", err)
		return 1
	}

	req := models.GenerateDataRequest{
		NumCustomers:           numCustomers,
		TransactionsPerAccount: transactionsPerAccount,
	}
	if s := strings.TrimSpace(*seed); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --seed: %v\n", err)
			return 1
		}
		req.Seed = &v
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = utils.SetCorrelationIdInContext(ctx, uuid.NewString())
	logger := config.GetLogger()

	sinkCfg := publisher.SinkConfig{
		Kind:        publisher.SinkPubSub,
		ProjectID:   *projectID,
		Topic:       *topicID,
		CreateTopic: *createTopic,
	}
	sink, err := publisher.OpenSink(ctx, sinkCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open sink: %v\n", err)
		return 1
	}
	defer sink.Close()

	pub, err := publisher.NewBatchPublisher(sink, enc, logger, publisher.Options{BatchSize: *batchSize})
	if err != nil {
		fmt.Fprintf(os.Stderr, "publisher: %v\n", err)
		return 1
	}

	wf := &workflow.IngestWorkflow{
		Source:     workflow.LocalDatasetSource{},
		Publisher:  pub,
		Logger:     logger,
		SourceName: "local",
		SinkName:   sinkCfg.Kind,
		Topic:      sinkCfg.Name(),
	}
	report, err := wf.Run(ctx, workflow.IngestRequest{Dataset: req, DataType: *dataType})
	if err != nil {
		fmt.Fprintf(os.Stderr, "stream failed: %v\n", err)
		return 1
	}

	fmt.Printf("Streamed %d/%d records to %s\n", report.Succeeded, report.Attempted, config.TopicPath(*projectID, *topicID))
	if len(report.Failed) > 0 {
		fmt.Printf("Failed %d records, indices %v\n", len(report.Failed), report.FailedIndices())
	}
	return 0
}
