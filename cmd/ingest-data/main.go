// ingest-data fetches a synthetic banking dataset from the data API and publishes every record.
//
// Usage:
//
//	go run ./cmd/ingest-data --project_id my-project --num_customers 100 --data_type transactions
//
// --local generates in-process instead of calling --api_url. --sink selects pubsub, kafka or nats.
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
	"github.com/sirupsen/logrus"
)

const defaultAPIURL = "http://localhost:5000/generate_data"

func main() {
	os.Exit(run())
}

// run returns the process exit code.
func run() int {
	projectID := flag.String("project_id", config.PubSubProjectID(), "Pub/Sub project id (required for --sink pubsub)")
	topicID := flag.String("topic_id", config.Getenv("PUBSUB_TOPIC_ID", config.DefaultTopicID), "Topic (Pub/Sub, Kafka) or subject (NATS)")
	apiURL := flag.String("api_url", config.Getenv("DATA_API_URL", defaultAPIURL), "Data API generate endpoint")
	numCustomers := flag.Int("num_customers", 100, "Number of customers to generate")
	transactionsPerAccount := flag.Int("transactions_per_account", 10, "Transactions per account")
	dataType := flag.String("data_type", "", "Optional: only publish one table (customers, accounts, transactions, loans)")
	seed := flag.String("seed", "", "Optional: seed for a reproducible dataset")
	local := flag.Bool("local", false, "Generate in-process instead of calling the data API")
	apiAttempts := flag.Uint("api_attempts", uint(config.IntFromEnv("DATA_API_ATTEMPTS", 3)), "Attempts for transport errors and 5xx replies")

	sinkKind := flag.String("sink", config.Getenv("SINK", publisher.SinkPubSub), "Sink: pubsub, kafka or nats")
	createTopic := flag.Bool("create_topic", config.BoolFromEnv("CREATE_TOPIC", false), "Create the Pub/Sub topic if it does not exist")
	kafkaBrokers := flag.String("kafka_brokers", config.Getenv("KAFKA_BROKERS", "localhost:9092"), "Comma separated Kafka brokers")
	natsURL := flag.String("nats_url", config.Getenv("NATS_URL", "nats://127.0.0.1:4222"), "NATS server URL")
	natsStream := flag.String("nats_stream", config.Getenv("NATS_STREAM", ""), "Optional: JetStream stream to create for the subject")

	batchSize := flag.Int("batch_size", publisher.DefaultBatchSize, "Messages in flight per batch")
	ackTimeout := flag.Duration("ack_timeout", config.DurationFromEnv("ACK_TIMEOUT", publisher.DefaultAckTimeout), "Wait for each acknowledgment")
	maxRetries := flag.Uint("max_retries", 0, "Re-publish a failed record this many times")
	envelope := flag.Bool("envelope", true, `Wrap each record as {"data": record}`)
	recordRuns := flag.Bool("record_runs", config.BoolFromEnv("RECORD_RUNS", false), "Store run results in the MySQL run ledger (DB_* env)")
	flag.Parse()

	if *dataType != "" && !models.IsValidTable(*dataType) {
		fmt.Fprintf(os.Stderr, "--data_type must be one of %s\n", strings.Join(models.Tables, ", "))
		return 1
	}
	if *batchSize < 1 {
		fmt.Fprintln(os.Stderr, "--batch_size must be >= 1")
		return 1
	}

	req := models.GenerateDataRequest{
		NumCustomers:           numCustomers,
		TransactionsPerAccount: transactionsPerAccount,
	}
	if strings.TrimSpace(*seed) != "" {
		v, err := strconv.ParseInt(strings.TrimSpace(*seed), 10, 64)
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
		Kind:         *sinkKind,
		ProjectID:    *projectID,
		Topic:        *topicID,
		CreateTopic:  *createTopic,
		KafkaBrokers: publisher.SplitBrokers(*kafkaBrokers),
		NATSURL:      *natsURL,
		NATSStream:   *natsStream,
	}
	if err := sinkCfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid sink flags: %v\n", utils.ProcessValidationErrors(err))
		return 1
	}

	var source workflow.DatasetSource = workflow.LocalDatasetSource{}
	sourceName := "local"
	if !*local {
		client := workflow.NewDataAPIClient(*apiURL)
		client.MaxAttempts = *apiAttempts
		source = client
		sourceName = *apiURL
	}

	sink, err := publisher.OpenSink(ctx, sinkCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open sink: %v\n", err)
		return 1
	}
	defer sink.Close()

	pub, err := publisher.NewBatchPublisher(sink, publisher.JSONEncoder{Envelope: *envelope}, logger, publisher.Options{
		BatchSize:  *batchSize,
		AckTimeout: *ackTimeout,
		MaxRetries: *maxRetries,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "publisher: %v\n", err)
		return 1
	}

	wf := &workflow.IngestWorkflow{
		Source:     source,
		Publisher:  pub,
		Logger:     logger,
		SourceName: sourceName,
		SinkName:   sinkCfg.Kind,
		Topic:      sinkCfg.Name(),
	}
	if *recordRuns {
		db, err := config.ConnectDatabaseWithRetry(ctx, config.IntFromEnv("DB_CONNECT_ATTEMPTS", 5))
		if err != nil {
			logger.WithFields(logrus.Fields{"field": "ingest-data"}).Warn("run ledger disabled: " + err.Error())
		} else if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "ingest-data"}).Warn("run ledger disabled: " + err.Error())
		} else {
			wf.Recorder = &workflow.GormRunRecorder{DB: db}
		}
	}

	report, err := wf.Run(ctx, workflow.IngestRequest{Dataset: req, DataType: *dataType})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ingest failed: %v\n", err)
		return 1
	}

	fmt.Printf("Published %d/%d messages to %s\n", report.Succeeded, report.Attempted, sinkCfg.Name())
	if len(report.Failed) > 0 {
		fmt.Printf("Failed %d messages, indices %v\n", len(report.Failed), report.FailedIndices())
	}
	return 0
}
