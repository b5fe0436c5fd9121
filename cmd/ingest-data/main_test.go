package main

import (
	"context"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
)

const testProject = "test-project"

// newEmulator points the Pub/Sub client at an in-process server holding one topic.
func newEmulator(t *testing.T, topicID string) *pstest.Server {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })
	t.Setenv("PUBSUB_EMULATOR_HOST", srv.Addr)
	t.Setenv("SINK", "pubsub")

	client, err := pubsub.NewClient(context.Background(), testProject)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer client.Close()
	if _, err := client.CreateTopic(context.Background(), topicID); err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	return srv
}

func runWithArgs(t *testing.T, args ...string) int {
	t.Helper()
	oldArgs, oldFlags := os.Args, flag.CommandLine
	t.Cleanup(func() {
		os.Args, flag.CommandLine = oldArgs, oldFlags
	})
	os.Args = append([]string{"ingest-data"}, args...)
	flag.CommandLine = flag.NewFlagSet("ingest-data", flag.ContinueOnError)
	return run()
}

func TestRunPublishesLocalDataset(t *testing.T) {
	srv := newEmulator(t, "banking-raw-data")

	code := runWithArgs(t,
		"--local",
		"--project_id", testProject,
		"--topic_id", "banking-raw-data",
		"--num_customers", "3",
		"--transactions_per_account", "2",
		"--seed", "7",
		"--data_type", "customers",
	)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if got := len(srv.Messages()); got != 3 {
		t.Fatalf("server received %d messages, want 3", got)
	}
}

func TestRunReturnsExitCodeWhenUpstreamFails(t *testing.T) {
	srv := newEmulator(t, "banking-raw-data")
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"boom"}`))
	}))
	defer api.Close()

	code := runWithArgs(t,
		"--project_id", testProject,
		"--topic_id", "banking-raw-data",
		"--api_url", api.URL,
		"--api_attempts", "1",
	)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if got := len(srv.Messages()); got != 0 {
		t.Fatalf("server received %d messages, want 0", got)
	}
}

func TestRunRejectsUnknownDataType(t *testing.T) {
	if code := runWithArgs(t, "--local", "--data_type", "ledgers"); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}
