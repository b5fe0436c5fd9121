package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/banking_datagen/dataapi"
	"github.com/mmdatafocus/banking_datagen/models"
	"github.com/mmdatafocus/banking_datagen/publisher"
	"github.com/mmdatafocus/banking_datagen/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func intPtr(v int) *int { return &v }
func seedPtr(v int64) *int64 { return &v }

func seededRequest(n, t int, seed int64) models.GenerateDataRequest {
	return models.GenerateDataRequest{
		NumCustomers:           intPtr(n),
		TransactionsPerAccount: intPtr(t),
		Seed:                   seedPtr(seed),
	}
}

type fakePublisher struct {
	calls   int
	records []publisher.Record
	runId   int
	hasRun  bool
	err     error
}

func (p *fakePublisher) Publish(ctx context.Context, records []publisher.Record) (*publisher.Report, error) {
	p.calls++
	p.records = records
	p.runId, p.hasRun = utils.GetRunIdFromContext(ctx)
	if p.err != nil {
		return nil, p.err
	}
	return &publisher.Report{Attempted: len(records), Succeeded: len(records), Failed: []publisher.RecordPublishFailure{}}, nil
}

type fakeRecorder struct {
	startErr  error
	started   *models.PublishRun
	finished  bool
	gotReport *publisher.Report
	gotErr    error
}

func (r *fakeRecorder) Start(_ context.Context, run *models.PublishRun) error {
	if r.startErr != nil {
		return r.startErr
	}
	run.ID = 7
	r.started = run
	return nil
}

func (r *fakeRecorder) Finish(_ context.Context, run *models.PublishRun, report *publisher.Report, runErr error) error {
	r.finished = true
	r.gotReport = report
	r.gotErr = runErr
	ApplyReport(run, report, runErr)
	return nil
}

type countingSource struct {
	calls int
	ds    *models.Dataset
	err   error
}

func (s *countingSource) FetchDataset(context.Context, models.GenerateDataRequest) (*models.Dataset, error) {
	s.calls++
	return s.ds, s.err
}

func TestIngest_PublishesEveryTableInOrder(t *testing.T) {
	pub := &fakePublisher{}
	w := &IngestWorkflow{Source: LocalDatasetSource{}, Publisher: pub}
	report, err := w.Run(context.Background(), IngestRequest{Dataset: seededRequest(5, 3, 42)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want, _ := models.GenerateDataset(seededRequest(5, 3, 42).Options())
	if report.Attempted != want.Counts().Total() {
		t.Fatalf("attempted = %d, want %d", report.Attempted, want.Counts().Total())
	}

	rank := map[string]int{}
	for i, table := range models.Tables {
		rank[table] = i
	}
	for i := 1; i < len(pub.records); i++ {
		if rank[pub.records[i].Label] < rank[pub.records[i-1].Label] {
			t.Fatalf("record %d (%s) after %s", i, pub.records[i].Label, pub.records[i-1].Label)
		}
	}
	if pub.records[0].Label != models.TableCustomers {
		t.Fatalf("first record label = %s", pub.records[0].Label)
	}
	if pub.hasRun {
		t.Fatalf("run id set without a recorder")
	}
}

func TestIngest_DataTypeFilter(t *testing.T) {
	for _, table := range models.Tables {
		pub := &fakePublisher{}
		w := &IngestWorkflow{Source: LocalDatasetSource{}, Publisher: pub}
		if _, err := w.Run(context.Background(), IngestRequest{Dataset: seededRequest(20, 2, 4), DataType: table}); err != nil {
			t.Fatalf("%s: Run: %v", table, err)
		}
		for _, r := range pub.records {
			if r.Label != table {
				t.Fatalf("%s: got a %s record", table, r.Label)
			}
		}
	}
}

func TestIngest_InvalidDataTypeFailsBeforeFetch(t *testing.T) {
	src := &countingSource{ds: &models.Dataset{}}
	pub := &fakePublisher{}
	w := &IngestWorkflow{Source: src, Publisher: pub}
	_, err := w.Run(context.Background(), IngestRequest{DataType: "branches"})
	if !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
	if src.calls != 0 || pub.calls != 0 {
		t.Fatalf("source calls = %d, publisher calls = %d", src.calls, pub.calls)
	}
}

func TestIngest_UpstreamFailureProducesNoReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"database on fire"}`))
	}))
	defer srv.Close()

	pub := &fakePublisher{}
	rec := &fakeRecorder{}
	w := &IngestWorkflow{Source: NewDataAPIClient(srv.URL), Publisher: pub, Recorder: rec}
	report, err := w.Run(context.Background(), IngestRequest{})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
	if !strings.Contains(err.Error(), "database on fire") {
		t.Fatalf("err = %v, want upstream message", err)
	}
	if report != nil || pub.calls != 0 || rec.started != nil {
		t.Fatalf("report = %+v, publisher calls = %d, recorder started = %v", report, pub.calls, rec.started != nil)
	}
}

func TestIngest_InconsistentDatasetIsRejected(t *testing.T) {
	src := &countingSource{ds: &models.Dataset{
		Accounts: []models.Account{{AccountId: 1, CustomerId: 99}},
	}}
	pub := &fakePublisher{}
	w := &IngestWorkflow{Source: src, Publisher: pub}
	if _, err := w.Run(context.Background(), IngestRequest{}); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
	if pub.calls != 0 {
		t.Fatalf("published an inconsistent dataset")
	}
}

func TestIngest_RecorderLifecycle(t *testing.T) {
	pub := &fakePublisher{}
	rec := &fakeRecorder{}
	w := &IngestWorkflow{
		Source:     LocalDatasetSource{},
		Publisher:  pub,
		Recorder:   rec,
		SourceName: "local",
		SinkName:   "pubsub",
		Topic:      "banking-raw-data",
	}
	ctx := utils.SetCorrelationIdInContext(context.Background(), "cid-1")
	if _, err := w.Run(ctx, IngestRequest{Dataset: seededRequest(3, 1, 1), DataType: models.TableAccounts}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.started == nil || !rec.finished {
		t.Fatalf("recorder not driven: %+v", rec)
	}
	if rec.started.CorrelationId != "cid-1" || rec.started.DataType != models.TableAccounts || rec.started.Sink != "pubsub" {
		t.Fatalf("run = %+v", rec.started)
	}
	var counts models.DatasetCounts
	if err := json.Unmarshal(rec.started.CountsJSON, &counts); err != nil || counts.Customers != 3 {
		t.Fatalf("counts = %s (%v)", rec.started.CountsJSON, err)
	}
	if !pub.hasRun || pub.runId != 7 {
		t.Fatalf("publisher saw run id %d (%v)", pub.runId, pub.hasRun)
	}
	if rec.started.Status != models.PublishRunStatusSuccess {
		t.Fatalf("status = %s", rec.started.Status)
	}
}

func TestIngest_RecorderFailureDoesNotFailRun(t *testing.T) {
	pub := &fakePublisher{}
	rec := &fakeRecorder{startErr: errors.New("db down")}
	w := &IngestWorkflow{Source: LocalDatasetSource{}, Publisher: pub, Recorder: rec}
	if _, err := w.Run(context.Background(), IngestRequest{Dataset: seededRequest(2, 1, 1)}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.finished || pub.hasRun {
		t.Fatalf("finish should be skipped when start failed")
	}
}

func TestIngest_SinkUnavailableIsReturned(t *testing.T) {
	pub := &fakePublisher{err: fmt.Errorf("publish first record: %w", publisher.ErrSinkUnavailable)}
	rec := &fakeRecorder{}
	w := &IngestWorkflow{Source: LocalDatasetSource{}, Publisher: pub, Recorder: rec}
	report, err := w.Run(context.Background(), IngestRequest{Dataset: seededRequest(2, 1, 1)})
	if !errors.Is(err, publisher.ErrSinkUnavailable) || report != nil {
		t.Fatalf("report = %+v, err = %v", report, err)
	}
	if !rec.finished || !errors.Is(rec.gotErr, publisher.ErrSinkUnavailable) {
		t.Fatalf("recorder = %+v", rec)
	}
	if rec.started.Status != models.PublishRunStatusFailed {
		t.Fatalf("status = %s", rec.started.Status)
	}
}

func TestIngest_EndToEndThroughDataAPI(t *testing.T) {
	var seenCid atomic.Value
	router := dataapi.NewRouter(&dataapi.Handler{}, dataapi.RouterOptions{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenCid.Store(r.Header.Get("x-correlation-id"))
		router.ServeHTTP(w, r)
	}))
	defer srv.Close()

	var mu sync.Mutex
	labels := map[string]int{}
	sink := publisher.SinkFunc(func(_ context.Context, msg publisher.Message) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		labels[msg.Attributes["table"]]++
		return "id", nil
	})
	p, err := publisher.NewBatchPublisher(sink, publisher.JSONEncoder{Envelope: true}, nil, publisher.Options{BatchSize: 10})
	if err != nil {
		t.Fatalf("NewBatchPublisher: %v", err)
	}

	w := &IngestWorkflow{Source: NewDataAPIClient(srv.URL + "/generate_data"), Publisher: p}
	ctx := utils.SetCorrelationIdInContext(context.Background(), "e2e")
	report, err := w.Run(ctx, IngestRequest{Dataset: seededRequest(6, 2, 9)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Succeeded != report.Attempted || len(report.Failed) != 0 {
		t.Fatalf("report = %+v", report)
	}
	if labels[models.TableCustomers] != 6 {
		t.Fatalf("labels = %v", labels)
	}
	if labels[models.TableTransactions] != 2*labels[models.TableAccounts] {
		t.Fatalf("labels = %v", labels)
	}
	if seenCid.Load() != "e2e" {
		t.Fatalf("correlation id forwarded = %v", seenCid.Load())
	}
}

func TestDataAPIClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"message":"ok","data":{"customers":[],"accounts":[],"transactions":[],"loans":[]}}`))
	}))
	defer srv.Close()

	c := NewDataAPIClient(srv.URL)
	c.MaxAttempts = 3
	c.RetryDelay = time.Millisecond
	ds, err := c.FetchDataset(context.Background(), models.GenerateDataRequest{})
	if err != nil {
		t.Fatalf("FetchDataset: %v", err)
	}
	if ds.Counts().Total() != 0 || calls != 3 {
		t.Fatalf("counts = %+v, calls = %d", ds.Counts(), calls)
	}
}

func TestDataAPIClient_ClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"message":"invalid request"}`))
	}))
	defer srv.Close()

	c := NewDataAPIClient(srv.URL)
	c.MaxAttempts = 3
	c.RetryDelay = time.Millisecond
	if _, err := c.FetchDataset(context.Background(), models.GenerateDataRequest{}); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDataAPIClient_UnsuccessfulOrMalformedReplies(t *testing.T) {
	for name, body := range map[string]string{
		"success false": `{"success":false,"message":"nope"}`,
		"missing data":  `{"success":true}`,
		"malformed":     `<html>`,
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		_, err := NewDataAPIClient(srv.URL).FetchDataset(context.Background(), models.GenerateDataRequest{})
		srv.Close()
		if !errors.Is(err, ErrUpstreamUnavailable) {
			t.Fatalf("%s: err = %v", name, err)
		}
	}
}

// flaskBody is shaped like the reply of the Python data service: jsonify renders pandas timestamps as HTTP dates.
const flaskBody = `{
  "success": true,
  "message": "Data generated successfully",
  "customers_count": 1, "accounts_count": 1, "transactions_count": 2, "loans_count": 1,
  "data": {
    "customers": [{"customer_id": 1, "name": "Jane Smith", "address": "12 Main St, Chicago, IL 60601",
      "email": "abcde@example.com", "phone": "(312) 555-0100", "date_joined": "2010-03-01"}],
    "accounts": [{"account_id": 1, "customer_id": 1, "account_number": "1234567890", "account_type": "Checking",
      "balance": 5000.0, "open_date": "2020-01-01", "status": "Active"}],
    "transactions": [
      {"transaction_id": 2, "account_id": 1, "transaction_date": "Sat, 15 Jun 2024 00:00:00 GMT",
        "transaction_type": "Deposit", "amount": 120.5, "description": "Grocery - abcde", "category": "Grocery",
        "balance_after": 5120.5},
      {"transaction_id": 1, "account_id": 1, "transaction_date": "Sun, 16 Jun 2024 13:45:10 GMT",
        "transaction_type": "Withdrawal", "amount": -20.0, "description": "Rent - fghij", "category": "Rent",
        "balance_after": 5100.5}],
    "loans": [{"loan_id": 1, "customer_id": 1, "loan_type": "Auto", "principal": 15000.0, "interest_rate": 4.5,
      "term_months": 36, "issue_date": "2022-05-05", "status": "Active"}]
  }
}`

func TestDataAPIClient_ReadsFlaskShapedReplies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(flaskBody))
	}))
	defer srv.Close()

	ds, err := NewDataAPIClient(srv.URL).FetchDataset(context.Background(), models.GenerateDataRequest{})
	if err != nil {
		t.Fatalf("FetchDataset: %v", err)
	}
	if got := ds.Counts(); got != (models.DatasetCounts{Customers: 1, Accounts: 1, Transactions: 2, Loans: 1}) {
		t.Fatalf("counts = %+v", got)
	}
	want := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
	if !ds.Transactions[0].TransactionDate.Equal(want) {
		t.Fatalf("transaction_date = %v, want %v", ds.Transactions[0].TransactionDate, want)
	}
	if got := ds.Transactions[1].TransactionDate; !got.Equal(time.Date(2024, time.June, 16, 13, 45, 10, 0, time.UTC)) {
		t.Fatalf("transaction_date = %v", got)
	}
	if err := ds.CheckIntegrity(); err != nil {
		t.Fatalf("CheckIntegrity: %v", err)
	}

	pub := &fakePublisher{}
	w := &IngestWorkflow{Source: NewDataAPIClient(srv.URL), Publisher: pub}
	report, err := w.Run(context.Background(), IngestRequest{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Attempted != 5 {
		t.Fatalf("attempted = %d, want 5", report.Attempted)
	}
}

func TestDataAPIClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	if _, err := NewDataAPIClient(url).FetchDataset(context.Background(), models.GenerateDataRequest{}); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"nack", 10, "nack"},
		{"nack", 2, "na"},
		{"héllo", 2, "h"},
		{"héllo", 3, "hé"},
		{"日本語", 4, "日"},
		{"日本語", 2, ""},
	}
	for _, tc := range cases {
		got := truncate(tc.in, tc.n)
		if got != tc.want || !utf8.ValidString(got) {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}

	long := strings.Repeat("é", maxErrorMessage)
	run := &models.PublishRun{}
	failures := ApplyReport(run, &publisher.Report{
		Attempted: 1,
		Failed:    []publisher.RecordPublishFailure{{Index: 0, Err: errors.New(long)}},
	}, nil)
	if !utf8.ValidString(run.ErrorMessage) || len(run.ErrorMessage) > maxErrorMessage {
		t.Fatalf("run error message is %d bytes, valid=%v", len(run.ErrorMessage), utf8.ValidString(run.ErrorMessage))
	}
	if msg := failures[0].Message; !utf8.ValidString(msg) || len(msg) > maxErrorMessage {
		t.Fatalf("failure message is %d bytes, valid=%v", len(msg), utf8.ValidString(msg))
	}
}

func TestApplyReport(t *testing.T) {
	run := &models.PublishRun{}
	report := &publisher.Report{
		Attempted: 3,
		Succeeded: 2,
		Failed:    []publisher.RecordPublishFailure{{Index: 1, Label: "loans", Err: errors.New("nack")}},
	}
	failures := ApplyReport(run, report, nil)
	if run.Status != models.PublishRunStatusPartial || run.Attempted != 3 || run.FailedCount != 1 {
		t.Fatalf("run = %+v", run)
	}
	if len(failures) != 1 || failures[0].RecordIndex != 1 || failures[0].Label != "loans" || failures[0].Message != "nack" {
		t.Fatalf("failures = %+v", failures)
	}
	if !strings.Contains(run.ErrorMessage, "nack") {
		t.Fatalf("error message = %q", run.ErrorMessage)
	}

	many := &publisher.Report{Attempted: maxStoredFailures + 5}
	for i := 0; i < maxStoredFailures+5; i++ {
		many.Failed = append(many.Failed, publisher.RecordPublishFailure{Index: i, Err: errors.New("x")})
	}
	run = &models.PublishRun{}
	if got := ApplyReport(run, many, nil); len(got) != maxStoredFailures {
		t.Fatalf("stored failures = %d", len(got))
	}
	if run.Status != models.PublishRunStatusFailed || len(run.ErrorMessage) > maxErrorMessage {
		t.Fatalf("run = %+v", run)
	}

	run = &models.PublishRun{}
	if got := ApplyReport(run, nil, errors.New("sink gone")); got != nil || run.Status != models.PublishRunStatusFailed {
		t.Fatalf("run = %+v, failures = %v", run, got)
	}
}
