package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/mmdatafocus/banking_datagen/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultBatchSize  = 10
	DefaultAckTimeout = 10 * time.Second
	DefaultRetryDelay = 200 * time.Millisecond
)

var tracer = otel.Tracer("banking-datagen/publisher")

type Options struct {
	// BatchSize bounds in-flight messages. Zero means DefaultBatchSize.
	BatchSize int
	// AckTimeout bounds the wait for each acknowledgment. Zero means DefaultAckTimeout.
	AckTimeout time.Duration
	// MaxRetries re-publishes a failed record this many times before recording it. Zero disables retries.
	MaxRetries uint
	RetryDelay time.Duration
}

func (o Options) withDefaults() (Options, error) {
	if o.BatchSize < 0 {
		return o, fmt.Errorf("batch size must be >= 1, got %d", o.BatchSize)
	}
	if o.BatchSize == 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.AckTimeout <= 0 {
		o.AckTimeout = DefaultAckTimeout
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	return o, nil
}

// BatchPublisher drives records through a Sink in fixed-size batches.
// Every batch waits for all of its acknowledgments before the next one starts.
type BatchPublisher struct {
	Sink    Sink
	Encoder Encoder
	Logger  *logrus.Logger
	opts    Options
}

func NewBatchPublisher(sink Sink, enc Encoder, logger *logrus.Logger, opts Options) (*BatchPublisher, error) {
	if sink == nil {
		return nil, errors.New("sink is required")
	}
	if enc == nil {
		enc = JSONEncoder{}
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return &BatchPublisher{Sink: sink, Encoder: enc, Logger: logger, opts: opts}, nil
}

func (p *BatchPublisher) Options() Options {
	return p.opts
}

// Publish sends every record and reports per-record outcomes.
// The first record goes out alone; if the sink is unavailable or never acknowledges it,
// the run stops there and the error is returned without a report. Later failures never abort the run.
func (p *BatchPublisher) Publish(ctx context.Context, records []Record) (*Report, error) {
	ctx, span := tracer.Start(ctx, "publisher.Publish", trace.WithAttributes(
		attribute.Int("records", len(records)),
		attribute.Int("batch_size", p.opts.BatchSize),
	))
	defer span.End()

	report := &Report{Failed: []RecordPublishFailure{}}
	if len(records) == 0 {
		return report, nil
	}

	_, err := p.publishOne(ctx, 0, records[0])
	if err != nil && errors.Is(err, ErrAckTimeout) {
		// clients that retry connection errors internally only surface a dead endpoint as a missing ack
		err = fmt.Errorf("%w: %w", ErrSinkUnavailable, err)
	}
	if err != nil && errors.Is(err, ErrSinkUnavailable) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sink unavailable")
		if p.Logger != nil {
			p.Logger.WithFields(logrus.Fields{
				"field": "BatchPublisher",
				"label": records[0].Label,
			}).Error(err)
		}
		return nil, fmt.Errorf("publish first record: %w", err)
	}
	p.tally(report, 0, records[0], err)

	for lo := 1; lo < len(records); lo += p.opts.BatchSize {
		hi := min(lo+p.opts.BatchSize, len(records))
		errs := p.publishBatch(ctx, records, lo, hi)
		for i, err := range errs {
			p.tally(report, lo+i, records[lo+i], err)
		}
	}

	span.SetAttributes(
		attribute.Int("succeeded", report.Succeeded),
		attribute.Int("failed", len(report.Failed)),
	)
	if len(report.Failed) > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d records failed", len(report.Failed), report.Attempted))
	}
	if p.Logger != nil {
		fields := logrus.Fields{
			"field":     "BatchPublisher",
			"attempted": report.Attempted,
			"succeeded": report.Succeeded,
			"failed":    len(report.Failed),
		}
		if runId, ok := utils.GetRunIdFromContext(ctx); ok {
			fields["run_id"] = runId
		}
		p.Logger.WithFields(fields).Info("publish finished")
	}
	return report, nil
}

// publishBatch publishes records[lo:hi] concurrently and returns their errors in index order.
func (p *BatchPublisher) publishBatch(ctx context.Context, records []Record, lo, hi int) []error {
	ctx, span := tracer.Start(ctx, "publisher.batch", trace.WithAttributes(
		attribute.Int("from", lo),
		attribute.Int("to", hi),
	))
	defer span.End()

	errs := make([]error, hi-lo)
	var wg sync.WaitGroup
	wg.Add(hi - lo)
	for i := lo; i < hi; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i-lo] = p.publishOne(ctx, i, records[i])
		}(i)
	}
	wg.Wait()
	return errs
}

func (p *BatchPublisher) tally(report *Report, index int, rec Record, err error) {
	report.Attempted++
	if err == nil {
		report.Succeeded++
		return
	}
	report.Failed = append(report.Failed, RecordPublishFailure{Index: index, Label: rec.Label, Err: err})
	if p.Logger != nil {
		p.Logger.WithFields(logrus.Fields{
			"field": "BatchPublisher",
			"index": index,
			"label": rec.Label,
		}).Warn(err)
	}
}

func (p *BatchPublisher) publishOne(ctx context.Context, index int, rec Record) (string, error) {
	data, err := p.Encoder.Encode(rec)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncode, err)
	}
	msg := Message{Data: data}
	if rec.Label != "" {
		msg.Attributes = map[string]string{"table": rec.Label}
	}

	var id string
	err = retry.Do(
		func() error {
			var perr error
			id, perr = p.publishWithTimeout(ctx, msg)
			return perr
		},
		retry.Attempts(p.opts.MaxRetries+1),
		retry.Delay(p.opts.RetryDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", err
	}
	if p.Logger != nil {
		p.Logger.WithFields(logrus.Fields{
			"field":      "BatchPublisher",
			"index":      index,
			"label":      rec.Label,
			"message_id": id,
		}).Debug("published")
	}
	return id, nil
}

func (p *BatchPublisher) publishWithTimeout(ctx context.Context, msg Message) (string, error) {
	ackCtx, cancel := context.WithTimeout(ctx, p.opts.AckTimeout)
	defer cancel()

	type result struct {
		id  string
		err error
	}
	done := make(chan result, 1)
	go func() {
		id, err := p.Sink.Publish(ackCtx, msg)
		done <- result{id: id, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("%w after %s", ErrAckTimeout, p.opts.AckTimeout)
		}
		return r.id, r.err
	case <-ackCtx.Done():
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("%w after %s", ErrAckTimeout, p.opts.AckTimeout)
	}
}

// Publish is the one-call form: JSON payloads, no retries, default ack timeout.
func Publish(ctx context.Context, records []Record, sink Sink, batchSize int) (*Report, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be >= 1, got %d", batchSize)
	}
	p, err := NewBatchPublisher(sink, JSONEncoder{}, nil, Options{BatchSize: batchSize})
	if err != nil {
		return nil, err
	}
	return p.Publish(ctx, records)
}
