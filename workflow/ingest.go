package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/banking_datagen/config"
	"github.com/mmdatafocus/banking_datagen/models"
	"github.com/mmdatafocus/banking_datagen/publisher"
	"github.com/mmdatafocus/banking_datagen/utils"
	"github.com/sirupsen/logrus"
)

type RecordPublisher interface {
	Publish(ctx context.Context, records []publisher.Record) (*publisher.Report, error)
}

// RunRecorder persists the lifecycle of an ingest run. Recorder failures never fail the run.
type RunRecorder interface {
	Start(ctx context.Context, run *models.PublishRun) error
	Finish(ctx context.Context, run *models.PublishRun, report *publisher.Report, runErr error) error
}

type IngestRequest struct {
	Dataset models.GenerateDataRequest
	// DataType limits the run to one table. Empty publishes all four.
	DataType string
}

// IngestWorkflow fetches a dataset and forwards its records to a publisher.
type IngestWorkflow struct {
	Source    DatasetSource
	Publisher RecordPublisher
	Recorder  RunRecorder
	Logger    *logrus.Logger
	// SourceName, SinkName and Topic label run records.
	SourceName string
	SinkName   string
	Topic      string
}

func (w *IngestWorkflow) Run(ctx context.Context, req IngestRequest) (*publisher.Report, error) {
	if req.DataType != "" && !models.IsValidTable(req.DataType) {
		return nil, fmt.Errorf("%w: data_type must be one of %v, got %q", models.ErrInvalidArgument, models.Tables, req.DataType)
	}
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	fields := logrus.Fields{
		"field":          "IngestWorkflow",
		"source":         w.SourceName,
		"sink":           w.SinkName,
		"data_type":      req.DataType,
		"correlation_id": cid,
	}

	start := time.Now()
	ds, err := w.Source.FetchDataset(ctx, req.Dataset)
	if err != nil {
		w.logError("FetchDataset", fields, err)
		return nil, err
	}
	if err := ds.CheckIntegrity(); err != nil {
		err = fmt.Errorf("%w: inconsistent dataset: %v", ErrUpstreamUnavailable, err)
		w.logError("CheckIntegrity", fields, err)
		return nil, err
	}
	counts := ds.Counts()
	if w.Logger != nil {
		w.Logger.WithFields(fields).WithFields(logrus.Fields{
			"customers":    counts.Customers,
			"accounts":     counts.Accounts,
			"transactions": counts.Transactions,
			"loans":        counts.Loans,
			"fetch_ms":     time.Since(start).Milliseconds(),
		}).Info("dataset fetched")
	}

	records, err := DatasetRecords(ds, req.DataType)
	if err != nil {
		return nil, err
	}

	run := &models.PublishRun{
		Source:        w.SourceName,
		Sink:          w.SinkName,
		Topic:         w.Topic,
		DataType:      req.DataType,
		CorrelationId: cid,
	}
	if raw, err := utils.MarshalToJSON(counts); err == nil {
		run.CountsJSON = []byte(raw)
	}
	recording := false
	if w.Recorder != nil {
		if err := w.Recorder.Start(ctx, run); err != nil {
			w.logError("Recorder.Start", fields, err)
		} else {
			recording = true
			ctx = utils.SetRunIdInContext(ctx, int(run.ID))
		}
	}

	report, err := w.Publisher.Publish(ctx, records)

	if recording {
		if rerr := w.Recorder.Finish(ctx, run, report, err); rerr != nil {
			w.logError("Recorder.Finish", fields, rerr)
		}
	}
	if err != nil {
		w.logError("Publish", fields, err)
		return nil, err
	}
	return report, nil
}

func (w *IngestWorkflow) logError(funcName string, fields logrus.Fields, err error) {
	if w.Logger == nil {
		return
	}
	config.LogError(w.Logger, "IngestWorkflow", funcName, "ingest run", fields, err)
}

// DatasetRecords flattens a dataset in table order customers, accounts, transactions, loans.
// Each record is labeled with its table.
func DatasetRecords(ds *models.Dataset, dataType string) ([]publisher.Record, error) {
	tables := models.Tables
	if dataType != "" {
		tables = []string{dataType}
	}
	records := make([]publisher.Record, 0, ds.Counts().Total())
	for _, table := range tables {
		rows, err := ds.Rows(table)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			records = append(records, publisher.Record{Label: table, Payload: row})
		}
	}
	return records, nil
}
