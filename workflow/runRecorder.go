package workflow

import (
	"context"
	"unicode/utf8"

	"github.com/mmdatafocus/banking_datagen/models"
	"github.com/mmdatafocus/banking_datagen/publisher"
	"gorm.io/gorm"
)

const (
	// maxStoredFailures caps the failure rows stored per run.
	maxStoredFailures = 1000
	maxErrorMessage   = 4000
)

// GormRunRecorder stores runs in the publish_runs and publish_failures tables.
type GormRunRecorder struct {
	DB *gorm.DB
}

func (r *GormRunRecorder) Start(ctx context.Context, run *models.PublishRun) error {
	return models.CreatePublishRun(ctx, r.DB, run)
}

func (r *GormRunRecorder) Finish(ctx context.Context, run *models.PublishRun, report *publisher.Report, runErr error) error {
	failures := ApplyReport(run, report, runErr)
	return models.FinishPublishRun(ctx, r.DB, run, failures)
}

// ApplyReport copies report tallies onto run and returns the failure rows to store.
func ApplyReport(run *models.PublishRun, report *publisher.Report, runErr error) []models.PublishFailure {
	if report != nil {
		run.Attempted = report.Attempted
		run.Succeeded = report.Succeeded
		run.FailedCount = len(report.Failed)
	}
	run.Status = models.PublishRunStatusFor(run.Attempted, run.Succeeded, runErr)
	if runErr != nil {
		run.ErrorMessage = truncate(runErr.Error(), maxErrorMessage)
	} else if err := report.Err(); err != nil {
		run.ErrorMessage = truncate(err.Error(), maxErrorMessage)
	}
	if report == nil {
		return nil
	}

	n := min(len(report.Failed), maxStoredFailures)
	failures := make([]models.PublishFailure, 0, n)
	for _, f := range report.Failed[:n] {
		failures = append(failures, models.PublishFailure{
			RecordIndex: f.Index,
			Label:       f.Label,
			Message:     truncate(f.Err.Error(), maxErrorMessage),
		})
	}
	return failures
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
