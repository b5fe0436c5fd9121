package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	PublishRunStatusRunning = "running"
	PublishRunStatusSuccess = "success"
	PublishRunStatusFailed  = "failed"
	PublishRunStatusPartial = "partial"
)

// PublishRun is one ingest or stream run, persisted when a run ledger is configured.
type PublishRun struct {
	ID            uint             `gorm:"primary_key" json:"id"`
	Source        string           `gorm:"size:255;not null" json:"source"`
	Sink          string           `gorm:"size:50;not null" json:"sink"`
	Topic         string           `gorm:"size:255;not null" json:"topic"`
	DataType      string           `gorm:"size:20" json:"data_type"`
	Status        string           `gorm:"index;size:20;not null" json:"status"`
	CorrelationId string           `gorm:"index;size:64" json:"correlation_id"`
	CountsJSON    []byte           `gorm:"type:json" json:"counts"`
	Attempted     int              `json:"attempted"`
	Succeeded     int              `json:"succeeded"`
	FailedCount   int              `json:"failed_count"`
	ErrorMessage  string           `gorm:"type:text" json:"error_message"`
	StartedAt     *time.Time       `json:"started_at"`
	FinishedAt    *time.Time       `json:"finished_at"`
	DurationMs    int64            `json:"duration_ms"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	Failures      []PublishFailure `gorm:"foreignKey:RunId" json:"failures,omitempty"`
}

type PublishFailure struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	RunId       uint      `gorm:"index;not null" json:"run_id"`
	RecordIndex int       `gorm:"not null" json:"record_index"`
	Label       string    `gorm:"size:50" json:"label"`
	Message     string    `gorm:"type:text" json:"message"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func CreatePublishRun(ctx context.Context, db *gorm.DB, run *PublishRun) error {
	if db == nil {
		return errors.New("run ledger database is not connected")
	}
	if run.Status == "" {
		run.Status = PublishRunStatusRunning
	}
	if run.StartedAt == nil {
		now := time.Now()
		run.StartedAt = &now
	}
	return db.WithContext(ctx).Create(run).Error
}

// FinishPublishRun stores the outcome and failures of a run in one transaction.
func FinishPublishRun(ctx context.Context, db *gorm.DB, run *PublishRun, failures []PublishFailure) error {
	if db == nil {
		return errors.New("run ledger database is not connected")
	}
	now := time.Now()
	run.FinishedAt = &now
	if run.StartedAt != nil {
		run.DurationMs = now.Sub(*run.StartedAt).Milliseconds()
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(run).Select("status", "counts_json", "attempted", "succeeded", "failed_count", "error_message", "finished_at", "duration_ms").Updates(run).Error; err != nil {
			return err
		}
		if len(failures) == 0 {
			return nil
		}
		for i := range failures {
			failures[i].RunId = run.ID
		}
		return tx.CreateInBatches(failures, 100).Error
	})
}

// PublishRunStatusFor derives a run status from its tallies.
func PublishRunStatusFor(attempted, succeeded int, runErr error) string {
	switch {
	case runErr != nil:
		return PublishRunStatusFailed
	case succeeded == attempted:
		return PublishRunStatusSuccess
	case succeeded == 0:
		return PublishRunStatusFailed
	default:
		return PublishRunStatusPartial
	}
}
