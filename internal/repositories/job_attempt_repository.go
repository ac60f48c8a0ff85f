package repositories

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"paygate/internal/models/db_models"
	"paygate/pkg/jobqueue"
)

const defaultConsumer = "paygate-dispatcher"

// JobAttemptRepository persists terminal dispatcher results; it is the
// dispatcher's jobqueue.Recorder.
type JobAttemptRepository interface {
	jobqueue.Recorder
	ListRecent(ctx context.Context, outcome string, limit int) ([]db_models.JobAttempt, error)
}

type jobAttemptRepository struct {
	db       *gorm.DB
	consumer string
}

func NewJobAttemptRepository(db *gorm.DB, consumer string) JobAttemptRepository {
	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		consumer = defaultConsumer
	}
	return &jobAttemptRepository{db: db, consumer: consumer}
}

func (r *jobAttemptRepository) RecordResult(ctx context.Context, result jobqueue.Result) error {
	attempt := &db_models.JobAttempt{
		JobID:        result.JobID,
		Kind:         result.Kind,
		Consumer:     r.consumer,
		Outcome:      string(result.Outcome),
		AttemptCount: result.Attempts,
	}
	if result.Err != nil {
		attempt.LastError = result.Err.Error()
	}
	if !result.FinishedAt.IsZero() {
		attempt.CreatedAt = result.FinishedAt.Unix()
	}
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *jobAttemptRepository) ListRecent(ctx context.Context, outcome string, limit int) ([]db_models.JobAttempt, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := r.db.WithContext(ctx)
	if outcome != "" {
		query = query.Where("outcome = ?", outcome)
	}

	var attempts []db_models.JobAttempt
	err := query.Order("created_at DESC").Limit(limit).Find(&attempts).Error
	return attempts, err
}
