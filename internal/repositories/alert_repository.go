package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"paygate/internal/models/db_models"
)

type AlertRepository interface {
	// ListEligible returns active alerts that are due at now, in creation
	// order, optionally restricted to one bot.
	ListEligible(ctx context.Context, now time.Time, botID *uuid.UUID) ([]db_models.Alert, error)
	FindByID(ctx context.Context, id uuid.UUID) (*db_models.Alert, error)
	// MarkSent flips an active alert to sent. Only one caller wins.
	MarkSent(ctx context.Context, id uuid.UUID) (bool, error)
	IncrementSentCount(ctx context.Context, id uuid.UUID) error
}

type alertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

func (r *alertRepository) ListEligible(ctx context.Context, now time.Time, botID *uuid.UUID) ([]db_models.Alert, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", db_models.AlertStatusActive).
		Where(r.db.Where("type = ?", db_models.AlertTypeCommon).
			Or("type = ? AND scheduled_date <= ? AND (scheduled_time IS NULL OR scheduled_time <= ?)",
				db_models.AlertTypeScheduled,
				now.Format(db_models.AlertDateLayout),
				now.Format(db_models.AlertTimeLayout)))
	if botID != nil {
		query = query.Where("bot_id = ?", *botID)
	}

	var alerts []db_models.Alert
	err := query.Order("created_at ASC, id ASC").Find(&alerts).Error
	return alerts, err
}

func (r *alertRepository) FindByID(ctx context.Context, id uuid.UUID) (*db_models.Alert, error) {
	var alert db_models.Alert
	err := r.db.WithContext(ctx).First(&alert, "id = ?", id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &alert, nil
}

func (r *alertRepository) MarkSent(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db_models.Alert{}).
		Where("id = ? AND status = ?", id, db_models.AlertStatusActive).
		Update("status", db_models.AlertStatusSent)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *alertRepository) IncrementSentCount(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&db_models.Alert{}).
		Where("id = ?", id).
		Update("sent_count", gorm.Expr("sent_count + ?", 1)).Error
}
