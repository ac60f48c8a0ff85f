package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"paygate/internal/models/db_models"
)

type IPlanRepository interface {
	FindActive(ctx context.Context, botID, planID uuid.UUID) (*db_models.Plan, error)
	ListByBot(ctx context.Context, botID uuid.UUID) ([]db_models.Plan, error)
}

type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) IPlanRepository {
	return &PlanRepository{db: db}
}

func (p PlanRepository) FindActive(ctx context.Context, botID, planID uuid.UUID) (*db_models.Plan, error) {
	var plan db_models.Plan
	err := p.db.WithContext(ctx).
		Where("id = ? AND bot_id = ? AND is_active = ?", planID, botID, true).
		First(&plan).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &plan, nil
}

func (p PlanRepository) ListByBot(ctx context.Context, botID uuid.UUID) ([]db_models.Plan, error) {
	var plans []db_models.Plan
	err := p.db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Order("created_at ASC").
		Find(&plans).Error

	if err != nil {
		return nil, err
	}

	return plans, nil
}
