package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"paygate/internal/models/db_models"
)

type BotRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*db_models.Bot, error)
}

type botRepository struct {
	db *gorm.DB
}

func NewBotRepository(db *gorm.DB) BotRepository {
	return &botRepository{db: db}
}

func (r *botRepository) FindByID(ctx context.Context, id uuid.UUID) (*db_models.Bot, error) {
	var bot db_models.Bot
	err := r.db.WithContext(ctx).First(&bot, "id = ?", id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &bot, nil
}
