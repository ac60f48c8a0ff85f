package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"paygate/internal/models/db_models"
)

type ContactRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*db_models.Contact, error)
	// ListReachable returns the bot's human, unblocked contacts with an
	// active messaging status.
	ListReachable(ctx context.Context, botID uuid.UUID) ([]db_models.Contact, error)
	MarkBlocked(ctx context.Context, id uuid.UUID) error
	// ListIDsHoldingPlan returns the bot's contacts with a granted
	// transaction for plan.
	ListIDsHoldingPlan(ctx context.Context, botID, planID uuid.UUID) ([]uuid.UUID, error)
}

type contactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) FindByID(ctx context.Context, id uuid.UUID) (*db_models.Contact, error) {
	var contact db_models.Contact
	err := r.db.WithContext(ctx).First(&contact, "id = ?", id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &contact, nil
}

func (r *contactRepository) ListReachable(ctx context.Context, botID uuid.UUID) ([]db_models.Contact, error) {
	var contacts []db_models.Contact
	err := r.db.WithContext(ctx).
		Where("bot_id = ? AND is_bot = ? AND is_blocked = ? AND messaging_status = ?",
			botID, false, false, db_models.MessagingActive).
		Order("created_at ASC, id ASC").
		Find(&contacts).Error
	return contacts, err
}

func (r *contactRepository) MarkBlocked(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&db_models.Contact{}).
		Where("id = ?", id).
		Update("is_blocked", true).Error
}

func (r *contactRepository) ListIDsHoldingPlan(ctx context.Context, botID, planID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&db_models.Transaction{}).
		Distinct("contact_id").
		Where("bot_id = ? AND plan_id = ? AND status IN ?", botID, planID, db_models.GrantedStatuses).
		Pluck("contact_id", &ids).Error
	return ids, err
}
