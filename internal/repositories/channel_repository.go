package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"paygate/internal/models/db_models"
)

type ChannelRepository interface {
	FindByPlan(ctx context.Context, botID, planID uuid.UUID) (*db_models.GatedChannel, error)
	// SaveInviteLink stores link only when the channel has none yet and
	// returns whichever link ends up stored.
	SaveInviteLink(ctx context.Context, channelID uuid.UUID, link string) (string, error)
	FindMembership(ctx context.Context, channelID, contactID uuid.UUID) (*db_models.ChannelMembership, error)
	UpsertMembership(ctx context.Context, membership *db_models.ChannelMembership) error
}

type channelRepository struct {
	db *gorm.DB
}

func NewChannelRepository(db *gorm.DB) ChannelRepository {
	return &channelRepository{db: db}
}

func (r *channelRepository) FindByPlan(ctx context.Context, botID, planID uuid.UUID) (*db_models.GatedChannel, error) {
	var channel db_models.GatedChannel
	err := r.db.WithContext(ctx).
		Where("bot_id = ? AND plan_id = ?", botID, planID).
		Order("created_at ASC").
		First(&channel).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &channel, nil
}

func (r *channelRepository) SaveInviteLink(ctx context.Context, channelID uuid.UUID, link string) (string, error) {
	err := r.db.WithContext(ctx).
		Model(&db_models.GatedChannel{}).
		Where("id = ? AND (invite_link = '' OR invite_link IS NULL)", channelID).
		Update("invite_link", link).Error
	if err != nil {
		return "", err
	}

	var channel db_models.GatedChannel
	if err := r.db.WithContext(ctx).Select("invite_link").First(&channel, "id = ?", channelID).Error; err != nil {
		return "", err
	}
	return channel.InviteLink, nil
}

func (r *channelRepository) FindMembership(ctx context.Context, channelID, contactID uuid.UUID) (*db_models.ChannelMembership, error) {
	var membership db_models.ChannelMembership
	err := r.db.WithContext(ctx).
		Where("channel_id = ? AND contact_id = ?", channelID, contactID).
		First(&membership).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &membership, nil
}

func (r *channelRepository) UpsertMembership(ctx context.Context, membership *db_models.ChannelMembership) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}, {Name: "contact_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"transaction_id", "status", "joined_at", "removed_at", "updated_at"}),
		}).
		Create(membership).Error
}
