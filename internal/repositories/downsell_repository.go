package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"paygate/internal/models/db_models"
)

var errQuotaExhausted = errors.New("downsell quota exhausted")

type DownsellRepository interface {
	ListActive(ctx context.Context) ([]db_models.Downsell, error)
	FindByID(ctx context.Context, id uuid.UUID) (*db_models.Downsell, error)
	// ReserveDelivery creates the one delivery row of (downsell, transaction).
	// created is false when it already existed.
	ReserveDelivery(ctx context.Context, downsellID, transactionID uuid.UUID) (delivery *db_models.DownsellDelivery, created bool, err error)
	FindDelivery(ctx context.Context, id uuid.UUID) (*db_models.DownsellDelivery, error)
	// ConsumeForDelivery atomically checks the downsell is active and under
	// its cap, increments its usage counter and flags the delivery as
	// counted. A delivery already counted is not counted again. It returns
	// false when the quota check fails.
	ConsumeForDelivery(ctx context.Context, deliveryID, downsellID uuid.UUID) (bool, error)
	MarkDelivery(ctx context.Context, id uuid.UUID, status db_models.DeliveryStatus) error
	// ReleaseDelivery drops a reservation that was never enqueued so the next
	// scan picks the transaction up again.
	ReleaseDelivery(ctx context.Context, id uuid.UUID) error
}

type downsellRepository struct {
	db *gorm.DB
}

func NewDownsellRepository(db *gorm.DB) DownsellRepository {
	return &downsellRepository{db: db}
}

func (r *downsellRepository) ListActive(ctx context.Context) ([]db_models.Downsell, error) {
	var downsells []db_models.Downsell
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("max_uses IS NULL OR quantity_uses < max_uses").
		Order("created_at ASC").
		Find(&downsells).Error
	return downsells, err
}

func (r *downsellRepository) FindByID(ctx context.Context, id uuid.UUID) (*db_models.Downsell, error) {
	var downsell db_models.Downsell
	err := r.db.WithContext(ctx).First(&downsell, "id = ?", id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &downsell, nil
}

func (r *downsellRepository) ReserveDelivery(ctx context.Context, downsellID, transactionID uuid.UUID) (*db_models.DownsellDelivery, bool, error) {
	delivery := &db_models.DownsellDelivery{
		DownsellID:    downsellID,
		TransactionID: transactionID,
		Status:        db_models.DeliveryScheduled,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(delivery)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return delivery, true, nil
	}

	var existing db_models.DownsellDelivery
	err := r.db.WithContext(ctx).
		Where("downsell_id = ? AND transaction_id = ?", downsellID, transactionID).
		First(&existing).Error
	if err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func (r *downsellRepository) FindDelivery(ctx context.Context, id uuid.UUID) (*db_models.DownsellDelivery, error) {
	var delivery db_models.DownsellDelivery
	err := r.db.WithContext(ctx).First(&delivery, "id = ?", id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &delivery, nil
}

func (r *downsellRepository) ConsumeForDelivery(ctx context.Context, deliveryID, downsellID uuid.UUID) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&db_models.DownsellDelivery{}).
			Where("id = ? AND usage_counted = ?", deliveryID, false).
			Update("usage_counted", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// counted by an earlier attempt of the same delivery
			return nil
		}

		res = tx.Model(&db_models.Downsell{}).
			Where("id = ? AND is_active = ?", downsellID, true).
			Where("max_uses IS NULL OR quantity_uses < max_uses").
			Update("quantity_uses", gorm.Expr("quantity_uses + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errQuotaExhausted
		}
		return nil
	})
	if errors.Is(err, errQuotaExhausted) {
		return false, nil
	}
	return err == nil, err
}

func (r *downsellRepository) MarkDelivery(ctx context.Context, id uuid.UUID, status db_models.DeliveryStatus) error {
	return r.db.WithContext(ctx).
		Model(&db_models.DownsellDelivery{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *downsellRepository) ReleaseDelivery(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND status = ? AND usage_counted = ?", id, db_models.DeliveryScheduled, false).
		Delete(&db_models.DownsellDelivery{}).Error
}
