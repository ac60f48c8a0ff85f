package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"paygate/internal/models/db_models"
)

type TransactionRepository interface {
	Create(ctx context.Context, txn *db_models.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*db_models.Transaction, error)
	// CompareAndSetStatus moves the transaction from -> to only if its stored
	// status is still from. It reports whether the row was changed.
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to db_models.TransactionStatus, at int64) (bool, error)
	SavePaymentCode(ctx context.Context, id uuid.UUID, code string) error
	// HasGrantedForPlan reports whether contact holds a granted transaction
	// for plan other than excludeID.
	HasGrantedForPlan(ctx context.Context, contactID, planID, excludeID uuid.UUID) (bool, error)
	// ListAwaitingDownsell returns transactions of the downsell's bot and plan
	// in status, created at or before createdBefore, without a delivery of
	// this downsell yet.
	ListAwaitingDownsell(ctx context.Context, downsell *db_models.Downsell, status db_models.TransactionStatus, createdBefore int64, limit int) ([]db_models.Transaction, error)
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, txn *db_models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *transactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*db_models.Transaction, error) {
	var txn db_models.Transaction
	err := r.db.WithContext(ctx).First(&txn, "id = ?", id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &txn, nil
}

func (r *transactionRepository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to db_models.TransactionStatus, at int64) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": at,
	}
	switch {
	case to.IsGranted() && !from.IsGranted():
		updates["paid_at"] = at
	case to.IsRevoked() && from.IsGranted():
		updates["revoked_at"] = at
	}
	if to == db_models.TxnStatusRefunded {
		updates["refunded_at"] = at
	}

	res := r.db.WithContext(ctx).
		Model(&db_models.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *transactionRepository) SavePaymentCode(ctx context.Context, id uuid.UUID, code string) error {
	return r.db.WithContext(ctx).
		Model(&db_models.Transaction{}).
		Where("id = ?", id).
		Update("payment_code", code).Error
}

func (r *transactionRepository) HasGrantedForPlan(ctx context.Context, contactID, planID, excludeID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db_models.Transaction{}).
		Where("contact_id = ? AND plan_id = ? AND id <> ? AND status IN ?",
			contactID, planID, excludeID, db_models.GrantedStatuses).
		Count(&count).Error
	return count > 0, err
}

func (r *transactionRepository) ListAwaitingDownsell(ctx context.Context, downsell *db_models.Downsell, status db_models.TransactionStatus, createdBefore int64, limit int) ([]db_models.Transaction, error) {
	var txns []db_models.Transaction
	err := r.db.WithContext(ctx).
		Where("bot_id = ? AND plan_id = ? AND status = ? AND created_at <= ?",
			downsell.BotID, downsell.PlanID, status, createdBefore).
		Where("NOT EXISTS (SELECT 1 FROM downsell_deliveries dd WHERE dd.transaction_id = transactions.id AND dd.downsell_id = ?)",
			downsell.ID).
		Order("created_at ASC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}
