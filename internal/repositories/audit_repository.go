package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"paygate/internal/models/db_models"
)

type AuditRepository interface {
	Record(ctx context.Context, audit *db_models.AccessAudit) error
	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]db_models.AccessAudit, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Record(ctx context.Context, audit *db_models.AccessAudit) error {
	return r.db.WithContext(ctx).Create(audit).Error
}

func (r *auditRepository) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]db_models.AccessAudit, error) {
	var audits []db_models.AccessAudit
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at ASC").
		Find(&audits).Error
	return audits, err
}
