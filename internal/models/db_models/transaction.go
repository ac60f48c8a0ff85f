package db_models

import (
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type TransactionStatus string

const (
	TxnStatusPending    TransactionStatus = "pending"
	TxnStatusProcessing TransactionStatus = "processing"
	TxnStatusApproved   TransactionStatus = "approved"
	TxnStatusPaid       TransactionStatus = "paid"
	TxnStatusCompleted  TransactionStatus = "completed"
	TxnStatusCancelled  TransactionStatus = "cancelled"
	TxnStatusExpired    TransactionStatus = "expired"
	TxnStatusRefunded   TransactionStatus = "refunded"
)

// GrantedStatuses give access to the plan's gated channel.
var GrantedStatuses = []TransactionStatus{TxnStatusApproved, TxnStatusPaid, TxnStatusCompleted}

// RevokedStatuses take access away when reached from a granted status.
var RevokedStatuses = []TransactionStatus{TxnStatusCancelled, TxnStatusExpired, TxnStatusRefunded}

func (s TransactionStatus) IsGranted() bool {
	return slices.Contains(GrantedStatuses, s)
}

func (s TransactionStatus) IsRevoked() bool {
	return slices.Contains(RevokedStatuses, s)
}

func (s TransactionStatus) Valid() bool {
	return s == TxnStatusPending || s == TxnStatusProcessing || s.IsGranted() || s.IsRevoked()
}

type Transaction struct {
	BaseModel
	BotID     uuid.UUID         `gorm:"type:uuid;index" json:"bot_id"`
	ContactID uuid.UUID         `gorm:"type:uuid;index" json:"contact_id"`
	PlanID    uuid.UUID         `gorm:"type:uuid;index" json:"plan_id"`
	Amount    decimal.Decimal   `gorm:"type:numeric(12,2)" json:"amount"`
	Currency  string            `gorm:"size:3" json:"currency"` // ISO 4217
	Status    TransactionStatus `gorm:"size:20;index" json:"status"`

	// Gateway fields
	Provider      string `gorm:"size:40;index" json:"provider"`
	ProviderTxnID string `gorm:"size:120;index" json:"provider_txn_id"`
	PaymentCode   string `gorm:"type:text" json:"payment_code,omitempty"` // EMV payload with checksum

	// unix seconds
	PaidAt     *int64 `json:"paid_at,omitempty"`
	RevokedAt  *int64 `json:"revoked_at,omitempty"`
	RefundedAt *int64 `json:"refunded_at,omitempty"`

	Metadata datatypes.JSONMap `gorm:"type:jsonb" json:"metadata"`
}
