package db_models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DownsellTrigger string

const (
	DownsellOnPaymentPending DownsellTrigger = "payment_pending"
	DownsellOnPaymentExpired DownsellTrigger = "payment_expired"
)

// TransactionStatus is the status a transaction must still hold for the
// downsell to fire.
func (t DownsellTrigger) TransactionStatus() (TransactionStatus, bool) {
	switch t {
	case DownsellOnPaymentPending:
		return TxnStatusPending, true
	case DownsellOnPaymentExpired:
		return TxnStatusExpired, true
	}
	return "", false
}

// Downsell is a quota-limited promotional offer sent once per transaction,
// DelayMinutes after the transaction was created.
type Downsell struct {
	BaseModel
	BotID        uuid.UUID       `gorm:"type:uuid;index" json:"bot_id"`
	PlanID       uuid.UUID       `gorm:"type:uuid;index" json:"plan_id"`
	Message      string          `gorm:"type:text" json:"message"`
	MediaURL     string          `gorm:"size:512" json:"media_url,omitempty"`
	Price        decimal.Decimal `gorm:"type:numeric(12,2)" json:"price"`
	QuantityUses int             `json:"quantity_uses"`
	MaxUses      *int            `json:"max_uses,omitempty"`
	DelayMinutes int             `json:"delay_minutes"`
	TriggerEvent DownsellTrigger `gorm:"size:30" json:"trigger_event"`
	IsActive     bool            `gorm:"index" json:"is_active"`
}

func (d *Downsell) CanBeUsed() bool {
	return d.IsActive && (d.MaxUses == nil || d.QuantityUses < *d.MaxUses)
}

type DeliveryStatus string

const (
	DeliveryScheduled DeliveryStatus = "scheduled"
	DeliverySent      DeliveryStatus = "sent"
	DeliverySkipped   DeliveryStatus = "skipped"
)

// DownsellDelivery makes a downsell one-shot per transaction. UsageCounted
// flips together with the downsell's usage counter so a retried job never
// counts twice.
type DownsellDelivery struct {
	BaseModel
	DownsellID    uuid.UUID      `gorm:"type:uuid;uniqueIndex:idx_delivery_downsell_txn" json:"downsell_id"`
	TransactionID uuid.UUID      `gorm:"type:uuid;uniqueIndex:idx_delivery_downsell_txn" json:"transaction_id"`
	Status        DeliveryStatus `gorm:"size:20;index" json:"status"`
	UsageCounted  bool           `json:"usage_counted"`
}
