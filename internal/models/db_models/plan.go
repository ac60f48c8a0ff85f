package db_models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type BillingPeriod string

const (
	PeriodOnce  BillingPeriod = "once"
	PeriodMonth BillingPeriod = "month"
	PeriodYear  BillingPeriod = "year"
)

// Plan is what a transaction pays for; its gated channel is looked up by
// (bot, plan).
type Plan struct {
	BaseModel
	BotID    uuid.UUID       `gorm:"type:uuid;index" json:"bot_id"`
	Code     string          `gorm:"size:64;index" json:"code"` // e.g. "vip_monthly"
	Name     string          `gorm:"size:120" json:"name"`
	Period   BillingPeriod   `gorm:"size:10" json:"period"`
	Price    decimal.Decimal `gorm:"type:numeric(12,2)" json:"price"`
	Currency string          `gorm:"size:3" json:"currency"` // "BRL", "USD"
	IsActive bool            `gorm:"index" json:"is_active"`
	Features datatypes.JSON  `gorm:"type:jsonb" json:"features,omitempty"`
}
