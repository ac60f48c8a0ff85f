package db_models

import "github.com/google/uuid"

type MessagingStatus string

const (
	MessagingActive   MessagingStatus = "active"
	MessagingInactive MessagingStatus = "inactive"
)

// Contact is a recipient known to a bot. TelegramID never changes once set.
type Contact struct {
	BaseModel
	BotID           uuid.UUID       `gorm:"type:uuid;uniqueIndex:idx_contact_bot_telegram" json:"bot_id"`
	TelegramID      int64           `gorm:"uniqueIndex:idx_contact_bot_telegram" json:"telegram_id"`
	Username        string          `gorm:"size:64" json:"username"`
	FirstName       string          `gorm:"size:120" json:"first_name"`
	LanguageCode    string          `gorm:"size:16" json:"language_code"`
	Category        string          `gorm:"size:40;index" json:"category"`
	IsBot           bool            `json:"is_bot"`
	IsBlocked       bool            `gorm:"index" json:"is_blocked"`
	MessagingStatus MessagingStatus `gorm:"size:20;default:active" json:"messaging_status"`
}
