package db_models

// Bot is the channel-bot aggregate that owns contacts, channels,
// transactions, alerts and downsells.
type Bot struct {
	BaseModel
	Name     string `gorm:"size:120" json:"name"`
	Username string `gorm:"size:64;uniqueIndex" json:"username"`
	Token    string `gorm:"size:120" json:"-"`
	IsActive bool   `gorm:"index" json:"is_active"`
}
