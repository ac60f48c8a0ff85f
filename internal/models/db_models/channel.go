package db_models

import "github.com/google/uuid"

// GatedChannel is a Telegram group or channel whose membership follows the
// payment status of its plan. InviteLink is generated lazily, once.
type GatedChannel struct {
	BaseModel
	BotID      uuid.UUID `gorm:"type:uuid;index" json:"bot_id"`
	PlanID     uuid.UUID `gorm:"type:uuid;index" json:"plan_id"`
	ChatID     int64     `gorm:"index" json:"chat_id"`
	Title      string    `gorm:"size:255" json:"title"`
	InviteLink string    `gorm:"size:255" json:"invite_link"`
}

type MembershipStatus string

const (
	MembershipMember  MembershipStatus = "member"
	MembershipRemoved MembershipStatus = "removed"
)

type ChannelMembership struct {
	BaseModel
	ChannelID     uuid.UUID        `gorm:"type:uuid;uniqueIndex:idx_membership_channel_contact" json:"channel_id"`
	ContactID     uuid.UUID        `gorm:"type:uuid;uniqueIndex:idx_membership_channel_contact" json:"contact_id"`
	TransactionID uuid.UUID        `gorm:"type:uuid;index" json:"transaction_id"`
	Status        MembershipStatus `gorm:"size:20;index" json:"status"`
	JoinedAt      *int64           `json:"joined_at,omitempty"`
	RemovedAt     *int64           `json:"removed_at,omitempty"`
}

func (m *ChannelMembership) Active() bool {
	return m != nil && m.Status == MembershipMember
}
