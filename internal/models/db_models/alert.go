package db_models

import (
	"time"

	"github.com/google/uuid"
)

type AlertType string

const (
	AlertTypeCommon    AlertType = "common"
	AlertTypeScheduled AlertType = "scheduled"
)

type AlertStatus string

const (
	AlertStatusActive AlertStatus = "active"
	AlertStatusSent   AlertStatus = "sent"
)

// Layouts of Alert.ScheduledDate and Alert.ScheduledTime. Both compare
// lexically in the bot's timezone.
const (
	AlertDateLayout = "2006-01-02"
	AlertTimeLayout = "15:04:05"
)

// Alert is a broadcast message. Common alerts go out on every tick; scheduled
// alerts go out once, on or after their date and time.
type Alert struct {
	BaseModel
	BotID          uuid.UUID   `gorm:"type:uuid;index" json:"bot_id"`
	Type           AlertType   `gorm:"size:20;index" json:"type"`
	Message        string      `gorm:"type:text" json:"message"`
	MediaURL       string      `gorm:"size:512" json:"media_url,omitempty"`
	ScheduledDate  *string     `gorm:"size:10;index" json:"scheduled_date,omitempty"`
	ScheduledTime  *string     `gorm:"size:8" json:"scheduled_time,omitempty"`
	LanguageFilter string      `gorm:"size:16" json:"language_filter,omitempty"`
	CategoryFilter string      `gorm:"size:40" json:"category_filter,omitempty"`
	PlanFilter     *uuid.UUID  `gorm:"type:uuid" json:"plan_filter,omitempty"`
	Status         AlertStatus `gorm:"size:20;index" json:"status"`
	SentCount      int         `json:"sent_count"`
}

// IsDue evaluates the broadcast selection predicate at now.
func (a *Alert) IsDue(now time.Time) bool {
	if a.Status != AlertStatusActive {
		return false
	}
	switch a.Type {
	case AlertTypeCommon:
		return true
	case AlertTypeScheduled:
		if a.ScheduledDate == nil || *a.ScheduledDate > now.Format(AlertDateLayout) {
			return false
		}
		return a.ScheduledTime == nil || *a.ScheduledTime <= now.Format(AlertTimeLayout)
	}
	return false
}
