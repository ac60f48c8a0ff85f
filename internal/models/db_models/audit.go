package db_models

import "github.com/google/uuid"

type AccessAction string

const (
	AccessGrant  AccessAction = "grant"
	AccessRevoke AccessAction = "revoke"
)

type AccessOutcome string

const (
	OutcomeAdded         AccessOutcome = "added"
	OutcomeAlreadyMember AccessOutcome = "already_member"
	OutcomeRemoved       AccessOutcome = "removed"
	OutcomeNotMember     AccessOutcome = "not_member"
	OutcomeKept          AccessOutcome = "kept" // revoke suppressed, another granted transaction covers the plan
	OutcomeSkipped       AccessOutcome = "skipped"
	OutcomeFailed        AccessOutcome = "failed"
)

// AccessAudit records every decision taken by the access reconciler.
type AccessAudit struct {
	BaseModel
	TransactionID uuid.UUID     `gorm:"type:uuid;index" json:"transaction_id"`
	ChannelID     *uuid.UUID    `gorm:"type:uuid;index" json:"channel_id,omitempty"`
	ContactID     *uuid.UUID    `gorm:"type:uuid;index" json:"contact_id,omitempty"`
	Action        AccessAction  `gorm:"size:10" json:"action"`
	Outcome       AccessOutcome `gorm:"size:20;index" json:"outcome"`
	Detail        string        `gorm:"type:text" json:"detail,omitempty"`
}
