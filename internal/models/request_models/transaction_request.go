package request_models

import "github.com/google/uuid"

type CreateTransactionRequest struct {
	BotID         uuid.UUID      `json:"bot_id" binding:"required"`
	ContactID     uuid.UUID      `json:"contact_id" binding:"required"`
	PlanID        uuid.UUID      `json:"plan_id" binding:"required"`
	Status        string         `json:"status"` // defaults to pending
	Provider      string         `json:"provider"`
	ProviderTxnID string         `json:"provider_txn_id"`
	Metadata      map[string]any `json:"metadata"`
}

// StatusChangeRequest is the transition event supplied by a gateway adapter
// or a scheduled re-check.
type StatusChangeRequest struct {
	Status string `json:"status" binding:"required"`
}
