package response_models

type TransactionResponse struct {
	ID          string         `json:"id"`
	BotID       string         `json:"bot_id"`
	ContactID   string         `json:"contact_id"`
	PlanID      string         `json:"plan_id"`
	Amount      string         `json:"amount"`
	Currency    string         `json:"currency"`
	Status      string         `json:"status"`
	PaymentCode string         `json:"payment_code,omitempty"`
	PaidAt      string         `json:"paid_at,omitempty"`
	RevokedAt   string         `json:"revoked_at,omitempty"`
	CreatedAt   string         `json:"created_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type StatusChangeResponse struct {
	Accepted bool     `json:"accepted"`
	Previous string   `json:"previous_status"`
	Current  string   `json:"current_status"`
	Events   []string `json:"events"`
}
