package response_models

import "github.com/google/uuid"

type PlanResponse struct {
	ID       uuid.UUID `json:"id"`
	Code     string    `json:"code"`               // e.g., "vip_monthly"
	Name     string    `json:"name"`               // Plan name
	Period   string    `json:"period"`             // "once" | "month" | "year"
	Price    string    `json:"price"`              // Decimal string, e.g., "19.90"
	Currency string    `json:"currency"`           // "BRL", "USD"
	IsActive bool      `json:"is_active"`          // Whether the plan can be bought
	Features []string  `json:"features,omitempty"` // List of features
}
