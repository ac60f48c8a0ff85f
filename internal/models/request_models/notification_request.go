package request_models

type BroadcastRequest struct {
	BotID string `json:"bot_id" binding:"omitempty,uuid"`
}
