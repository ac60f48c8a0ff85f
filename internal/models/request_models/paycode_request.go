package request_models

type ValidatePaycodeRequest struct {
	Code string `json:"code" binding:"required"`
}

type MintPaycodeRequest struct {
	Payload string `json:"payload" binding:"required"`
}
