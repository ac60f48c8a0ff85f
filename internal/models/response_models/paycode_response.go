package response_models

type PaycodeReport struct {
	Valid         bool     `json:"valid"`
	FormatValid   bool     `json:"format_valid"`
	CRCValid      bool     `json:"crc_valid"`
	CurrentCRC    string   `json:"current_crc"`
	CalculatedCRC string   `json:"calculated_crc"`
	Errors        []string `json:"errors"`
}

type MintedPaycode struct {
	TransactionID string `json:"transaction_id"`
	Code          string `json:"code"`
	CRC           string `json:"crc"`
}
