package db_models

// JobAttempt is the durable terminal record of one dispatched job.
type JobAttempt struct {
	BaseModel
	JobID        string `gorm:"size:64;index" json:"job_id"`
	Kind         string `gorm:"size:64;index" json:"kind"`
	Consumer     string `gorm:"size:64" json:"consumer"`
	Outcome      string `gorm:"size:20;index" json:"outcome"`
	AttemptCount int    `json:"attempt_count"`
	LastError    string `gorm:"type:text" json:"last_error,omitempty"`
}
