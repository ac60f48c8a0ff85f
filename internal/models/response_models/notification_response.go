package response_models

type BroadcastSummary struct {
	Alerts         int `json:"alerts"`
	Dispatched     int `json:"alerts_dispatched"`
	NoAudience     int `json:"alerts_without_audience"`
	AlreadyClaimed int `json:"alerts_already_claimed"`
	Failed         int `json:"alerts_failed"`
	JobsEnqueued   int `json:"jobs_enqueued"`
	EnqueueErrors  int `json:"enqueue_errors"`
}

type DownsellScanSummary struct {
	Downsells     int `json:"downsells"`
	Reserved      int `json:"deliveries_reserved"`
	JobsEnqueued  int `json:"jobs_enqueued"`
	EnqueueErrors int `json:"enqueue_errors"`
	Failed        int `json:"downsells_failed"`
}

type JobAttemptResponse struct {
	JobID     string `json:"job_id"`
	Kind      string `json:"kind"`
	Consumer  string `json:"consumer"`
	Outcome   string `json:"outcome"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
	At        string `json:"at"`
}
