package jobqueue

import (
	"context"
	"time"
)

// Job is one unit of work. Payload is interpreted by the handler registered
// for Kind.
type Job struct {
	ID         string
	Kind       string
	Payload    any
	Attempts   int
	EnqueuedAt time.Time
}

// HandlerFunc executes one attempt of a job.
type HandlerFunc func(ctx context.Context, job *Job) error

// Outcome is the terminal state of a job.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeDead      Outcome = "dead"
)

// Result describes how a job finished.
type Result struct {
	JobID      string
	Kind       string
	Outcome    Outcome
	Attempts   int
	Err        error
	FinishedAt time.Time
}

// Recorder persists terminal job results.
type Recorder interface {
	RecordResult(ctx context.Context, result Result) error
}

// DeadLetterFunc is invoked once for every job that exhausted its attempts
// or failed permanently.
type DeadLetterFunc func(ctx context.Context, job *Job, result Result)

// RetryPolicy bounds how a job kind is retried.
type RetryPolicy struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 2 * time.Second
	defaultMaxBackoff     = 30 * time.Second
)

// DefaultPolicy allows three attempts with exponential backoff and no
// per-attempt deadline.
func DefaultPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    defaultMaxAttempts,
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
	}
}

// TimeSensitivePolicy is DefaultPolicy with a 60 second deadline per attempt.
func TimeSensitivePolicy() RetryPolicy {
	p := DefaultPolicy()
	p.AttemptTimeout = 60 * time.Second
	return p
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaultInitialBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.AttemptTimeout < 0 {
		p.AttemptTimeout = 0
	}
	return p
}
