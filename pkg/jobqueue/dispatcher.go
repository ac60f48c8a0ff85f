// Package jobqueue runs asynchronous jobs on a bounded worker pool with an
// attempt-bounded retry policy per job kind and a dead-letter hook for jobs
// that never succeed.
package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config sizes the worker pool and wires the terminal hooks.
type Config struct {
	Workers    int
	QueueSize  int
	Recorder   Recorder
	DeadLetter DeadLetterFunc
	Clock      func() time.Time
}

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

func (c Config) normalized() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

type registration struct {
	handler HandlerFunc
	policy  RetryPolicy
}

// Dispatcher consumes queued jobs with a fixed number of workers. A failing
// or panicking job never affects its siblings.
type Dispatcher struct {
	cfg Config
	log *zap.Logger

	mu       sync.RWMutex
	handlers map[string]registration
	queue    chan *Job
	started  bool
	stopped  bool

	// stopping is closed as soon as Stop begins, releasing producers
	// blocked on a full queue so Stop can take the write lock.
	stopping chan struct{}
	stopOnce sync.Once

	group  errgroup.Group
	cancel context.CancelFunc
}

// New builds a dispatcher. Handlers must be registered before jobs of their
// kind are executed; Start launches the workers.
func New(cfg Config, log *zap.Logger) *Dispatcher {
	cfg = cfg.normalized()
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		cfg:      cfg,
		log:      log.Named("jobqueue"),
		handlers: make(map[string]registration),
		queue:    make(chan *Job, cfg.QueueSize),
		stopping: make(chan struct{}),
	}
}

// Register binds a handler and its retry policy to a job kind.
func (d *Dispatcher) Register(kind string, handler HandlerFunc, policy RetryPolicy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = registration{handler: handler, policy: policy.normalized()}
}

// Enqueue hands a job to the workers. It blocks only while the queue is
// full, never while a job executes.
func (d *Dispatcher) Enqueue(ctx context.Context, job *Job) error {
	if job == nil || job.Kind == "" {
		return errors.New("jobqueue: job kind is required")
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.EnqueuedAt = d.cfg.Clock()

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}

	select {
	case d.queue <- job:
		return nil
	case <-d.stopping:
		return ErrDispatcherStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the workers. Workers keep running until Stop.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	for i := 0; i < d.cfg.Workers; i++ {
		d.group.Go(func() error {
			for job := range d.queue {
				d.execute(ctx, job)
			}
			return nil
		})
	}
	d.log.Info("dispatcher started", zap.Int("workers", d.cfg.Workers), zap.Int("queue_size", d.cfg.QueueSize))
}

// Stop closes the queue and waits for queued jobs to drain. When ctx ends
// first, in-flight retries are cancelled.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() { close(d.stopping) })

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		if pending := len(d.queue); pending > 0 {
			d.log.Warn("dispatcher stopped before start, dropping queued jobs", zap.Int("pending", pending))
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		_ = d.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.log.Info("dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) lookup(kind string) (registration, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	reg, ok := d.handlers[kind]
	return reg, ok
}

func (d *Dispatcher) execute(ctx context.Context, job *Job) {
	log := d.log.With(zap.String("job_id", job.ID), zap.String("kind", job.Kind))

	reg, ok := d.lookup(job.Kind)
	if !ok {
		d.finish(ctx, job, Result{Outcome: OutcomeDead, Err: fmt.Errorf("%w: %s", ErrUnknownKind, job.Kind)})
		return
	}

	policy := reg.policy
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialBackoff
	b.MaxInterval = policy.MaxBackoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		job.Attempts++
		err := d.attempt(ctx, job, reg.handler, policy.AttemptTimeout)
		if err == nil {
			return struct{}{}, nil
		}
		if IsSkip(err) || IsPermanent(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		log.Warn("job attempt failed",
			zap.Int("attempt", job.Attempts),
			zap.Int("max_attempts", policy.MaxAttempts),
			zap.Error(err))
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(policy.MaxAttempts)))

	switch {
	case err == nil:
		d.finish(ctx, job, Result{Outcome: OutcomeSucceeded})
	case IsSkip(err):
		d.finish(ctx, job, Result{Outcome: OutcomeSkipped, Err: err})
	default:
		d.finish(ctx, job, Result{Outcome: OutcomeDead, Err: err})
	}
}

func (d *Dispatcher) attempt(ctx context.Context, job *Job, handler HandlerFunc, timeout time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
	}()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return handler(ctx, job)
}

func (d *Dispatcher) finish(ctx context.Context, job *Job, result Result) {
	result.JobID = job.ID
	result.Kind = job.Kind
	result.Attempts = job.Attempts
	result.FinishedAt = d.cfg.Clock()

	// Bookkeeping must survive a cancelled worker context.
	ctx = context.WithoutCancel(ctx)

	log := d.log.With(zap.String("job_id", job.ID), zap.String("kind", job.Kind), zap.Int("attempts", job.Attempts))
	switch result.Outcome {
	case OutcomeSucceeded:
		log.Debug("job succeeded")
	case OutcomeSkipped:
		log.Info("job skipped", zap.Error(result.Err))
	case OutcomeDead:
		log.Error("job dead-lettered", zap.Error(result.Err))
		if d.cfg.DeadLetter != nil {
			d.cfg.DeadLetter(ctx, job, result)
		}
	}

	if d.cfg.Recorder != nil {
		if err := d.cfg.Recorder.RecordResult(ctx, result); err != nil {
			log.Warn("record job result", zap.Error(err))
		}
	}
}
