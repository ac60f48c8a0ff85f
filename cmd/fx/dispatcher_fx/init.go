package dispatcher_fx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"paygate/internal/config"
	"paygate/internal/repositories"
	"paygate/internal/services"
	"paygate/pkg/jobqueue"
)

// Policies are the retry policies built from DISPATCH_* settings.
type Policies struct {
	Default       jobqueue.RetryPolicy
	TimeSensitive jobqueue.RetryPolicy
}

var Module = fx.Provide(
	provideDispatcher,
	provideEnqueuer,
	providePolicies,
)

func provideDispatcher(lc fx.Lifecycle, cfg config.Config, attempts repositories.JobAttemptRepository, log *zap.Logger) *jobqueue.Dispatcher {
	dispatcher := jobqueue.New(jobqueue.Config{
		Workers:   cfg.Dispatch.Workers,
		QueueSize: cfg.Dispatch.QueueSize,
		Recorder:  attempts,
		DeadLetter: func(ctx context.Context, job *jobqueue.Job, result jobqueue.Result) {
			log.Error("dead letter",
				zap.String("job_id", job.ID),
				zap.String("kind", job.Kind),
				zap.Any("payload", job.Payload),
				zap.Int("attempts", result.Attempts),
				zap.Error(result.Err))
		},
	}, log)

	// Handlers are registered by fx.Invoke calls, which all run before this
	// hook starts the workers.
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			dispatcher.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return dispatcher.Stop(ctx)
		},
	})
	return dispatcher
}

func provideEnqueuer(d *jobqueue.Dispatcher) services.JobEnqueuer {
	return d
}

func providePolicies(cfg config.Config) Policies {
	base := jobqueue.RetryPolicy{
		MaxAttempts:    cfg.Dispatch.MaxAttempts,
		InitialBackoff: cfg.Dispatch.RetryBackoff,
		MaxBackoff:     cfg.Dispatch.RetryMaxDelay,
	}
	timed := base
	timed.AttemptTimeout = cfg.Dispatch.AttemptTimeout
	return Policies{Default: base, TimeSensitive: timed}
}
