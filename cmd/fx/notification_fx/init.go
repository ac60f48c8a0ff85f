package notification_fx

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"paygate/cmd/fx/dispatcher_fx"
	"paygate/internal/config"
	"paygate/internal/repositories"
	"paygate/internal/services"
	"paygate/pkg/jobqueue"
	"paygate/pkg/memcache"
)

var Module = fx.Options(
	fx.Provide(
		provideAudience,
		provideAlertService,
		provideDownsellService,
		provideScheduler,
		provideTickRunner,
	),
	fx.Invoke(registerDeliveryJobs, startScheduler),
)

func provideAudience(contacts repositories.ContactRepository) services.AudienceResolver {
	return services.NewAudience(contacts,
		services.CategoryAudienceFilter(),
		services.PlanAudienceFilter(contacts))
}

func provideAlertService(
	alerts repositories.AlertRepository,
	contacts repositories.ContactRepository,
	bots repositories.BotRepository,
	audience services.AudienceResolver,
	client services.ChannelClient,
	jobs services.JobEnqueuer,
	loc *time.Location,
	log *zap.Logger,
) services.AlertServiceInterface {
	return services.NewAlertService(alerts, contacts, bots, audience, client, jobs, loc, log)
}

func provideDownsellService(
	cfg config.Config,
	downsells repositories.DownsellRepository,
	txns repositories.TransactionRepository,
	contacts repositories.ContactRepository,
	bots repositories.BotRepository,
	client services.ChannelClient,
	jobs services.JobEnqueuer,
	log *zap.Logger,
) services.DownsellServiceInterface {
	return services.NewDownsellService(downsells, txns, contacts, bots, client, jobs, cfg.DownsellBatchSize, log)
}

func provideScheduler(
	cfg config.Config,
	alerts services.AlertServiceInterface,
	downsells services.DownsellServiceInterface,
	leases memcache.LeaseStore,
	log *zap.Logger,
) *services.Scheduler {
	return services.NewScheduler(alerts, downsells, leases, cfg.AlertInterval, cfg.DownsellInterval, log)
}

func provideTickRunner(s *services.Scheduler) services.TickRunner {
	return s
}

func registerDeliveryJobs(
	d *jobqueue.Dispatcher,
	policies dispatcher_fx.Policies,
	alerts services.AlertServiceInterface,
	downsells services.DownsellServiceInterface,
) {
	d.Register(services.JobAlertDelivery, alerts.HandleDeliveryJob, policies.Default)
	d.Register(services.JobDownsellDelivery, downsells.HandleDeliveryJob, policies.TimeSensitive)
}

func startScheduler(lc fx.Lifecycle, s *services.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.Stop()
			return nil
		},
	})
}
