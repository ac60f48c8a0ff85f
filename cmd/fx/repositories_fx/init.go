package repositories_fx

import (
	"go.uber.org/fx"
	"gorm.io/gorm"
	"paygate/internal/config"
	"paygate/internal/repositories"
)

var Module = fx.Provide(
	repositories.NewTransactionRepository,
	repositories.NewPlanRepository,
	repositories.NewBotRepository,
	repositories.NewContactRepository,
	repositories.NewChannelRepository,
	repositories.NewAuditRepository,
	repositories.NewAlertRepository,
	repositories.NewDownsellRepository,
	provideJobAttemptRepo,
)

func provideJobAttemptRepo(db *gorm.DB, cfg config.Config) repositories.JobAttemptRepository {
	return repositories.NewJobAttemptRepository(db, cfg.Dispatch.Consumer)
}
