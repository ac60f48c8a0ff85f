package paycode_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"paygate/internal/repositories"
	"paygate/internal/services"
)

var Module = fx.Provide(providePaycodeService)

func providePaycodeService(txns repositories.TransactionRepository, log *zap.Logger) services.PaycodeServiceInterface {
	return services.NewPaycodeService(txns, log)
}
