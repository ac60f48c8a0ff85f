package transaction_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"paygate/internal/repositories"
	"paygate/internal/services"
)

var Module = fx.Provide(
	provideEventBus, providePublisher, provideTransactionService, services.NewPlanService)

func provideEventBus(log *zap.Logger) *services.EventBus {
	return services.NewEventBus(log)
}

func providePublisher(bus *services.EventBus) services.EventPublisher {
	return bus
}

func provideTransactionService(
	txns repositories.TransactionRepository,
	plans repositories.IPlanRepository,
	events services.EventPublisher,
	log *zap.Logger,
) services.TransactionServiceInterface {
	return services.NewTransactionService(txns, plans, events, log)
}
