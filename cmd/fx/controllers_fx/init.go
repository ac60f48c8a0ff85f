package controllers_fx

import (
	"go.uber.org/fx"
	"paygate/internal/api/controllers"
)

var Module = fx.Options(
	fx.Provide(controllers.NewTransactionController),
	fx.Provide(controllers.NewPaycodeController),
	fx.Provide(controllers.NewPlanController),
	fx.Provide(controllers.NewNotificationController))
