package config_fx

import (
	"time"

	"go.uber.org/fx"
	"paygate/internal/config"
	"paygate/pkg/utils"
)

var Module = fx.Provide(
	config.Load, provideLocation)

func provideLocation(cfg config.Config) *time.Location {
	return utils.LoadLocation(cfg.Timezone)
}
