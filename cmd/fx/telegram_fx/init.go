package telegram_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"paygate/internal/config"
	"paygate/internal/infra"
	"paygate/internal/services"
)

var Module = fx.Provide(provideChannelClient)

func provideChannelClient(cfg config.Config, log *zap.Logger) services.ChannelClient {
	return infra.NewTelegramClient(cfg.TelegramAPIBase, log)
}
