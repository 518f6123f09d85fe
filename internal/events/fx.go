package events

import (
	"context"

	"github.com/smallbiznis/tixsync/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(NewPublisher),
)

// NewPublisher selects the AMQP publisher when RABBITMQ_URL is set.
func NewPublisher(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Publisher {
	log = log.Named("events")
	if cfg.RabbitMQURL == "" {
		log.Info("rabbitmq not configured, report events disabled")
		return Noop{}
	}

	pub := NewAMQPPublisher(cfg.RabbitMQURL, log)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return pub.Close() },
	})
	return pub
}
