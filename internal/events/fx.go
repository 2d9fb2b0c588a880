package events

import (
	"context"

	"github.com/smallbiznis/clarity/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(NewPublisher),
)

func NewPublisher(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Publisher {
	log = log.Named("events")
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka brokers not configured, accepted events stay in the database only")
		return Nop{}
	}

	producer := NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return producer.Close()
		},
	})
	log.Info("kafka publisher ready",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.EventsTopic),
	)
	return producer
}
