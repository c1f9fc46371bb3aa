package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"rewardwatch/internal/config"
	"rewardwatch/internal/handler"
	"rewardwatch/internal/storage"
	"rewardwatch/internal/storage/postgres"
	"rewardwatch/internal/storage/pubsub"
)

// buildHandlers assembles the configured sinks. With no sink configured
// events are only logged.
func buildHandlers(ctx context.Context, cfg config.Config, logger *zap.Logger) (handler.Chain, func(), error) {
	var sinks []storage.Sink
	closeAll := func() {
		for _, sink := range sinks {
			if err := sink.Close(); err != nil {
				logger.Warn("close sink", zap.Error(err))
			}
		}
	}

	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Out))
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		sinks = append(sinks, store)
		if err := store.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	if cfg.RedisAddr != "" {
		publisher, err := pubsub.NewPublisher(ctx, pubsub.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.RedisChannel,
		})
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, publisher)
	}

	if len(sinks) == 0 {
		return handler.Chain{handler.NewLogHandler(logger)}, closeAll, nil
	}

	chain := make(handler.Chain, 0, len(sinks))
	for _, sink := range sinks {
		chain = append(chain, sink)
	}
	return chain, closeAll, nil
}
