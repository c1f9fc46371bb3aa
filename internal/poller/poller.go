package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"rewardwatch/internal/handler"
	"rewardwatch/internal/metrics"
	"rewardwatch/internal/model"
)

// DefaultInterval is the pause between two polls.
const DefaultInterval = 2 * time.Second

// Decoder turns a raw log into an EventRecord.
type Decoder interface {
	Decode(log types.Log, ingestedAt time.Time) (model.EventRecord, error)
}

// Config holds runtime settings for the poller.
type Config struct {
	Interval time.Duration
	Retry    RetryPolicy
}

// Poller fetches new filter entries and hands each one to the handler.
type Poller struct {
	cfg     Config
	filter  LogFilter
	decoder Decoder
	handler handler.Handler
	logger  *zap.Logger
}

// NewPoller builds a Poller with its dependencies.
func NewPoller(cfg Config, filter LogFilter, decoder Decoder, h handler.Handler, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Poller{
		cfg:     cfg,
		filter:  filter,
		decoder: decoder,
		handler: h,
		logger:  logger,
	}
}

// Run polls until an error occurs or ctx is cancelled. Errors from the
// filter, the decoder or the handler end the loop.
func (p *Poller) Run(ctx context.Context) error {
	if p.filter == nil {
		return fmt.Errorf("filter is nil")
	}
	if p.decoder == nil {
		return fmt.Errorf("decoder is nil")
	}
	if p.handler == nil {
		return fmt.Errorf("handler is nil")
	}

	for {
		if _, err := p.Poll(ctx); err != nil {
			return err
		}

		timer := time.NewTimer(p.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Poll performs one fetch and dispatches the entries in the order returned.
// It returns the number of entries handled.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(metrics.PollDuration)
	defer timer.ObserveDuration()
	metrics.PollsTotal.Inc()

	entries, err := p.fetch(ctx)
	if err != nil {
		metrics.PollErrors.Inc()
		return 0, fmt.Errorf("poll filter: %w", err)
	}
	metrics.EntriesReceived.Add(float64(len(entries)))

	ingestedAt := time.Now().UTC()
	for i, log := range entries {
		record, err := p.decoder.Decode(log, ingestedAt)
		if err != nil {
			return i, fmt.Errorf("decode log %s:%d: %w", log.TxHash.Hex(), log.Index, err)
		}
		if err := p.handler.Handle(ctx, record); err != nil {
			metrics.HandlerErrors.Inc()
			return i, fmt.Errorf("handle event %s:%d: %w", record.TxHash, record.LogIndex, err)
		}
		metrics.EventsHandled.WithLabelValues(record.Event).Inc()
		metrics.LastBlock.Set(float64(record.BlockNumber))
	}

	if len(entries) > 0 {
		p.logger.Info("poll complete",
			zap.Int("events", len(entries)),
			zap.Uint64("last_block", entries[len(entries)-1].BlockNumber),
		)
	} else {
		p.logger.Debug("poll complete", zap.Int("events", 0))
	}
	return len(entries), nil
}

func (p *Poller) fetch(ctx context.Context) ([]types.Log, error) {
	var entries []types.Log
	err := withRetry(ctx, p.cfg.Retry, func(ctx context.Context) error {
		var err error
		entries, err = p.filter.NewEntries(ctx)
		if err != nil && p.cfg.Retry.MaxRetries > 0 {
			p.logger.Warn("filter poll failed", zap.Error(err))
		}
		return err
	})
	return entries, err
}
