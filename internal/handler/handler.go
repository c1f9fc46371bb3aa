package handler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"rewardwatch/internal/model"
)

// Handler processes one decoded event.
type Handler interface {
	Handle(ctx context.Context, event model.EventRecord) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event model.EventRecord) error

func (f HandlerFunc) Handle(ctx context.Context, event model.EventRecord) error {
	return f(ctx, event)
}

// Chain runs handlers in order and stops at the first error.
type Chain []Handler

func (c Chain) Handle(ctx context.Context, event model.EventRecord) error {
	for i, h := range c {
		if err := h.Handle(ctx, event); err != nil {
			return fmt.Errorf("handler %d: %w", i, err)
		}
	}
	return nil
}

// LogHandler writes each event to the logger.
type LogHandler struct {
	logger *zap.Logger
}

func NewLogHandler(logger *zap.Logger) *LogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogHandler{logger: logger}
}

func (h *LogHandler) Handle(_ context.Context, event model.EventRecord) error {
	h.logger.Info("event",
		zap.String("event", event.Event),
		zap.String("address", event.Address),
		zap.Uint64("block_number", event.BlockNumber),
		zap.String("tx_hash", event.TxHash),
		zap.Uint64("log_index", event.LogIndex),
		zap.Bool("removed", event.Removed),
		zap.Any("args", event.Args),
	)
	return nil
}
