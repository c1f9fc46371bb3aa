package storage

import (
	"context"

	"rewardwatch/internal/model"
)

// Sink persists or forwards events. Every Sink is a handler.Handler.
type Sink interface {
	Handle(ctx context.Context, event model.EventRecord) error
	Close() error
}
