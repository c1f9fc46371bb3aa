package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"

	"rewardwatch/internal/model"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "rewardwatch:events"

// Options configures a Publisher.
type Options struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Publisher publishes events on a Redis channel and keeps the latest event
// per contract under <channel>:last:<address>.
type Publisher struct {
	client  *redis.Client
	channel string
}

func NewPublisher(ctx context.Context, opts Options) (*Publisher, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	channel := opts.Channel
	if channel == "" {
		channel = DefaultChannel
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return &Publisher{client: rdb, channel: channel}, nil
}

// Handle publishes a single event.
func (p *Publisher) Handle(ctx context.Context, event model.EventRecord) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event record: %w", err)
	}

	pipe := p.client.TxPipeline()
	pipe.Publish(ctx, p.channel, payload)
	pipe.Set(ctx, lastEventKey(p.channel, event.Address), payload, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}

func lastEventKey(channel, address string) string {
	return fmt.Sprintf("%s:last:%s", channel, strings.ToLower(address))
}
