package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ccoveille/go-safecast"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rewardwatch/internal/model"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS contract_events (
	chain_id      BIGINT      NOT NULL,
	tx_hash       TEXT        NOT NULL,
	log_index     BIGINT      NOT NULL,
	event_name    TEXT        NOT NULL,
	address       TEXT        NOT NULL,
	block_number  BIGINT      NOT NULL,
	block_hash    TEXT        NOT NULL,
	tx_index      BIGINT      NOT NULL,
	removed       BOOLEAN     NOT NULL DEFAULT false,
	args          JSONB       NOT NULL,
	ingested_at   TIMESTAMPTZ NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, tx_hash, log_index)
);
CREATE INDEX IF NOT EXISTS contract_events_block_idx ON contract_events (chain_id, block_number);
`

const insertEventSQL = `
	INSERT INTO contract_events (
		chain_id, tx_hash, log_index, event_name, address, block_number, block_hash,
		tx_index, removed, args, ingested_at, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
	ON CONFLICT (chain_id, tx_hash, log_index)
	DO UPDATE SET
		removed = EXCLUDED.removed,
		args = EXCLUDED.args,
		ingested_at = EXCLUDED.ingested_at,
		updated_at = now()
`

// Store writes contract events to Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// EnsureSchema creates the events table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

// Handle upserts a single event.
func (s *Store) Handle(ctx context.Context, event model.EventRecord) error {
	return s.UpsertEvents(ctx, []model.EventRecord{event})
}

// UpsertEvents inserts or updates events keyed by chain, tx and log index.
func (s *Store) UpsertEvents(ctx context.Context, events []model.EventRecord) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, event := range events {
		args, err := eventRow(event)
		if err != nil {
			return err
		}
		batch.Queue(insertEventSQL, args...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func eventRow(event model.EventRecord) ([]interface{}, error) {
	chainID, err := safecast.ToInt64(event.ChainID)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	logIndex, err := safecast.ToInt64(event.LogIndex)
	if err != nil {
		return nil, fmt.Errorf("log index: %w", err)
	}
	blockNumber, err := safecast.ToInt64(event.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("block number: %w", err)
	}
	txIndex, err := safecast.ToInt64(event.TxIndex)
	if err != nil {
		return nil, fmt.Errorf("tx index: %w", err)
	}

	ingestedAt := time.Now().UTC()
	if event.IngestedAt != "" {
		parsed, err := time.Parse(time.RFC3339Nano, event.IngestedAt)
		if err != nil {
			return nil, fmt.Errorf("ingested at: %w", err)
		}
		ingestedAt = parsed
	}

	args := event.Args
	if args == nil {
		args = map[string]interface{}{}
	}

	return []interface{}{
		chainID,
		event.TxHash,
		logIndex,
		event.Event,
		event.Address,
		blockNumber,
		event.BlockHash,
		txIndex,
		event.Removed,
		args,
		ingestedAt,
	}, nil
}
