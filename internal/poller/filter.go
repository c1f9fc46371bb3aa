package poller

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Filter modes accepted by NewFilter.
const (
	FilterModeServer = "server"
	FilterModeRange  = "range"
)

// LogFilter yields the logs matched since the previous call.
type LogFilter interface {
	NewEntries(ctx context.Context) ([]types.Log, error)
	Close(ctx context.Context) error
}

// FilterBackend is the node API behind a ServerFilter.
type FilterBackend interface {
	NewLogFilter(ctx context.Context, query ethereum.FilterQuery) (string, error)
	LogFilterChanges(ctx context.Context, id string) ([]types.Log, error)
	UninstallLogFilter(ctx context.Context, id string) (bool, error)
}

// LogBackend is the node API behind a RangeFilter.
type LogBackend interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// Backend satisfies both filter kinds; *chain.Client implements it.
type Backend interface {
	FilterBackend
	LogBackend
}

// FilterConfig describes what a filter selects.
type FilterConfig struct {
	Mode      string
	Addresses []common.Address
	Topic0    []common.Hash
	BatchSize uint64
}

// NewFilter creates a filter starting at the latest block.
func NewFilter(ctx context.Context, backend Backend, cfg FilterConfig, logger *zap.Logger) (LogFilter, error) {
	switch cfg.Mode {
	case "", FilterModeServer:
		return NewServerFilter(ctx, backend, cfg.Addresses, cfg.Topic0, logger)
	case FilterModeRange:
		return NewRangeFilter(ctx, backend, cfg.Addresses, cfg.Topic0, cfg.BatchSize, logger)
	default:
		return nil, fmt.Errorf("unknown filter mode: %s", cfg.Mode)
	}
}

// ServerFilter is a node-side filter; the node keeps the cursor.
type ServerFilter struct {
	backend FilterBackend
	id      string
	logger  *zap.Logger
}

// NewServerFilter installs an eth_newFilter filter from "latest".
func NewServerFilter(
	ctx context.Context,
	backend FilterBackend,
	addresses []common.Address,
	topic0 []common.Hash,
	logger *zap.Logger,
) (*ServerFilter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	query := ethereum.FilterQuery{Addresses: addresses}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}

	id, err := backend.NewLogFilter(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("install filter: %w", err)
	}
	logger.Info("filter installed", zap.String("mode", FilterModeServer), zap.String("filter_id", id))

	return &ServerFilter{backend: backend, id: id, logger: logger}, nil
}

// ID returns the node's filter id.
func (f *ServerFilter) ID() string {
	return f.id
}

func (f *ServerFilter) NewEntries(ctx context.Context) ([]types.Log, error) {
	if f.id == "" {
		return nil, fmt.Errorf("filter is closed")
	}
	return f.backend.LogFilterChanges(ctx, f.id)
}

func (f *ServerFilter) Close(ctx context.Context) error {
	if f.id == "" {
		return nil
	}
	id := f.id
	f.id = ""

	ok, err := f.backend.UninstallLogFilter(ctx, id)
	if err != nil {
		return fmt.Errorf("uninstall filter %s: %w", id, err)
	}
	if !ok {
		f.logger.Warn("node did not know filter", zap.String("filter_id", id))
	}
	return nil
}

// RangeFilter tracks the cursor client-side and reads eth_getLogs in batches.
type RangeFilter struct {
	backend   LogBackend
	addresses []common.Address
	topic0    []common.Hash
	batchSize uint64
	next      uint64
	logger    *zap.Logger
}

// NewRangeFilter starts the cursor right after the current head.
func NewRangeFilter(
	ctx context.Context,
	backend LogBackend,
	addresses []common.Address,
	topic0 []common.Hash,
	batchSize uint64,
	logger *zap.Logger,
) (*RangeFilter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}

	latest, err := backend.LatestBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get latest block: %w", err)
	}
	logger.Info("filter installed", zap.String("mode", FilterModeRange), zap.Uint64("latest", latest))

	return &RangeFilter{
		backend:   backend,
		addresses: addresses,
		topic0:    topic0,
		batchSize: batchSize,
		next:      latest + 1,
		logger:    logger,
	}, nil
}

// Next returns the first block the following call will read.
func (f *RangeFilter) Next() uint64 {
	return f.next
}

func (f *RangeFilter) NewEntries(ctx context.Context) ([]types.Log, error) {
	head, err := f.backend.LatestBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get latest block: %w", err)
	}
	if head < f.next {
		return nil, nil
	}

	ranges, err := SplitRange(f.next, head, f.batchSize)
	if err != nil {
		return nil, err
	}

	var out []types.Log
	for _, blockRange := range ranges {
		f.logger.Debug("fetch logs",
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
			zap.Uint64("blocks", blockRange.Blocks()),
		)

		logs, err := f.backend.FilterLogs(ctx, blockRange.From, blockRange.To, f.addresses, f.topic0)
		if err != nil {
			return nil, fmt.Errorf("filter logs %d-%d: %w", blockRange.From, blockRange.To, err)
		}
		out = append(out, logs...)
	}

	f.next = head + 1
	return out, nil
}

func (f *RangeFilter) Close(context.Context) error {
	return nil
}
