package poller

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	watched = common.HexToAddress("0x1111111111111111111111111111111111111111")
	topic   = common.HexToHash("0xaa")
)

// fakeNode implements Backend over an in-memory chain.
type fakeNode struct {
	head        uint64
	logs        map[uint64][]types.Log
	ranges      []BlockRange
	filterErr   error
	query       ethereum.FilterQuery
	pending     []types.Log
	uninstalled []string
}

func (n *fakeNode) LatestBlockNumber(context.Context) (uint64, error) {
	return n.head, nil
}

func (n *fakeNode) FilterLogs(_ context.Context, from, to uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	if n.filterErr != nil {
		return nil, n.filterErr
	}
	n.ranges = append(n.ranges, BlockRange{From: from, To: to})
	var out []types.Log
	for b := from; b <= to; b++ {
		out = append(out, n.logs[b]...)
	}
	return out, nil
}

func (n *fakeNode) NewLogFilter(_ context.Context, q ethereum.FilterQuery) (string, error) {
	n.query = q
	return "0x7", nil
}

func (n *fakeNode) LogFilterChanges(_ context.Context, id string) ([]types.Log, error) {
	out := n.pending
	n.pending = nil
	return out, nil
}

func (n *fakeNode) UninstallLogFilter(_ context.Context, id string) (bool, error) {
	n.uninstalled = append(n.uninstalled, id)
	return true, nil
}

func (n *fakeNode) mine(block uint64, indexes ...uint) {
	if n.logs == nil {
		n.logs = make(map[uint64][]types.Log)
	}
	n.logs[block] = append(n.logs[block], logsAt(block, indexes...)...)
	if block > n.head {
		n.head = block
	}
}

func blocksOf(logs []types.Log) []uint64 {
	out := make([]uint64, 0, len(logs))
	for _, l := range logs {
		out = append(out, l.BlockNumber)
	}
	return out
}

func TestRangeFilterStartsAfterLatest(t *testing.T) {
	node := &fakeNode{}
	node.mine(100, 0, 1)

	f, err := NewRangeFilter(context.Background(), node, []common.Address{watched}, []common.Hash{topic}, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(101), f.Next())

	logs, err := f.NewEntries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, logs)
	assert.Empty(t, node.ranges)
}

func TestRangeFilterDoesNotRepeatEntries(t *testing.T) {
	ctx := context.Background()
	node := &fakeNode{head: 100}

	f, err := NewRangeFilter(ctx, node, []common.Address{watched}, nil, 2, nil)
	require.NoError(t, err)

	node.mine(101, 0)
	node.mine(103, 0, 1)
	node.mine(105, 3)

	first, err := f.NewEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{101, 103, 103, 105}, blocksOf(first))
	assert.Equal(t, []BlockRange{{From: 101, To: 102}, {From: 103, To: 104}, {From: 105, To: 105}}, node.ranges)
	assert.Equal(t, uint64(106), f.Next())

	second, err := f.NewEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, second)

	node.mine(106, 0)
	third, err := f.NewEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{106}, blocksOf(third))
}

func TestRangeFilterKeepsCursorOnError(t *testing.T) {
	ctx := context.Background()
	node := &fakeNode{head: 10}
	f, err := NewRangeFilter(ctx, node, nil, nil, 5, nil)
	require.NoError(t, err)

	node.mine(11, 0)
	node.filterErr = errors.New("limit exceeded")
	_, err = f.NewEntries(ctx)
	require.Error(t, err)
	assert.Equal(t, uint64(11), f.Next())

	node.filterErr = nil
	logs, err := f.NewEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{11}, blocksOf(logs))
}

func TestRangeFilterRejectsZeroBatch(t *testing.T) {
	_, err := NewRangeFilter(context.Background(), &fakeNode{}, nil, nil, 0, nil)
	assert.ErrorContains(t, err, "batch size")
}

func TestServerFilterLifecycle(t *testing.T) {
	ctx := context.Background()
	node := &fakeNode{}

	f, err := NewServerFilter(ctx, node, []common.Address{watched}, []common.Hash{topic}, nil)
	require.NoError(t, err)
	assert.Equal(t, "0x7", f.ID())
	assert.Nil(t, node.query.FromBlock)
	assert.Equal(t, [][]common.Hash{{topic}}, node.query.Topics)
	assert.Equal(t, []common.Address{watched}, node.query.Addresses)

	node.pending = logsAt(50, 0, 1)
	first, err := f.NewEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := f.NewEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, second)

	require.NoError(t, f.Close(ctx))
	require.NoError(t, f.Close(ctx))
	assert.Equal(t, []string{"0x7"}, node.uninstalled)

	_, err = f.NewEntries(ctx)
	assert.ErrorContains(t, err, "closed")
}

func TestNewFilterModes(t *testing.T) {
	ctx := context.Background()
	node := &fakeNode{head: 3}

	f, err := NewFilter(ctx, node, FilterConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &ServerFilter{}, f)

	f, err = NewFilter(ctx, node, FilterConfig{Mode: FilterModeRange, BatchSize: 100}, nil)
	require.NoError(t, err)
	assert.IsType(t, &RangeFilter{}, f)

	_, err = NewFilter(ctx, node, FilterConfig{Mode: "websocket"}, nil)
	assert.ErrorContains(t, err, "unknown filter mode")
}
