package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"rewardwatch/internal/model"
)

func TestChainRunsInOrder(t *testing.T) {
	var calls []string
	record := func(name string) Handler {
		return HandlerFunc(func(_ context.Context, event model.EventRecord) error {
			calls = append(calls, name+":"+event.TxHash)
			return nil
		})
	}

	chain := Chain{record("a"), record("b")}
	require.NoError(t, chain.Handle(context.Background(), model.EventRecord{TxHash: "0x1"}))
	assert.Equal(t, []string{"a:0x1", "b:0x1"}, calls)
}

func TestChainStopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	reached := false

	chain := Chain{
		HandlerFunc(func(context.Context, model.EventRecord) error { return boom }),
		HandlerFunc(func(context.Context, model.EventRecord) error {
			reached = true
			return nil
		}),
	}

	err := chain.Handle(context.Background(), model.EventRecord{})
	require.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "handler 0")
	assert.False(t, reached)
}

func TestLogHandler(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := NewLogHandler(zap.New(core))

	err := h.Handle(context.Background(), model.EventRecord{
		Event:       "TransferWithReward",
		BlockNumber: 42,
		Args:        map[string]interface{}{"reward": "10"},
	})
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "TransferWithReward", fields["event"])
	assert.Equal(t, uint64(42), fields["block_number"])
}
