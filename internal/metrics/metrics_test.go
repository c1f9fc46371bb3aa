package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestServeExposesMetricsUntilCanceled(t *testing.T) {
	listener, err := Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, listener, zap.NewNop())
	}()

	PollsTotal.Inc()
	resp, err := http.Get("http://" + listener.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "rewardwatch_polls_total")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}

func TestListenRejectsBusyAddress(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	_, err = Listen(busy.Addr().String())
	assert.ErrorContains(t, err, "listen metrics")
}

func TestEventsHandledByEvent(t *testing.T) {
	before := testutil.ToFloat64(EventsHandled.WithLabelValues("SnapshotCreated"))
	EventsHandled.WithLabelValues("SnapshotCreated").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(EventsHandled.WithLabelValues("SnapshotCreated")))
}
