package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	PollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewardwatch_polls_total",
		Help: "Filter polls issued to the node",
	})

	PollErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewardwatch_poll_errors_total",
		Help: "Filter polls that failed after retries",
	})

	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rewardwatch_poll_duration_seconds",
		Help:    "Time spent fetching and handling one poll",
		Buckets: prometheus.DefBuckets,
	})

	EntriesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewardwatch_entries_received_total",
		Help: "Log entries returned by the filter",
	})

	EventsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewardwatch_events_handled_total",
			Help: "Events passed to the handler chain without error",
		},
		[]string{"event"},
	)

	HandlerErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewardwatch_handler_errors_total",
		Help: "Events whose handler returned an error",
	})

	LastBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rewardwatch_last_event_block",
		Help: "Block number of the most recently handled event",
	})
)

// Listen binds addr so a bad address fails before polling starts.
func Listen(addr string) (net.Listener, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics %s: %w", addr, err)
	}
	return listener, nil
}

// Serve exposes /metrics on listener until ctx is done.
func Serve(ctx context.Context, listener net.Listener, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", zap.String("addr", listener.Addr().String()))
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
