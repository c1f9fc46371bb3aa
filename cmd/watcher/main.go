package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rewardwatch/internal/chain"
	"rewardwatch/internal/config"
	"rewardwatch/internal/contract"
	"rewardwatch/internal/metrics"
	"rewardwatch/internal/poller"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "watcher",
		Short:        "Contract event watcher",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the node for new contract events",
		RunE:  runWatch,
	}

	watchCmd.Flags().String("rpc", "", "node RPC URL")
	watchCmd.Flags().StringSlice("contract", nil, "contract addresses (comma-separated)")
	watchCmd.Flags().String("abi", "", "contract ABI JSON file (default: built-in GemMint events)")
	watchCmd.Flags().String("event", contract.DefaultEvent, "event name to watch")
	watchCmd.Flags().Duration("interval", poller.DefaultInterval, "pause between polls")
	watchCmd.Flags().String("filter-mode", poller.FilterModeServer, "filter kind (server: eth_newFilter, range: eth_getLogs cursor)")
	watchCmd.Flags().Uint64("batch-size", 2000, "blocks per eth_getLogs call in range mode")
	watchCmd.Flags().Int("max-retries", 0, "retries for a failed poll before giving up")
	watchCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	watchCmd.Flags().String("out", "", "append events to this JSONL file")
	watchCmd.Flags().String("pg-dsn", "", "write events to this Postgres database")
	watchCmd.Flags().String("redis-addr", "", "publish events to this Redis server")
	watchCmd.Flags().String("redis-password", "", "Redis password")
	watchCmd.Flags().Int("redis-db", 0, "Redis database")
	watchCmd.Flags().String("redis-channel", "rewardwatch:events", "Redis pub/sub channel")
	watchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	watchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	watchCmd.Flags().String("log-file", "", "write logs to this file with rotation instead of stderr")

	root.AddCommand(watchCmd)

	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "List the events declared by the contract ABI",
		RunE:  runEvents,
	}

	eventsCmd.Flags().String("abi", "", "contract ABI JSON file (default: built-in GemMint events)")

	root.AddCommand(eventsCmd)

	return root
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}

	addresses, err := chain.ParseAddresses(cfg.Contracts)
	if err != nil {
		return err
	}

	contractABI, err := contract.LoadABI(cfg.ABIPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}

	decoder, err := contract.NewEventDecoder(contract.DecoderConfig{
		ABI:     contractABI,
		Event:   cfg.Event,
		ChainID: chainID.Uint64(),
	})
	if err != nil {
		return err
	}

	handlers, closeSinks, err := buildHandlers(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	if cfg.MetricsAddr != "" {
		listener, err := metrics.Listen(cfg.MetricsAddr)
		if err != nil {
			return err
		}
		go func() {
			if err := metrics.Serve(ctx, listener, logger); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	filter, err := poller.NewFilter(ctx, chainClient, poller.FilterConfig{
		Mode:      cfg.FilterMode,
		Addresses: addresses,
		Topic0:    []common.Hash{decoder.Topic0()},
		BatchSize: cfg.BatchSize,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := filter.Close(closeCtx); err != nil {
			logger.Warn("close filter", zap.Error(err))
		}
	}()

	p := poller.NewPoller(poller.Config{
		Interval: cfg.Interval,
		Retry: poller.RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			Backoff:    cfg.RetryBackoff,
		},
	}, filter, decoder, handlers, logger)

	logger.Info("watcher start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("chain_id", chainID.Uint64()),
		zap.Int("contracts", len(addresses)),
		zap.String("event", decoder.EventName()),
		zap.String("topic0", decoder.Topic0().Hex()),
		zap.String("filter_mode", cfg.FilterMode),
		zap.Duration("interval", cfg.Interval),
		zap.Int("handlers", len(handlers)),
	)

	err = p.Run(ctx)
	if ctx.Err() != nil {
		logger.Info("watcher stopped", zap.NamedError("cause", err))
		return nil
	}
	return err
}

func runEvents(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	contractABI, err := contract.LoadABI(cfg.ABIPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, name := range contract.EventNames(contractABI) {
		event := contractABI.Events[name]
		fmt.Fprintf(out, "%s\t%s\t%s\n", event.Name, event.ID.Hex(), event.Sig)
	}
	return nil
}
