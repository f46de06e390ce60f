package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "positionswap",
		Short:        "Token/native AMM with NFT liquidity positions",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Execute a JSONL operation script and write the emitted event logs",
		RunE:  runReplay,
	}
	engineFlags(replayCmd)
	replayCmd.Flags().String("script", "", "operation script JSONL")
	replayCmd.Flags().String("events", "./data/events.jsonl", "output event log JSONL")
	replayCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for events and pool snapshots")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(replayCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine over HTTP",
		RunE:  runServe,
	}
	engineFlags(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().String("events", "./data/events.jsonl", "output event log JSONL")
	serveCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for events")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(serveCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a swap against given reserves",
		RunE:  runQuote,
	}
	quoteCmd.Flags().String("token-reserve", "", "token reserve (base units)")
	quoteCmd.Flags().String("native-reserve", "", "native reserve (base units)")
	quoteCmd.Flags().String("direction", "buy_token", "buy_token or sell_token")
	quoteCmd.Flags().String("kind", "exact_input", "exact_input or exact_output")
	quoteCmd.Flags().String("amount", "", "fixed side of the trade (base units)")
	root.AddCommand(quoteCmd)

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Copy pool event logs of a deployed engine from an RPC node",
		RunE:  runIndex,
	}
	indexCmd.Flags().String("rpc", "", "RPC URL")
	indexCmd.Flags().String("pool", "", "pool contract address (defaults to the engine address)")
	indexCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	indexCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	indexCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	indexCmd.Flags().String("out", "./data/events.jsonl", "output event log JSONL")
	indexCmd.Flags().String("state-file", "", "local checkpoint file (defaults to Postgres when pg-dsn is set)")
	indexCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for events and checkpoints")
	indexCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	indexCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	indexCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(indexCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode event logs into typed events",
		RunE:  runDecode,
	}
	decodeCmd.Flags().String("rpc", "", "optional RPC URL for token metadata")
	decodeCmd.Flags().String("in", "./data/events.jsonl", "input event log JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(decodeCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate typed events into window metrics",
		RunE:  runAggregate,
	}
	aggregateCmd.Flags().String("rpc", "", "optional RPC URL for token metadata")
	aggregateCmd.Flags().String("in", "./data/typed_events.jsonl", "input typed events JSONL")
	aggregateCmd.Flags().String("window", "1h", "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(aggregateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func engineFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64("chain-id", 31337, "chain id stamped on event logs")
	cmd.Flags().String("engine", "0x00000000000000000000000000000000000005a7", "engine custody address")
	cmd.Flags().String("deposit-policy", "open", "deposit ratio policy (open, strict)")
	cmd.Flags().Uint64("max-deviation-bps", 100, "maximum deposit ratio deviation under the strict policy")
	cmd.Flags().StringSlice("token", nil, "tokens to deploy at start (SYMBOL[:DECIMALS][@ADDRESS])")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
