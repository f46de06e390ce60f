package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"positionSwap/internal/aggregate"
	"positionSwap/internal/chain"
	"positionSwap/internal/config"
	"positionSwap/internal/indexer"
	"positionSwap/internal/model"
	"positionSwap/internal/storage"
	"positionSwap/internal/storage/postgres"
)

func runIndex(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadIndex(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.Out == "" && cfg.PGDSN == "" {
		return fmt.Errorf("an output path or pg dsn is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	var (
		sinks   multiStorage
		backend aggregate.StateBackend
	)
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Out))
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		sinks = append(sinks, store)
		backend = store
	}
	if cfg.StateFile != "" {
		backend = &aggregate.FileStateBackend{Path: cfg.StateFile}
	}

	runCfg := indexer.RunConfig{
		Pool:      cfg.Pool,
		FromBlock: cfg.FromBlock,
		ToBlock:   cfg.ToBlock,
		BatchSize: cfg.BatchSize,
		Retry:     storage.RetryPolicy{MaxRetries: cfg.MaxRetries, Backoff: cfg.RetryBackoff},
	}
	if backend != nil {
		runCfg.Checkpoint = &aggregate.NamedState{Backend: backend, Name: "indexer:" + cfg.Pool.Hex()}
	}

	logger.Info("index start",
		zap.String("pool", cfg.Pool.Hex()),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Bool("checkpoint", runCfg.Checkpoint != nil),
	)

	return indexer.NewRunner(runCfg, chainClient, sinks, logger).Run(ctx)
}

// multiStorage writes every batch to each backend in order.
type multiStorage []storage.Storage

func (m multiStorage) PutLogBatch(ctx context.Context, logs []model.LogRecord) error {
	for _, s := range m {
		if err := s.PutLogBatch(ctx, logs); err != nil {
			return err
		}
	}
	return nil
}
