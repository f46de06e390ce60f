package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"positionSwap/internal/config"
	"positionSwap/internal/world"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Script == "" {
		return fmt.Errorf("script path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, store, err := buildWorld(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer closeStore(store)

	logger.Info("replay start", zap.String("script", cfg.Script))

	summary, err := world.NewReplayer(w, logger).Run(ctx, cfg.Script)
	if err != nil {
		return err
	}

	if store != nil {
		if err := saveSnapshots(ctx, w, store); err != nil {
			return fmt.Errorf("store pool snapshots: %w", err)
		}
	}

	logger.Info("replay complete",
		zap.Int("ops", summary.Ops),
		zap.Int("committed", summary.Committed),
		zap.Int("expected_failures", summary.Expected),
		zap.Int("pools", len(summary.Pools)),
	)
	return nil
}
