package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"positionSwap/internal/api"
	"positionSwap/internal/config"
	"positionSwap/internal/engine"
)

func runServe(cmd *cobra.Command, _ []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	w, store, err := buildWorld(ctx, cfg, engine.NewMetrics(reg), logger)
	if err != nil {
		return err
	}
	defer closeStore(store)

	server := api.NewServer(w, reg, reg, logger)
	if err := server.ListenAndServe(ctx, cfg.Listen); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	if store != nil {
		// Context is already cancelled at this point.
		if err := saveSnapshots(context.Background(), w, store); err != nil {
			logger.Warn("store pool snapshots failed", zap.Error(err))
		}
	}
	logger.Info("server stopped")
	return nil
}
