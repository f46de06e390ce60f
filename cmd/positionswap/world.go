package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionSwap/internal/config"
	"positionSwap/internal/dex"
	"positionSwap/internal/engine"
	"positionSwap/internal/ledger"
	"positionSwap/internal/model"
	"positionSwap/internal/storage"
	"positionSwap/internal/storage/postgres"
	"positionSwap/internal/world"
)

var sinkRetry = storage.RetryPolicy{MaxRetries: 3, Backoff: 200 * time.Millisecond}

// buildWorld deploys the configured tokens and attaches the event log sinks.
// store is nil unless a Postgres DSN is configured; the caller closes it.
func buildWorld(ctx context.Context, cfg config.Config, metrics *engine.Metrics, logger *zap.Logger) (*world.World, *postgres.Store, error) {
	if !common.IsHexAddress(cfg.Engine) {
		return nil, nil, fmt.Errorf("invalid engine address: %q", cfg.Engine)
	}
	policy, err := ledger.ParseDepositPolicy(cfg.DepositPolicy)
	if err != nil {
		return nil, nil, err
	}
	engineAddr := common.HexToAddress(cfg.Engine)

	w, err := world.New(engine.Config{
		Address: engineAddr,
		DepositRule: ledger.DepositRule{
			Policy:          policy,
			MaxDeviationBps: cfg.MaxDeviationBps,
		},
	}, metrics, logger)
	if err != nil {
		return nil, nil, err
	}

	encoder := dex.NewEncoder(cfg.ChainID, engineAddr)
	if cfg.Events != "" {
		w.Engine.AddSink(storage.NewLogSink(encoder, storage.NewJsonlStorage(cfg.Events), logger).WithRetry(sinkRetry))
	}

	var store *postgres.Store
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		w.Engine.AddSink(storage.NewLogSink(encoder, store, logger).WithRetry(sinkRetry))
	}

	pools := make([]model.PoolRecord, 0, len(cfg.Tokens))
	for _, spec := range cfg.Tokens {
		meta, err := world.ParseTokenSpec(spec)
		if err != nil {
			closeStore(store)
			return nil, nil, err
		}
		tok, err := w.DeployToken(meta)
		if err != nil {
			closeStore(store)
			return nil, nil, fmt.Errorf("deploy %s: %w", spec, err)
		}
		pools = append(pools, model.PoolRecord{
			ChainID:  cfg.ChainID,
			Token:    tok.Address().Hex(),
			Symbol:   tok.Meta().Symbol,
			Decimals: tok.Meta().Decimals,
		})
	}
	if store != nil && len(pools) > 0 {
		if err := store.UpsertPools(ctx, pools); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("store pools: %w", err)
		}
	}

	logger.Info("engine ready",
		zap.String("engine", engineAddr.Hex()),
		zap.Uint64("chain_id", cfg.ChainID),
		zap.String("deposit_policy", string(policy)),
		zap.Int("tokens", len(cfg.Tokens)),
		zap.String("events", cfg.Events),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)
	return w, store, nil
}

// saveSnapshots persists the accounting state of every pool.
func saveSnapshots(ctx context.Context, w *world.World, store *postgres.Store) error {
	pools := w.Engine.Pools()
	snapshots := make([]model.PoolSnapshot, 0, len(pools))
	for _, pool := range pools {
		snap, err := w.Engine.Snapshot(pool)
		if err != nil {
			return err
		}
		snapshots = append(snapshots, snap)
	}
	return store.UpsertPoolSnapshots(ctx, snapshots)
}

func closeStore(store *postgres.Store) {
	if store != nil {
		store.Close()
	}
}
