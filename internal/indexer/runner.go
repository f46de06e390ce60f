package indexer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"positionSwap/internal/dex"
	"positionSwap/internal/model"
	"positionSwap/internal/storage"
)

// LogSource is the chain access the runner needs. chain.Client implements it.
type LogSource interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, pool common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// Checkpoint persists the last fully stored block.
type Checkpoint interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, block uint64) error
}

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	Pool       common.Address
	FromBlock  uint64
	ToBlock    uint64
	BatchSize  uint64
	Retry      storage.RetryPolicy
	Checkpoint Checkpoint
}

// Runner copies the pool events of a deployed engine into storage, in the
// same log format the local engine writes.
type Runner struct {
	cfg     RunConfig
	source  LogSource
	storage storage.Storage
	logger  *zap.Logger
	seen    map[string]struct{}
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, source LogSource, storageSink storage.Storage, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:     cfg,
		source:  source,
		storage: storageSink,
		logger:  logger,
		seen:    make(map[string]struct{}),
	}
}

// Run syncs [FromBlock, ToBlock] batch by batch. ToBlock zero means the
// current head. A stored checkpoint moves the start past blocks already done.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return fmt.Errorf("log source is nil")
	}
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}
	if r.cfg.Pool == (common.Address{}) {
		return fmt.Errorf("pool address is required")
	}

	topics, err := dex.EventTopics()
	if err != nil {
		return fmt.Errorf("load event topics: %w", err)
	}

	chainID, err := r.source.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		if to, err = r.source.LatestBlockNumber(ctx); err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
	}

	if r.cfg.Checkpoint != nil {
		last, ok, err := r.cfg.Checkpoint.Load(ctx)
		if err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}
		if ok && last >= from {
			from = last + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := splitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	var total int
	for _, br := range ranges {
		if err := ctx.Err(); err != nil {
			return err
		}

		logs, err := r.filterLogs(ctx, br, topics)
		if err != nil {
			return fmt.Errorf("filter logs %d-%d: %w", br.from, br.to, err)
		}

		ingestedAt := time.Now().UTC()
		records := make([]model.LogRecord, 0, len(logs))
		for _, log := range logs {
			if log.Removed || r.isDuplicate(log) {
				continue
			}
			ts, err := r.blockTimestamp(ctx, log.BlockNumber)
			if err != nil {
				return fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}
			records = append(records, toLogRecord(chainID.Uint64(), log, ts, ingestedAt))
		}

		if len(records) > 0 {
			if err := r.storage.PutLogBatch(ctx, records); err != nil {
				return fmt.Errorf("store logs: %w", err)
			}
		}
		if r.cfg.Checkpoint != nil {
			if err := r.cfg.Checkpoint.Save(ctx, br.to); err != nil {
				return fmt.Errorf("save checkpoint: %w", err)
			}
		}
		total += len(records)

		r.logger.Info("batch complete",
			zap.Uint64("from", br.from),
			zap.Uint64("to", br.to),
			zap.Int("logs", len(records)),
		)
	}

	r.logger.Info("index complete", zap.Int("logs", total), zap.Uint64("to", to))
	return nil
}

func (r *Runner) filterLogs(ctx context.Context, br blockRange, topics []common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := storage.Retry(ctx, r.cfg.Retry, func(ctx context.Context) error {
		var err error
		logs, err = r.source.FilterLogs(ctx, br.from, br.to, r.cfg.Pool, topics)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", br.from), zap.Uint64("to", br.to))
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	var ts uint64
	err := storage.Retry(ctx, r.cfg.Retry, func(ctx context.Context) error {
		var err error
		ts, err = r.source.BlockTimestamp(ctx, number)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", number))
		}
		return err
	})
	return ts, err
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
