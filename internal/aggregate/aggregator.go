package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionSwap/internal/chain"
	"positionSwap/internal/dex"
	"positionSwap/internal/model"
	"positionSwap/internal/storage"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
}

// Store receives aggregation output. postgres.Store implements it.
type Store interface {
	UpsertPools(ctx context.Context, pools []model.PoolRecord) error
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Aggregator aggregates typed events into pool window metrics.
type Aggregator struct {
	cfg          Config
	store        Store
	chainClient  *chain.Client
	logger       *zap.Logger
	tokens       *dex.TokenMetaCache
	accumulators map[string]*Accumulator
	poolSeen     map[string]model.PoolRecord
}

// NewAggregator builds an aggregator. chainClient may be nil, in which case
// token amounts are formatted with 18 decimals.
func NewAggregator(cfg Config, store Store, chainClient *chain.Client, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		store:        store,
		chainClient:  chainClient,
		logger:       logger,
		tokens:       dex.NewTokenMetaCache(),
		accumulators: make(map[string]*Accumulator),
		poolSeen:     make(map[string]model.PoolRecord),
	}
}

// Run executes aggregation over a typed events JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	if a.store == nil {
		return fmt.Errorf("store is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	pools := make([]model.PoolRecord, 0, 16)
	maxTs := startTs
	var total, emitted, skipped, failed int

	err = storage.ScanJSONL(inputPath, func(lineNo int, line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		total++

		var record model.TypedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			a.logger.Warn("decode typed event", zap.Int("line", lineNo), zap.Error(err))
			return nil
		}
		if record.Pool == "" {
			failed++
			a.logger.Warn("typed event without pool", zap.Int("line", lineNo))
			return nil
		}
		if record.Timestamp <= startTs {
			skipped++
			return nil
		}

		windowStart := windowStart(record.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds

		accKey := poolKey(record.Pool)
		acc := a.accumulators[accKey]
		if acc == nil {
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		} else if acc.WindowStart != windowStart {
			metrics, pool := a.flushAccumulator(ctx, acc)
			batch = append(batch, metrics)
			emitted++
			if pool != nil {
				pools = append(pools, *pool)
			}
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		}

		if err := acc.AddEvent(record); err != nil {
			failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", record.Pool), zap.String("event", record.EventName))
			return nil
		}

		if record.Timestamp > maxTs {
			maxTs = record.Timestamp
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.flushBatches(ctx, batch, pools); err != nil {
				return err
			}
			batch = batch[:0]
			pools = pools[:0]

			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, acc := range a.accumulators {
		metrics, pool := a.flushAccumulator(ctx, acc)
		batch = append(batch, metrics)
		emitted++
		if pool != nil {
			pools = append(pools, *pool)
		}
	}
	a.accumulators = make(map[string]*Accumulator)

	if len(batch) > 0 || len(pools) > 0 {
		if err := a.flushBatches(ctx, batch, pools); err != nil {
			return err
		}
	}

	a.cfg.RecomputeFrom = maxTs
	if err := a.saveState(ctx); err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", total),
		zap.Int("windows", emitted),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load aggregate state: %w", err)
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

// saveState never moves the cursor past an open window so a resumed run
// recomputes that window from its first event.
func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.cfg.RecomputeFrom)
	}

	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs = safeTs - 1
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}

func (a *Aggregator) flushBatches(ctx context.Context, batch []model.PoolWindowMetrics, pools []model.PoolRecord) error {
	if len(pools) > 0 {
		if err := a.store.UpsertPools(ctx, pools); err != nil {
			return fmt.Errorf("upsert pools: %w", err)
		}
	}
	if len(batch) > 0 {
		if err := a.store.UpsertWindowMetrics(ctx, batch); err != nil {
			return fmt.Errorf("upsert window metrics: %w", err)
		}
	}
	return nil
}

func (a *Aggregator) flushAccumulator(ctx context.Context, acc *Accumulator) (model.PoolWindowMetrics, *model.PoolRecord) {
	meta := a.tokenMeta(ctx, acc.Pool)
	poolRecord := a.registerPool(acc, meta)

	feeRateToken, feeRateNative := computeFeeRates(acc.FeeToken, acc.FeeNative, acc.TokenReserve, acc.NativeReserve)
	apr := computeAPR(acc.FeeToken, acc.FeeNative, acc.TokenReserve, acc.NativeReserve, a.cfg.WindowSeconds)

	var priceRatio *string
	if acc.PriceRatio != nil {
		text := acc.PriceRatio.String()
		priceRatio = &text
	}

	metrics := model.PoolWindowMetrics{
		ChainID:         acc.ChainID,
		Pool:            acc.Pool,
		WindowSizeSecs:  int64(a.cfg.WindowSeconds),
		WindowStart:     time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:       time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:       acc.SwapCount,
		DepositCount:    acc.DepositCount,
		WithdrawalCount: acc.WithdrawalCount,
		VolumeToken:     formatTokenAmount(acc.VolumeToken, meta.Decimals),
		VolumeNative:    formatTokenAmount(acc.VolumeNative, model.NativeDecimals),
		FeeToken:        formatTokenAmount(acc.FeeToken, meta.Decimals),
		FeeNative:       formatTokenAmount(acc.FeeNative, model.NativeDecimals),
		TokenReserve:    formatOptional(acc.TokenReserve, meta.Decimals),
		NativeReserve:   formatOptional(acc.NativeReserve, model.NativeDecimals),
		PriceRatio:      priceRatio,
		FeeRateToken:    feeRateToken,
		FeeRateNative:   feeRateNative,
		APR:             apr,
	}
	return metrics, poolRecord
}

func (a *Aggregator) registerPool(acc *Accumulator, meta model.TokenMeta) *model.PoolRecord {
	key := poolKey(acc.Pool)
	pool := model.PoolRecord{
		ChainID:      acc.ChainID,
		Token:        acc.Pool,
		Symbol:       meta.Symbol,
		Decimals:     meta.Decimals,
		FirstSeenSeq: acc.FirstSeq,
	}

	existing, ok := a.poolSeen[key]
	if ok && existing.FirstSeenSeq <= pool.FirstSeenSeq {
		return nil
	}
	a.poolSeen[key] = pool
	return &pool
}

func (a *Aggregator) tokenMeta(ctx context.Context, token string) model.TokenMeta {
	fallback := model.TokenMeta{Decimals: model.NativeDecimals}
	if !common.IsHexAddress(token) {
		a.logger.Warn("invalid token address", zap.String("token", token))
		return fallback
	}
	addr := common.HexToAddress(token)
	fallback.Address = addr
	if meta, ok := a.tokens.Get(addr); ok {
		return meta
	}
	if a.chainClient == nil {
		a.tokens.Set(addr, fallback)
		return fallback
	}
	meta, err := dex.FetchTokenMeta(ctx, a.chainClient, addr, a.logger)
	if err != nil {
		a.logger.Warn("token metadata", zap.String("token", token), zap.Error(err))
		meta = fallback
	}
	a.tokens.Set(addr, meta)
	return meta
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func poolKey(address string) string {
	return strings.ToLower(address)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var lowest uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if lowest == 0 || entry.WindowStart < lowest {
			lowest = entry.WindowStart
		}
	}
	return lowest
}
