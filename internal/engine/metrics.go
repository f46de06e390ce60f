package engine

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"positionSwap/internal/model"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	SwapsTotal    *prometheus.CounterVec
	SwapLatency   prometheus.Histogram
	FeesCollected *prometheus.CounterVec
	LiquidityOps  *prometheus.CounterVec
	PoolReserves  *prometheus.GaugeVec
	PositionsLive *prometheus.GaugeVec
}

// NewMetrics registers the engine metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SwapsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "positionswap",
				Subsystem: "engine",
				Name:      "swaps_total",
				Help:      "Swaps by pool, direction and outcome",
			},
			[]string{"pool", "direction", "status"},
		),
		SwapLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "positionswap",
				Subsystem: "engine",
				Name:      "swap_duration_seconds",
				Help:      "Time spent executing a swap",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
		),
		FeesCollected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "positionswap",
				Subsystem: "engine",
				Name:      "fees_collected_total",
				Help:      "Fees booked to liquidity providers, in whole asset units",
			},
			[]string{"pool", "asset"},
		),
		LiquidityOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "positionswap",
				Subsystem: "engine",
				Name:      "liquidity_operations_total",
				Help:      "Deposits and withdrawals by outcome",
			},
			[]string{"pool", "operation", "status"},
		),
		PoolReserves: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "positionswap",
				Subsystem: "engine",
				Name:      "pool_reserves",
				Help:      "Pool reserves in whole asset units",
			},
			[]string{"pool", "asset"},
		),
		PositionsLive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "positionswap",
				Subsystem: "engine",
				Name:      "positions_live",
				Help:      "Live positions per pool",
			},
			[]string{"pool"},
		),
	}
}

var unitScale = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(model.NativeDecimals)), nil))

// units converts a base-unit amount to whole units for gauges.
func units(amount *uint256.Int) float64 {
	if amount == nil {
		return 0
	}
	f := new(big.Float).SetInt(amount.ToBig())
	v, _ := f.Quo(f, unitScale).Float64()
	return v
}

func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrSlippageExceeded):
		return "slippage"
	case errors.Is(err, model.ErrInsufficientLiquidity):
		return "insufficient_liquidity"
	case errors.Is(err, model.ErrTransferFailed):
		return "transfer_failed"
	default:
		return "error"
	}
}

func (m *Metrics) observeSwap(pool common.Address, direction Direction, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SwapsTotal.WithLabelValues(pool.Hex(), direction.String(), status(err)).Inc()
	if err == nil {
		m.SwapLatency.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) observeFee(pool common.Address, asset model.Asset, fee *uint256.Int) {
	if m == nil || fee == nil || fee.IsZero() {
		return
	}
	m.FeesCollected.WithLabelValues(pool.Hex(), asset.String()).Add(units(fee))
}

func (m *Metrics) observeLiquidity(pool common.Address, operation string, err error) {
	if m == nil {
		return
	}
	m.LiquidityOps.WithLabelValues(pool.Hex(), operation, status(err)).Inc()
}

func (m *Metrics) observePool(pool common.Address, token, native *uint256.Int, positions int) {
	if m == nil {
		return
	}
	m.PoolReserves.WithLabelValues(pool.Hex(), model.AssetToken.String()).Set(units(token))
	m.PoolReserves.WithLabelValues(pool.Hex(), model.AssetNative.String()).Set(units(native))
	m.PositionsLive.WithLabelValues(pool.Hex()).Set(float64(positions))
}
