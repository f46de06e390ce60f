package model

import "time"

// PoolWindowMetrics stores aggregated metrics for a pool window.
type PoolWindowMetrics struct {
	ChainID         uint64
	Pool            string
	WindowSizeSecs  int64
	WindowStart     time.Time
	WindowEnd       time.Time
	SwapCount       uint64
	DepositCount    uint64
	WithdrawalCount uint64
	VolumeToken     string
	VolumeNative    string
	FeeToken        string
	FeeNative       string
	TokenReserve    *string
	NativeReserve   *string
	PriceRatio      *string
	FeeRateToken    *string
	FeeRateNative   *string
	APR             *string
}
