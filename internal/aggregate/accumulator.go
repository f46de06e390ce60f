package aggregate

import (
	"encoding/json"
	"fmt"
	"math/big"

	"positionSwap/internal/model"
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	ChainID         uint64
	Pool            string
	WindowStart     uint64
	WindowEnd       uint64
	SwapCount       uint64
	DepositCount    uint64
	WithdrawalCount uint64
	VolumeToken     *big.Int
	VolumeNative    *big.Int
	FeeToken        *big.Int
	FeeNative       *big.Int
	TokenReserve    *big.Int
	NativeReserve   *big.Int
	PriceRatio      *big.Int
	FirstSeq        uint64
	LastSeq         uint64
	LastTS          uint64
}

func NewAccumulator(record model.TypedEventRecord, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		ChainID:      record.ChainID,
		Pool:         record.Pool,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		VolumeToken:  big.NewInt(0),
		VolumeNative: big.NewInt(0),
		FeeToken:     big.NewInt(0),
		FeeNative:    big.NewInt(0),
		FirstSeq:     record.BlockNumber,
		LastSeq:      record.BlockNumber,
		LastTS:       record.Timestamp,
	}
}

// AddEvent folds one typed event into the window. Reserves track the event
// with the highest sequence seen so far.
func (a *Accumulator) AddEvent(record model.TypedEventRecord) error {
	var (
		tokenReserve, nativeReserve, priceRatio string
		err                                     error
	)
	switch record.EventName {
	case model.EventSwapToToken, model.EventSwapToEth:
		var swap model.SwapEventData
		if err := json.Unmarshal(record.Decoded, &swap); err != nil {
			return fmt.Errorf("decode swap: %w", err)
		}
		if err = a.applySwap(swap); err != nil {
			return err
		}
		tokenReserve, nativeReserve, priceRatio = swap.TokenReserve, swap.NativeReserve, swap.PriceRatio
	case model.EventAddLiquidity, model.EventRemoveLiquidity:
		var liq model.LiquidityEventData
		if err := json.Unmarshal(record.Decoded, &liq); err != nil {
			return fmt.Errorf("decode liquidity: %w", err)
		}
		if record.EventName == model.EventAddLiquidity {
			a.DepositCount++
		} else {
			a.WithdrawalCount++
		}
		tokenReserve, nativeReserve = liq.TokenReserve, liq.NativeReserve
	default:
		return nil
	}

	if record.BlockNumber < a.FirstSeq {
		a.FirstSeq = record.BlockNumber
	}
	if record.BlockNumber < a.LastSeq && a.TokenReserve != nil {
		return nil
	}
	a.LastSeq = record.BlockNumber
	a.LastTS = record.Timestamp

	if a.TokenReserve, err = parseBigInt(tokenReserve); err != nil {
		return err
	}
	if a.NativeReserve, err = parseBigInt(nativeReserve); err != nil {
		return err
	}
	if priceRatio == "" {
		a.PriceRatio = priceFromReserves(a.TokenReserve, a.NativeReserve)
	} else if a.PriceRatio, err = parseBigInt(priceRatio); err != nil {
		return err
	}
	return nil
}

func (a *Accumulator) applySwap(swap model.SwapEventData) error {
	tokenAmount, err := parseBigInt(swap.TokenAmount)
	if err != nil {
		return err
	}
	nativeAmount, err := parseBigInt(swap.NativeAmount)
	if err != nil {
		return err
	}
	fee, err := parseBigInt(swap.Fee)
	if err != nil {
		return err
	}

	a.VolumeToken.Add(a.VolumeToken, tokenAmount)
	a.VolumeNative.Add(a.VolumeNative, nativeAmount)
	switch swap.FeeAsset {
	case model.AssetToken.String():
		a.FeeToken.Add(a.FeeToken, fee)
	case model.AssetNative.String():
		a.FeeNative.Add(a.FeeNative, fee)
	default:
		return fmt.Errorf("unknown fee asset %q", swap.FeeAsset)
	}
	a.SwapCount++
	return nil
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount: %s", value)
	}
	return parsed, nil
}

func priceFromReserves(tokenReserve, nativeReserve *big.Int) *big.Int {
	if nativeReserve == nil || nativeReserve.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(tokenReserve, model.PriceScale.ToBig())
	return out.Quo(out, nativeReserve)
}
