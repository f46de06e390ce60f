package aggregate

import (
	"math/big"
	"time"
)

const ratioScale = 18

func formatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat := new(big.Rat).SetFrac(value, denom)
	return rat.FloatString(int(decimals))
}

func formatOptional(value *big.Int, decimals uint8) *string {
	if value == nil {
		return nil
	}
	text := formatTokenAmount(value, decimals)
	return &text
}

func computeFeeRates(feeToken, feeNative, tokenReserve, nativeReserve *big.Int) (*string, *string) {
	var rateToken, rateNative *string
	if rate := computeRateFromInt(feeToken, tokenReserve); rate != "" {
		rateToken = &rate
	}
	if rate := computeRateFromInt(feeNative, nativeReserve); rate != "" {
		rateNative = &rate
	}
	return rateToken, rateNative
}

func computeRateFromInt(fee *big.Int, base *big.Int) string {
	if fee == nil || fee.Sign() == 0 || base == nil || base.Sign() == 0 {
		return ""
	}
	return new(big.Rat).SetFrac(fee, base).FloatString(ratioScale)
}

// computeAPR annualizes the window's fee yield. Both fee pots are valued in
// native units at the closing reserve ratio.
func computeAPR(feeToken, feeNative, tokenReserve, nativeReserve *big.Int, windowSeconds uint64) *string {
	if windowSeconds == 0 {
		return nil
	}
	tvl := nativeValue(tokenReserve, nativeReserve, tokenReserve, nativeReserve)
	if tvl == nil || tvl.Sign() == 0 {
		return nil
	}
	fees := nativeValue(feeToken, feeNative, tokenReserve, nativeReserve)
	if fees == nil {
		return nil
	}

	yearSeconds := big.NewRat(int64(365*24*time.Hour/time.Second), 1)
	window := big.NewRat(int64(windowSeconds), 1)
	apr := new(big.Rat).Quo(fees, tvl)
	apr.Mul(apr, yearSeconds)
	apr.Quo(apr, window)
	val := apr.FloatString(ratioScale)
	return &val
}
