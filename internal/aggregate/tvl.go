package aggregate

import "math/big"

// nativeValue prices a (token, native) pair in native units using the
// reserve ratio. It returns nil when the pool has no token reserve to price
// against.
func nativeValue(tokenAmount, nativeAmount, tokenReserve, nativeReserve *big.Int) *big.Rat {
	if tokenReserve == nil || nativeReserve == nil || tokenReserve.Sign() == 0 {
		return nil
	}
	value := new(big.Rat)
	if nativeAmount != nil {
		value.SetInt(nativeAmount)
	}
	if tokenAmount != nil && tokenAmount.Sign() > 0 {
		converted := new(big.Rat).SetFrac(new(big.Int).Mul(tokenAmount, nativeReserve), tokenReserve)
		value.Add(value, converted)
	}
	return value
}
