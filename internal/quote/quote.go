// Package quote holds the pure pricing functions of the pool. Nothing here
// touches pool state; callers pass the reserves they observed.
package quote

import (
	"github.com/holiman/uint256"

	"positionSwap/internal/model"
)

// Reserves is the pair of balances a quote is computed against.
type Reserves struct {
	Token  *uint256.Int
	Native *uint256.Int
}

// AmountOutGivenIn returns reserveOut*amountIn / (reserveIn + 2*amountIn),
// truncated.
func AmountOutGivenIn(reserveOut, reserveIn, amountIn *uint256.Int) (*uint256.Int, error) {
	if err := checkReserves(reserveOut, reserveIn); err != nil {
		return nil, err
	}
	if amountIn == nil || amountIn.IsZero() {
		return nil, model.ErrZeroAmount
	}
	twice, overflow := new(uint256.Int).MulOverflow(amountIn, uint256.NewInt(2))
	if overflow {
		return nil, model.ErrOverflow
	}
	denominator, overflow := new(uint256.Int).AddOverflow(reserveIn, twice)
	if overflow {
		return nil, model.ErrOverflow
	}
	out, overflow := new(uint256.Int).MulDivOverflow(reserveOut, amountIn, denominator)
	if overflow {
		return nil, model.ErrOverflow
	}
	return out, nil
}

// AmountInGivenOut returns reserveIn*amountOut / (reserveOut - 2*amountOut),
// rounded up. The output may take at most half of reserveOut.
func AmountInGivenOut(reserveOut, reserveIn, amountOut *uint256.Int) (*uint256.Int, error) {
	if err := checkReserves(reserveOut, reserveIn); err != nil {
		return nil, err
	}
	if amountOut == nil || amountOut.IsZero() {
		return nil, model.ErrZeroAmount
	}
	twice, overflow := new(uint256.Int).MulOverflow(amountOut, uint256.NewInt(2))
	if overflow || reserveOut.Cmp(twice) <= 0 {
		return nil, model.ErrInsufficientLiquidity
	}
	denominator := new(uint256.Int).Sub(reserveOut, twice)
	return MulDivUp(reserveIn, amountOut, denominator)
}

// MulDivUp returns ceil(x*y/d) with a 512-bit intermediate product.
func MulDivUp(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, model.ErrInsufficientLiquidity
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, model.ErrOverflow
	}
	if !new(uint256.Int).MulMod(x, y, d).IsZero() {
		if z, overflow = z.AddOverflow(z, uint256.NewInt(1)); overflow {
			return nil, model.ErrOverflow
		}
	}
	return z, nil
}

// PriceRatio returns token*10^12/native rounded down, or zero for an empty
// native side.
func PriceRatio(token, native *uint256.Int) *uint256.Int {
	if token == nil || native == nil || native.IsZero() {
		return new(uint256.Int)
	}
	ratio, overflow := new(uint256.Int).MulDivOverflow(token, model.PriceScale, native)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return ratio
}

// PriceOfToken is the native input required to receive tokenOut.
func PriceOfToken(r Reserves, tokenOut *uint256.Int) (*uint256.Int, error) {
	return AmountInGivenOut(r.Token, r.Native, tokenOut)
}

// PriceOfEth is the token input required to receive nativeOut.
func PriceOfEth(r Reserves, nativeOut *uint256.Int) (*uint256.Int, error) {
	return AmountInGivenOut(r.Native, r.Token, nativeOut)
}

// TokenForNative is the token output for an exact native input.
func TokenForNative(r Reserves, nativeIn *uint256.Int) (*uint256.Int, error) {
	return AmountOutGivenIn(r.Token, r.Native, nativeIn)
}

// NativeForToken is the native output for an exact token input.
func NativeForToken(r Reserves, tokenIn *uint256.Int) (*uint256.Int, error) {
	return AmountOutGivenIn(r.Native, r.Token, tokenIn)
}

func checkReserves(reserveOut, reserveIn *uint256.Int) error {
	if reserveOut == nil || reserveIn == nil || reserveOut.IsZero() || reserveIn.IsZero() {
		return model.ErrInsufficientLiquidity
	}
	return nil
}
