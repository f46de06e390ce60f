package ledger

import (
	"fmt"

	"github.com/holiman/uint256"

	"positionSwap/internal/model"
	"positionSwap/internal/quote"
)

// tradeResult is the validated outcome of a trade before it is committed.
type tradeResult struct {
	amountOut  *uint256.Int
	principal  *uint256.Int
	fee        *uint256.Int
	indexDelta *uint256.Int
}

// CheckTrade validates a trade of amountIn of asset in against amountOut of
// the other asset and returns the fee it would book. The pool is unchanged.
func (p *Pool) CheckTrade(in model.Asset, amountIn, amountOut *uint256.Int) (*uint256.Int, error) {
	res, err := p.checkTrade(in, amountIn, amountOut)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Set(res.fee), nil
}

// ApplyTrade commits a trade and returns the fee booked in the input asset.
func (p *Pool) ApplyTrade(in model.Asset, amountIn, amountOut *uint256.Int) (*uint256.Int, error) {
	res, err := p.checkTrade(in, amountIn, amountOut)
	if err != nil {
		return nil, err
	}
	out := in.Other()
	p.principal[in].Add(p.principal[in], res.principal)
	p.principal[out].Sub(p.principal[out], res.amountOut)
	p.fees[in].Add(p.fees[in], res.fee)
	p.feeIndex[in].Add(p.feeIndex[in], res.indexDelta)
	return new(uint256.Int).Set(res.fee), nil
}

func (p *Pool) checkTrade(in model.Asset, amountIn, amountOut *uint256.Int) (*tradeResult, error) {
	if amountIn == nil || amountOut == nil || amountIn.IsZero() || amountOut.IsZero() {
		return nil, model.ErrZeroAmount
	}
	if p.shares.IsZero() {
		return nil, model.ErrInsufficientLiquidity
	}
	out := in.Other()
	reserveIn, reserveOut := p.reserve(in), p.reserve(out)
	principalIn, principalOut := p.principal[in], p.principal[out]
	if amountOut.Cmp(principalOut) >= 0 {
		return nil, fmt.Errorf("%w: %s output %s leaves no principal", model.ErrReserveUnderflow, out, amountOut.Dec())
	}

	// The reserve product must not shrink.
	newIn, overflow := new(uint256.Int).AddOverflow(reserveIn, amountIn)
	if overflow {
		return nil, model.ErrOverflow
	}
	minIn, err := quote.MulDivUp(reserveIn, reserveOut, new(uint256.Int).Sub(reserveOut, amountOut))
	if err != nil {
		return nil, err
	}
	if newIn.Lt(minIn) {
		return nil, fmt.Errorf("%w: reserve product would decrease", model.ErrInsufficientLiquidity)
	}

	// Principal moves along x*y=k; anything above that is fee.
	need, err := quote.MulDivUp(principalIn, amountOut, new(uint256.Int).Sub(principalOut, amountOut))
	if err != nil {
		return nil, err
	}
	res := &tradeResult{
		amountOut:  new(uint256.Int).Set(amountOut),
		fee:        new(uint256.Int),
		indexDelta: new(uint256.Int),
	}
	if need.Cmp(amountIn) >= 0 {
		res.principal = new(uint256.Int).Set(amountIn)
		return res, nil
	}
	res.principal = need
	res.fee.Sub(amountIn, need)
	delta, overflow := new(uint256.Int).MulDivOverflow(res.fee, FeeIndexScale, p.shares)
	if overflow {
		return nil, model.ErrOverflow
	}
	if _, overflow := new(uint256.Int).AddOverflow(p.feeIndex[in], delta); overflow {
		return nil, model.ErrOverflow
	}
	res.indexDelta = delta
	return res, nil
}
