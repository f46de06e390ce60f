// Package ledger keeps the reserve and fee accounting of a single pool.
//
// Reserves are split into principal and undistributed fees per asset. Trades
// move principal along a constant product curve and book whatever the caller
// paid above that curve as a fee; fees reach stakes through two per-asset
// accrual indices so a trade never iterates over positions.
package ledger

import (
	"github.com/holiman/uint256"

	"positionSwap/internal/model"
	"positionSwap/internal/quote"
)

// FeeIndexScale is the fixed-point scale of the fee accrual indices.
var FeeIndexScale = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(30))

// Stake is a claim on the pool minted by a deposit.
type Stake struct {
	Shares              *uint256.Int
	FeeCheckpointToken  *uint256.Int
	FeeCheckpointNative *uint256.Int
}

// State is a copy of the pool's accounting fields.
type State struct {
	PrincipalToken  *uint256.Int
	PrincipalNative *uint256.Int
	FeeToken        *uint256.Int
	FeeNative       *uint256.Int
	FeeIndexToken   *uint256.Int
	FeeIndexNative  *uint256.Int
	TotalShares     *uint256.Int
}

// Pool is the ledger of one token's pool. It is not safe for concurrent
// use; the owner serializes access.
type Pool struct {
	principal [2]*uint256.Int
	fees      [2]*uint256.Int
	feeIndex  [2]*uint256.Int
	shares    *uint256.Int
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	p := &Pool{shares: new(uint256.Int)}
	for i := range p.principal {
		p.principal[i] = new(uint256.Int)
		p.fees[i] = new(uint256.Int)
		p.feeIndex[i] = new(uint256.Int)
	}
	return p
}

// CurrentReserves returns both reserves and the price ratio.
func (p *Pool) CurrentReserves() (token, native, priceRatio *uint256.Int) {
	token = p.reserve(model.AssetToken)
	native = p.reserve(model.AssetNative)
	return token, native, quote.PriceRatio(token, native)
}

// Reserves returns the reserves in the form the quoter consumes.
func (p *Pool) Reserves() quote.Reserves {
	return quote.Reserves{
		Token:  p.reserve(model.AssetToken),
		Native: p.reserve(model.AssetNative),
	}
}

// TotalShares returns the shares held by live stakes.
func (p *Pool) TotalShares() *uint256.Int {
	return new(uint256.Int).Set(p.shares)
}

// FeeIndices returns the current accrual indices.
func (p *Pool) FeeIndices() (token, native *uint256.Int) {
	return new(uint256.Int).Set(p.feeIndex[model.AssetToken]), new(uint256.Int).Set(p.feeIndex[model.AssetNative])
}

// State returns a copy of every accounting field.
func (p *Pool) State() State {
	return State{
		PrincipalToken:  new(uint256.Int).Set(p.principal[model.AssetToken]),
		PrincipalNative: new(uint256.Int).Set(p.principal[model.AssetNative]),
		FeeToken:        new(uint256.Int).Set(p.fees[model.AssetToken]),
		FeeNative:       new(uint256.Int).Set(p.fees[model.AssetNative]),
		FeeIndexToken:   new(uint256.Int).Set(p.feeIndex[model.AssetToken]),
		FeeIndexNative:  new(uint256.Int).Set(p.feeIndex[model.AssetNative]),
		TotalShares:     new(uint256.Int).Set(p.shares),
	}
}

// Empty reports whether the pool holds no stakes.
func (p *Pool) Empty() bool {
	return p.shares.IsZero()
}

func (p *Pool) reserve(asset model.Asset) *uint256.Int {
	return new(uint256.Int).Add(p.principal[asset], p.fees[asset])
}
