package ledger

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"positionSwap/internal/model"
)

// DepositPolicy controls how a deposit's ratio is checked against the pool.
type DepositPolicy string

const (
	// PolicyOpen accepts any ratio. Shares come from the scarcer side and
	// the surplus of the other side is left with the depositor.
	PolicyOpen DepositPolicy = "open"
	// PolicyStrict rejects deposits that deviate from the pool ratio by more
	// than MaxDeviationBps, then mints like PolicyOpen.
	PolicyStrict DepositPolicy = "strict"
)

// ParseDepositPolicy parses a policy name; empty means open.
func ParseDepositPolicy(value string) (DepositPolicy, error) {
	switch DepositPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", PolicyOpen:
		return PolicyOpen, nil
	case PolicyStrict:
		return PolicyStrict, nil
	default:
		return "", fmt.Errorf("unknown deposit policy %q", value)
	}
}

// DepositRule is the policy plus its tolerance.
type DepositRule struct {
	Policy          DepositPolicy
	MaxDeviationBps uint64
}

// Deposit is what a deposit mints and the amounts it takes. Token and Native
// never exceed the offered amounts.
type Deposit struct {
	Shares *uint256.Int
	Token  *uint256.Int
	Native *uint256.Int
}

var bpsDenominator = uint256.NewInt(10_000)

// CheckDeposit returns what a deposit of up to token and native would mint
// and take. The pool is unchanged.
func (p *Pool) CheckDeposit(token, native *uint256.Int, rule DepositRule) (Deposit, error) {
	if token == nil || native == nil || token.IsZero() || native.IsZero() {
		return Deposit{}, model.ErrZeroAmount
	}
	if _, overflow := new(uint256.Int).AddOverflow(p.reserve(model.AssetToken), token); overflow {
		return Deposit{}, model.ErrOverflow
	}
	if _, overflow := new(uint256.Int).AddOverflow(p.reserve(model.AssetNative), native); overflow {
		return Deposit{}, model.ErrOverflow
	}

	if p.shares.IsZero() {
		product, overflow := new(uint256.Int).MulOverflow(token, native)
		if overflow {
			return Deposit{}, model.ErrOverflow
		}
		shares := new(uint256.Int).Sqrt(product)
		if shares.IsZero() {
			return Deposit{}, fmt.Errorf("%w: deposit too small to mint shares", model.ErrZeroAmount)
		}
		return Deposit{Shares: shares, Token: new(uint256.Int).Set(token), Native: new(uint256.Int).Set(native)}, nil
	}

	if rule.Policy == PolicyStrict {
		if err := p.checkDeviation(token, native, rule.MaxDeviationBps); err != nil {
			return Deposit{}, err
		}
	}
	shares, err := p.balancedShares(token, native)
	if err != nil {
		return Deposit{}, err
	}
	if shares.IsZero() {
		return Deposit{}, fmt.Errorf("%w: deposit too small to mint shares", model.ErrZeroAmount)
	}
	if _, overflow := new(uint256.Int).AddOverflow(p.shares, shares); overflow {
		return Deposit{}, model.ErrOverflow
	}
	takeToken, err := p.costOf(shares, model.AssetToken)
	if err != nil {
		return Deposit{}, err
	}
	takeNative, err := p.costOf(shares, model.AssetNative)
	if err != nil {
		return Deposit{}, err
	}
	return Deposit{Shares: shares, Token: takeToken, Native: takeNative}, nil
}

// ApplyDeposit adds the taken amounts to principal and returns the deposit
// with its stake, checkpointed at the current fee indices.
func (p *Pool) ApplyDeposit(token, native *uint256.Int, rule DepositRule) (Deposit, Stake, error) {
	dep, err := p.CheckDeposit(token, native, rule)
	if err != nil {
		return Deposit{}, Stake{}, err
	}
	p.principal[model.AssetToken].Add(p.principal[model.AssetToken], dep.Token)
	p.principal[model.AssetNative].Add(p.principal[model.AssetNative], dep.Native)
	p.shares.Add(p.shares, dep.Shares)
	cpToken, cpNative := p.FeeIndices()
	return dep, Stake{Shares: new(uint256.Int).Set(dep.Shares), FeeCheckpointToken: cpToken, FeeCheckpointNative: cpNative}, nil
}

// balancedShares is min(S*x/Pt, S*y/Pn).
func (p *Pool) balancedShares(token, native *uint256.Int) (*uint256.Int, error) {
	fromToken, err := p.shareOf(token, model.AssetToken)
	if err != nil {
		return nil, err
	}
	fromNative, err := p.shareOf(native, model.AssetNative)
	if err != nil {
		return nil, err
	}
	if fromNative.Lt(fromToken) {
		return fromNative, nil
	}
	return fromToken, nil
}

// costOf is ceil(shares*principal/S). Taking it keeps every existing claim
// from shrinking, and a stake's immediate claim on asset never exceeds it.
func (p *Pool) costOf(shares *uint256.Int, asset model.Asset) (*uint256.Int, error) {
	cost, overflow := new(uint256.Int).MulDivOverflow(shares, p.principal[asset], p.shares)
	if overflow {
		return nil, model.ErrOverflow
	}
	if !new(uint256.Int).MulMod(shares, p.principal[asset], p.shares).IsZero() {
		cost.AddUint64(cost, 1)
	}
	return cost, nil
}

func (p *Pool) checkDeviation(token, native *uint256.Int, maxBps uint64) error {
	pt, pn := p.principal[model.AssetToken], p.principal[model.AssetNative]
	if pt.IsZero() {
		return fmt.Errorf("%w: %s principal is empty", model.ErrInsufficientLiquidity, model.AssetToken)
	}
	expected, overflow := new(uint256.Int).MulDivOverflow(token, pn, pt)
	if overflow {
		return model.ErrOverflow
	}
	diff := new(uint256.Int)
	if native.Gt(expected) {
		diff.Sub(native, expected)
	} else {
		diff.Sub(expected, native)
	}
	lhs, overflow := new(uint256.Int).MulOverflow(diff, bpsDenominator)
	if overflow {
		return fmt.Errorf("%w: deviation overflows", model.ErrRatioMismatch)
	}
	rhs, overflow := new(uint256.Int).MulOverflow(expected, uint256.NewInt(maxBps))
	if overflow {
		return model.ErrOverflow
	}
	if lhs.Gt(rhs) {
		return fmt.Errorf("%w: native %s, expected %s", model.ErrRatioMismatch, native.Dec(), expected.Dec())
	}
	return nil
}

// shareOf returns S*amount/principal[asset].
func (p *Pool) shareOf(amount *uint256.Int, asset model.Asset) (*uint256.Int, error) {
	if p.principal[asset].IsZero() {
		return nil, fmt.Errorf("%w: %s principal is empty", model.ErrInsufficientLiquidity, asset)
	}
	shares, overflow := new(uint256.Int).MulDivOverflow(p.shares, amount, p.principal[asset])
	if overflow {
		return nil, model.ErrOverflow
	}
	return shares, nil
}

// Value returns the current claim of a stake: its share of principal plus
// the fees accrued since its checkpoints. A stake holding every share
// claims the whole pool.
func (p *Pool) Value(stake Stake) (token, native *uint256.Int, err error) {
	claim, err := p.claim(stake)
	if err != nil {
		return nil, nil, err
	}
	token = new(uint256.Int).Add(claim.principal[model.AssetToken], claim.fees[model.AssetToken])
	native = new(uint256.Int).Add(claim.principal[model.AssetNative], claim.fees[model.AssetNative])
	return token, native, nil
}

// ApplyWithdrawal removes a stake and returns what it was paid.
func (p *Pool) ApplyWithdrawal(stake Stake) (token, native *uint256.Int, err error) {
	claim, err := p.claim(stake)
	if err != nil {
		return nil, nil, err
	}
	for _, asset := range []model.Asset{model.AssetToken, model.AssetNative} {
		p.principal[asset].Sub(p.principal[asset], claim.principal[asset])
		p.fees[asset].Sub(p.fees[asset], claim.fees[asset])
	}
	p.shares.Sub(p.shares, stake.Shares)
	token = new(uint256.Int).Add(claim.principal[model.AssetToken], claim.fees[model.AssetToken])
	native = new(uint256.Int).Add(claim.principal[model.AssetNative], claim.fees[model.AssetNative])
	return token, native, nil
}

type stakeClaim struct {
	principal [2]*uint256.Int
	fees      [2]*uint256.Int
}

func (p *Pool) claim(stake Stake) (*stakeClaim, error) {
	if stake.Shares == nil || stake.Shares.IsZero() {
		return nil, fmt.Errorf("%w: stake holds no shares", model.ErrReserveUnderflow)
	}
	if stake.Shares.Gt(p.shares) {
		return nil, fmt.Errorf("%w: stake %s exceeds total shares %s", model.ErrReserveUnderflow, stake.Shares.Dec(), p.shares.Dec())
	}
	c := &stakeClaim{}
	if stake.Shares.Eq(p.shares) {
		for i := range c.principal {
			c.principal[i] = new(uint256.Int).Set(p.principal[i])
			c.fees[i] = new(uint256.Int).Set(p.fees[i])
		}
		return c, nil
	}
	checkpoints := [2]*uint256.Int{stake.FeeCheckpointToken, stake.FeeCheckpointNative}
	for i := range c.principal {
		share, _ := new(uint256.Int).MulDivOverflow(p.principal[i], stake.Shares, p.shares)
		c.principal[i] = share

		accrued := new(uint256.Int)
		if cp := checkpoints[i]; cp == nil {
			accrued.Set(p.feeIndex[i])
		} else if p.feeIndex[i].Gt(cp) {
			accrued.Sub(p.feeIndex[i], cp)
		}
		fee, overflow := new(uint256.Int).MulDivOverflow(accrued, stake.Shares, FeeIndexScale)
		if overflow || fee.Gt(p.fees[i]) {
			return nil, fmt.Errorf("%w: %s fee claim exceeds pot", model.ErrReserveUnderflow, model.Asset(i))
		}
		c.fees[i] = fee
	}
	return c, nil
}
