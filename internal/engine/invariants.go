package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"positionSwap/internal/model"
)

// CheckInvariants audits one pool: claims never exceed reserves, reserves
// are positive exactly while positions exist, and custody holds at least
// the reserves.
func (e *Engine) CheckInvariants(token common.Address) error {
	ps, err := e.pool(token)
	if err != nil {
		return err
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()

	positions, err := e.registry.List(token)
	if err != nil {
		return fmt.Errorf("list positions: %w", err)
	}
	tokenReserve, nativeReserve, _ := ps.ledger.CurrentReserves()
	if len(positions) > 0 && (tokenReserve.IsZero() || nativeReserve.IsZero()) {
		return fmt.Errorf("%w: %d positions over an empty reserve", model.ErrInvariantViolation, len(positions))
	}
	if len(positions) == 0 && (!tokenReserve.IsZero() || !nativeReserve.IsZero() || !ps.ledger.Empty()) {
		return fmt.Errorf("%w: reserves without positions", model.ErrInvariantViolation)
	}

	sumToken, sumNative, shares := new(uint256.Int), new(uint256.Int), new(uint256.Int)
	for _, pos := range positions {
		claimToken, claimNative, err := ps.ledger.Value(stakeOf(pos))
		if err != nil {
			return fmt.Errorf("%w: position %s: %v", model.ErrInvariantViolation, pos.ID, err)
		}
		sumToken.Add(sumToken, claimToken)
		sumNative.Add(sumNative, claimNative)
		shares.Add(shares, pos.Shares)
	}
	if sumToken.Gt(tokenReserve) || sumNative.Gt(nativeReserve) {
		return fmt.Errorf("%w: claims %s/%s exceed reserves %s/%s", model.ErrInvariantViolation,
			sumToken.Dec(), sumNative.Dec(), tokenReserve.Dec(), nativeReserve.Dec())
	}
	if !shares.Eq(ps.ledger.TotalShares()) {
		return fmt.Errorf("%w: position shares %s, pool shares %s", model.ErrInvariantViolation, shares.Dec(), ps.ledger.TotalShares().Dec())
	}
	if held := ps.asset.BalanceOf(e.cfg.Address); held.Lt(tokenReserve) {
		return fmt.Errorf("%w: custody holds %s token, reserve %s", model.ErrInvariantViolation, held.Dec(), tokenReserve.Dec())
	}
	if held := e.native.BalanceOf(e.cfg.Address); held.Lt(nativeReserve) {
		return fmt.Errorf("%w: custody holds %s native, reserve %s", model.ErrInvariantViolation, held.Dec(), nativeReserve.Dec())
	}
	return nil
}

// Snapshot returns the persisted form of a pool's accounting state.
func (e *Engine) Snapshot(token common.Address) (model.PoolSnapshot, error) {
	ps, err := e.pool(token)
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	state := ps.ledger.State()
	tokenReserve, nativeReserve, ratio := ps.ledger.CurrentReserves()
	return model.PoolSnapshot{
		Token:          token.Hex(),
		TokenReserve:   tokenReserve.Dec(),
		NativeReserve:  nativeReserve.Dec(),
		PriceRatio:     ratio.Dec(),
		FeeIndexToken:  state.FeeIndexToken.Dec(),
		FeeIndexNative: state.FeeIndexNative.Dec(),
		TotalShares:    state.TotalShares.Dec(),
		Positions:      e.registry.Count(token),
		NextSeq:        e.registry.NextID(token).Seq,
		UpdatedSeq:     e.eventSeq.Load(),
	}, nil
}
