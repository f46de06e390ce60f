package engine

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"positionSwap/internal/ledger"
	"positionSwap/internal/model"
)

// AddResult is a committed deposit. TokenAmount and NativeAmount are what
// the pool took; any surplus of the offered amounts stays with the caller.
type AddResult struct {
	PositionID   model.PositionID
	Shares       *uint256.Int
	TokenAmount  *uint256.Int
	NativeAmount *uint256.Int
	Event        model.Event
}

// RemoveResult is a committed withdrawal.
type RemoveResult struct {
	PositionID   model.PositionID
	Owner        common.Address
	TokenAmount  *uint256.Int
	NativeAmount *uint256.Int
	Event        model.Event
}

// AddLiquidity deposits up to tokenAmount and nativeAmount into the pool of
// token and mints a new position to the caller. nativeAmount must equal the
// value attached to the call. Once the pool is seeded only the pool-ratio
// part of the offer is taken.
func (e *Engine) AddLiquidity(ctx context.Context, call Call, token common.Address, tokenAmount, nativeAmount *uint256.Int) (AddResult, error) {
	res, err := e.addLiquidity(call, token, tokenAmount, nativeAmount)
	e.publish(ctx, token)
	e.metrics.observeLiquidity(token, "add", err)
	if err != nil {
		e.logger.Info("add liquidity rejected",
			zap.String("token", token.Hex()),
			zap.String("provider", call.Caller.Hex()),
			zap.String("token_amount", model.FormatAmount(tokenAmount)),
			zap.String("native_amount", model.FormatAmount(nativeAmount)),
			zap.Error(err),
		)
		return AddResult{}, err
	}
	e.logger.Debug("liquidity added",
		zap.String("token", token.Hex()),
		zap.String("provider", call.Caller.Hex()),
		zap.String("position_id", res.PositionID.String()),
		zap.String("shares", res.Shares.Dec()),
		zap.String("token_amount", res.TokenAmount.Dec()),
		zap.String("native_amount", res.NativeAmount.Dec()),
	)
	return res, nil
}

func (e *Engine) addLiquidity(call Call, token common.Address, tokenAmount, nativeAmount *uint256.Int) (AddResult, error) {
	if tokenAmount == nil || nativeAmount == nil || tokenAmount.IsZero() || nativeAmount.IsZero() {
		return AddResult{}, model.ErrZeroAmount
	}
	if !nativeAmount.Eq(call.value()) {
		return AddResult{}, fmt.Errorf("%w: native %s, attached %s", model.ErrValueMismatch, nativeAmount.Dec(), call.value().Dec())
	}
	ps, err := e.pool(token)
	if err != nil {
		return AddResult{}, err
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()

	dep, err := ps.ledger.CheckDeposit(tokenAmount, nativeAmount, e.cfg.DepositRule)
	if err != nil {
		return AddResult{}, err
	}
	liquidity, overflow := new(uint256.Int).MulOverflow(dep.Token, dep.Native)
	if overflow {
		return AddResult{}, fmt.Errorf("liquidity of deposit: %w", model.ErrOverflow)
	}
	cpToken, cpNative := ps.ledger.FeeIndices()

	s := e.settle(ps)
	if err := s.pullToken(call.Caller, dep.Token); err != nil {
		return AddResult{}, err
	}
	if err := s.pullNative(call.Caller, dep.Native); err != nil {
		s.rollback()
		return AddResult{}, err
	}
	id, err := e.registry.Create(call.Caller, model.Position{
		ID:                  model.PositionID{Pool: token},
		DepositToken:        dep.Token,
		DepositNative:       dep.Native,
		Liquidity:           liquidity,
		Shares:              dep.Shares,
		FeeCheckpointToken:  cpToken,
		FeeCheckpointNative: cpNative,
		CreatedAt:           e.cfg.Now().UTC(),
	})
	if err != nil {
		s.rollback()
		return AddResult{}, err
	}
	s.onUndo("remove position", func() error {
		_, err := e.registry.Remove(id)
		return err
	})
	applied, _, err := ps.ledger.ApplyDeposit(tokenAmount, nativeAmount, e.cfg.DepositRule)
	if err != nil {
		s.rollback()
		return AddResult{}, err
	}
	if !applied.Shares.Eq(dep.Shares) {
		e.logger.Error("deposit minted unexpected shares",
			zap.String("position_id", id.String()),
			zap.String("checked", dep.Shares.Dec()),
			zap.String("applied", applied.Shares.Dec()),
		)
	}

	event := e.emit(ps, model.Event{
		Name:         model.EventAddLiquidity,
		Account:      call.Caller,
		Position:     &id,
		TokenAmount:  new(uint256.Int).Set(dep.Token),
		NativeAmount: new(uint256.Int).Set(dep.Native),
	})
	return AddResult{
		PositionID:   id,
		Shares:       dep.Shares,
		TokenAmount:  new(uint256.Int).Set(dep.Token),
		NativeAmount: new(uint256.Int).Set(dep.Native),
		Event:        event,
	}, nil
}

// RemoveLiquidity withdraws a whole position to its owner and burns it.
func (e *Engine) RemoveLiquidity(ctx context.Context, call Call, id model.PositionID) (RemoveResult, error) {
	res, err := e.removeLiquidity(call, id)
	e.publish(ctx, id.Pool)
	e.metrics.observeLiquidity(id.Pool, "remove", err)
	if err != nil {
		e.logger.Info("remove liquidity rejected",
			zap.String("position_id", id.String()),
			zap.String("caller", call.Caller.Hex()),
			zap.Error(err),
		)
		return RemoveResult{}, err
	}
	e.logger.Debug("liquidity removed",
		zap.String("token", id.Pool.Hex()),
		zap.String("position_id", id.String()),
		zap.String("token_amount", res.TokenAmount.Dec()),
		zap.String("native_amount", res.NativeAmount.Dec()),
	)
	return res, nil
}

func (e *Engine) removeLiquidity(call Call, id model.PositionID) (RemoveResult, error) {
	if !call.value().IsZero() {
		return RemoveResult{}, fmt.Errorf("%w: withdrawal carries native value", model.ErrValueMismatch)
	}
	ps, err := e.pool(id.Pool)
	if err != nil {
		return RemoveResult{}, fmt.Errorf("position %s: %w", id, model.ErrPositionNotFound)
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()

	pos, err := e.registry.Get(id)
	if err != nil {
		return RemoveResult{}, err
	}
	if pos.Owner != call.Caller {
		return RemoveResult{}, fmt.Errorf("position %s: %w", id, model.ErrNotOwner)
	}
	stake := stakeOf(pos)
	tokenOut, nativeOut, err := ps.ledger.Value(stake)
	if err != nil {
		return RemoveResult{}, err
	}

	s := e.settle(ps)
	removed, err := e.registry.RemoveOwned(id, call.Caller)
	if err != nil {
		return RemoveResult{}, err
	}
	s.onUndo("restore position", func() error {
		return e.registry.Restore(removed)
	})
	if err := s.pushToken(removed.Owner, tokenOut); err != nil {
		s.rollback()
		return RemoveResult{}, err
	}
	if err := s.pushNative(removed.Owner, nativeOut); err != nil {
		s.rollback()
		return RemoveResult{}, err
	}
	if _, _, err := ps.ledger.ApplyWithdrawal(stake); err != nil {
		s.rollback()
		return RemoveResult{}, err
	}

	event := e.emit(ps, model.Event{
		Name:         model.EventRemoveLiquidity,
		Account:      removed.Owner,
		Position:     &id,
		TokenAmount:  tokenOut,
		NativeAmount: nativeOut,
	})
	return RemoveResult{
		PositionID:   id,
		Owner:        removed.Owner,
		TokenAmount:  tokenOut,
		NativeAmount: nativeOut,
		Event:        event,
	}, nil
}

// TransferPosition hands a position to a new owner. Only the current owner
// or an approved account may move it. It holds the pool lock, so a
// withdrawal in flight pays and burns for one owner.
func (e *Engine) TransferPosition(call Call, to common.Address, id model.PositionID) error {
	if err := e.transferPosition(call, to, id); err != nil {
		e.logger.Info("position transfer rejected",
			zap.String("position_id", id.String()),
			zap.String("caller", call.Caller.Hex()),
			zap.Error(err),
		)
		return err
	}
	e.logger.Debug("position transferred",
		zap.String("position_id", id.String()),
		zap.String("to", to.Hex()),
	)
	return nil
}

func (e *Engine) transferPosition(call Call, to common.Address, id model.PositionID) error {
	ps, err := e.pool(id.Pool)
	if err != nil {
		return fmt.Errorf("position %s: %w", id, model.ErrPositionNotFound)
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return e.registry.Transfer(call.Caller, to, id)
}

// BalanceOf previews what RemoveLiquidity would pay for a position.
func (e *Engine) BalanceOf(id model.PositionID) (token, native *uint256.Int, err error) {
	ps, err := e.pool(id.Pool)
	if err != nil {
		return nil, nil, model.ErrPositionNotFound
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	pos, err := e.registry.Get(id)
	if err != nil {
		return nil, nil, err
	}
	return ps.ledger.Value(stakeOf(pos))
}

// PoolInfo returns the reserves and price ratio of a pool.
func (e *Engine) PoolInfo(token common.Address) (model.PoolInfo, error) {
	ps, err := e.pool(token)
	if err != nil {
		return model.PoolInfo{}, err
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	tokenReserve, nativeReserve, ratio := ps.ledger.CurrentReserves()
	return model.PoolInfo{
		Token:         token,
		TokenReserve:  tokenReserve,
		NativeReserve: nativeReserve,
		PriceRatio:    ratio,
	}, nil
}

// PositionInfo returns the stored snapshot of a live position.
func (e *Engine) PositionInfo(id model.PositionID) (model.Position, error) {
	return e.registry.Get(id)
}

// Positions lists the live positions of a pool.
func (e *Engine) Positions(token common.Address) ([]model.Position, error) {
	if _, err := e.pool(token); err != nil {
		return nil, err
	}
	return e.registry.List(token)
}

func stakeOf(pos model.Position) ledger.Stake {
	return ledger.Stake{
		Shares:              pos.Shares,
		FeeCheckpointToken:  pos.FeeCheckpointToken,
		FeeCheckpointNative: pos.FeeCheckpointNative,
	}
}
