package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"positionSwap/internal/model"
)

type undoStep struct {
	name string
	fn   func() error
}

// settlement moves assets for one operation and remembers how to reverse
// each completed step.
type settlement struct {
	self   common.Address
	token  common.Address
	asset  Token
	native NativeBank
	logger *zap.Logger
	undo   []undoStep
}

func (e *Engine) settle(ps *poolState) *settlement {
	return &settlement{
		self:   e.cfg.Address,
		token:  ps.token,
		asset:  ps.asset,
		native: e.native,
		logger: e.logger,
	}
}

func (s *settlement) pullToken(from common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if !s.asset.TransferFrom(s.self, from, s.self, amount) {
		return fmt.Errorf("pull %s token from %s: %w", amount.Dec(), from.Hex(), model.ErrTransferFailed)
	}
	s.onUndo("return pulled token", func() error {
		return s.transferToken(s.self, from, amount)
	})
	return nil
}

func (s *settlement) pushToken(to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := s.transferToken(s.self, to, amount); err != nil {
		return fmt.Errorf("push token to %s: %w", to.Hex(), err)
	}
	s.onUndo("reclaim pushed token", func() error {
		return s.transferToken(to, s.self, amount)
	})
	return nil
}

func (s *settlement) pullNative(from common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := s.transferNative(from, s.self, amount); err != nil {
		return fmt.Errorf("pull native from %s: %w", from.Hex(), err)
	}
	s.onUndo("return pulled native", func() error {
		return s.transferNative(s.self, from, amount)
	})
	return nil
}

func (s *settlement) pushNative(to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := s.transferNative(s.self, to, amount); err != nil {
		return fmt.Errorf("push native to %s: %w", to.Hex(), err)
	}
	s.onUndo("reclaim pushed native", func() error {
		return s.transferNative(to, s.self, amount)
	})
	return nil
}

func (s *settlement) transferToken(from, to common.Address, amount *uint256.Int) error {
	if !s.asset.Transfer(from, to, amount) {
		return fmt.Errorf("%s token: %w", amount.Dec(), model.ErrTransferFailed)
	}
	return nil
}

func (s *settlement) transferNative(from, to common.Address, amount *uint256.Int) error {
	if !s.native.Transfer(from, to, amount) {
		return fmt.Errorf("%s native: %w", amount.Dec(), model.ErrTransferFailed)
	}
	return nil
}

func (s *settlement) onUndo(name string, fn func() error) {
	s.undo = append(s.undo, undoStep{name: name, fn: fn})
}

// rollback reverses completed steps, newest first.
func (s *settlement) rollback() {
	for i := len(s.undo) - 1; i >= 0; i-- {
		step := s.undo[i]
		if err := step.fn(); err != nil {
			s.logger.Error("settlement rollback failed",
				zap.String("token", s.token.Hex()),
				zap.String("step", step.name),
				zap.Error(err),
			)
		}
	}
	s.undo = nil
}
