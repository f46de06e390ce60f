package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"positionSwap/internal/model"
	"positionSwap/internal/quote"
)

// Direction is the side of a trade seen from the trader.
type Direction uint8

const (
	// BuyToken pays native and receives token.
	BuyToken Direction = iota
	// SellToken pays token and receives native.
	SellToken
)

func (d Direction) String() string {
	if d == SellToken {
		return "sell_token"
	}
	return "buy_token"
}

func (d Direction) input() model.Asset {
	if d == SellToken {
		return model.AssetToken
	}
	return model.AssetNative
}

// ParseDirection accepts buy_token or sell_token.
func ParseDirection(value string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "buy_token", "buy", "to_token":
		return BuyToken, nil
	case "sell_token", "sell", "to_eth":
		return SellToken, nil
	default:
		return 0, fmt.Errorf("unknown swap direction %q", value)
	}
}

// Kind selects which side of the trade is fixed.
type Kind uint8

const (
	// ExactInput fixes the input; the bound is the minimum output.
	ExactInput Kind = iota
	// ExactOutput fixes the output; the bound is the maximum input.
	ExactOutput
)

func (k Kind) String() string {
	if k == ExactOutput {
		return "exact_output"
	}
	return "exact_input"
}

// ParseKind accepts exact_input or exact_output.
func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "exact_input", "exact_in":
		return ExactInput, nil
	case "exact_output", "exact_out":
		return ExactOutput, nil
	default:
		return 0, fmt.Errorf("unknown swap kind %q", value)
	}
}

// SwapRequest describes a trade. A nil or zero Bound disables the
// slippage check; native input is still capped by the attached value.
type SwapRequest struct {
	Token     common.Address
	Direction Direction
	Kind      Kind
	Amount    *uint256.Int
	Bound     *uint256.Int
}

// SwapResult is a committed trade.
type SwapResult struct {
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
	Fee       *uint256.Int
	Event     model.Event
}

// SwapToToken buys exactly tokenOut, paying at most maxNativeIn and at most
// the attached value.
func (e *Engine) SwapToToken(ctx context.Context, call Call, token common.Address, tokenOut, maxNativeIn *uint256.Int) (SwapResult, error) {
	return e.Swap(ctx, call, SwapRequest{
		Token:     token,
		Direction: BuyToken,
		Kind:      ExactOutput,
		Amount:    tokenOut,
		Bound:     maxNativeIn,
	})
}

// SwapToEth sells exactly tokenIn for at least minNativeOut.
func (e *Engine) SwapToEth(ctx context.Context, call Call, token common.Address, tokenIn, minNativeOut *uint256.Int) (SwapResult, error) {
	return e.Swap(ctx, call, SwapRequest{
		Token:     token,
		Direction: SellToken,
		Kind:      ExactInput,
		Amount:    tokenIn,
		Bound:     minNativeOut,
	})
}

// Swap executes a trade as one atomic step under the pool lock.
func (e *Engine) Swap(ctx context.Context, call Call, req SwapRequest) (SwapResult, error) {
	start := time.Now()
	res, err := e.swap(call, req)
	e.publish(ctx, req.Token)
	e.metrics.observeSwap(req.Token, req.Direction, err, time.Since(start))
	if err != nil {
		e.logger.Info("swap rejected",
			zap.String("token", req.Token.Hex()),
			zap.String("trader", call.Caller.Hex()),
			zap.String("direction", req.Direction.String()),
			zap.String("kind", req.Kind.String()),
			zap.String("amount", model.FormatAmount(req.Amount)),
			zap.Error(err),
		)
		return SwapResult{}, err
	}
	e.metrics.observeFee(req.Token, req.Direction.input(), res.Fee)
	e.logger.Debug("swap committed",
		zap.String("token", req.Token.Hex()),
		zap.String("trader", call.Caller.Hex()),
		zap.String("direction", req.Direction.String()),
		zap.String("amount_in", res.AmountIn.Dec()),
		zap.String("amount_out", res.AmountOut.Dec()),
		zap.String("fee", res.Fee.Dec()),
	)
	return res, nil
}

func (e *Engine) swap(call Call, req SwapRequest) (SwapResult, error) {
	if req.Amount == nil || req.Amount.IsZero() {
		return SwapResult{}, model.ErrZeroAmount
	}
	if req.Direction == SellToken && !call.value().IsZero() {
		return SwapResult{}, fmt.Errorf("%w: token sale carries native value", model.ErrValueMismatch)
	}
	ps, err := e.pool(req.Token)
	if err != nil {
		return SwapResult{}, err
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()

	in := req.Direction.input()
	reserves := ps.ledger.Reserves()
	reserveIn, reserveOut := reserves.Token, reserves.Native
	if in == model.AssetNative {
		reserveIn, reserveOut = reserves.Native, reserves.Token
	}
	bounded := req.Bound != nil && !req.Bound.IsZero()

	var amountIn, amountOut *uint256.Int
	switch req.Kind {
	case ExactInput:
		amountIn = req.Amount
		amountOut, err = quote.AmountOutGivenIn(reserveOut, reserveIn, amountIn)
		if err != nil {
			return SwapResult{}, err
		}
		if amountOut.IsZero() {
			return SwapResult{}, fmt.Errorf("%w: output rounds to zero", model.ErrInsufficientLiquidity)
		}
		if bounded && amountOut.Lt(req.Bound) {
			return SwapResult{}, fmt.Errorf("%w: output %s below minimum %s", model.ErrSlippageExceeded, amountOut.Dec(), req.Bound.Dec())
		}
		if in == model.AssetNative && amountIn.Gt(call.value()) {
			return SwapResult{}, fmt.Errorf("%w: input %s exceeds attached %s", model.ErrValueMismatch, amountIn.Dec(), call.value().Dec())
		}
	case ExactOutput:
		amountOut = req.Amount
		amountIn, err = quote.AmountInGivenOut(reserveOut, reserveIn, amountOut)
		if err != nil {
			return SwapResult{}, err
		}
		if bounded && amountIn.Gt(req.Bound) {
			return SwapResult{}, fmt.Errorf("%w: input %s above maximum %s", model.ErrSlippageExceeded, amountIn.Dec(), req.Bound.Dec())
		}
		if in == model.AssetNative && amountIn.Gt(call.value()) {
			return SwapResult{}, fmt.Errorf("%w: input %s exceeds attached %s", model.ErrValueMismatch, amountIn.Dec(), call.value().Dec())
		}
	default:
		return SwapResult{}, fmt.Errorf("unknown swap kind %d", req.Kind)
	}

	if _, err := ps.ledger.CheckTrade(in, amountIn, amountOut); err != nil {
		return SwapResult{}, err
	}

	s := e.settle(ps)
	if in == model.AssetNative {
		err = s.pullNative(call.Caller, amountIn)
		if err == nil {
			err = s.pushToken(call.Caller, amountOut)
		}
	} else {
		err = s.pullToken(call.Caller, amountIn)
		if err == nil {
			err = s.pushNative(call.Caller, amountOut)
		}
	}
	if err != nil {
		s.rollback()
		return SwapResult{}, err
	}
	fee, err := ps.ledger.ApplyTrade(in, amountIn, amountOut)
	if err != nil {
		s.rollback()
		return SwapResult{}, err
	}

	event := model.Event{
		Name:    model.EventSwapToToken,
		Account: call.Caller,
		Fee:     fee,
	}
	if in == model.AssetNative {
		event.NativeAmount, event.TokenAmount = new(uint256.Int).Set(amountIn), new(uint256.Int).Set(amountOut)
	} else {
		event.Name = model.EventSwapToEth
		event.TokenAmount, event.NativeAmount = new(uint256.Int).Set(amountIn), new(uint256.Int).Set(amountOut)
	}
	event = e.emit(ps, event)
	return SwapResult{
		AmountIn:  new(uint256.Int).Set(amountIn),
		AmountOut: new(uint256.Int).Set(amountOut),
		Fee:       fee,
		Event:     event,
	}, nil
}

// PriceOfToken quotes the native input needed to receive tokenOut.
func (e *Engine) PriceOfToken(token common.Address, tokenOut *uint256.Int) (*uint256.Int, error) {
	ps, err := e.pool(token)
	if err != nil {
		return nil, err
	}
	ps.mu.Lock()
	reserves := ps.ledger.Reserves()
	ps.mu.Unlock()
	return quote.PriceOfToken(reserves, tokenOut)
}

// PriceOfEth quotes the token input needed to receive nativeOut.
func (e *Engine) PriceOfEth(token common.Address, nativeOut *uint256.Int) (*uint256.Int, error) {
	ps, err := e.pool(token)
	if err != nil {
		return nil, err
	}
	ps.mu.Lock()
	reserves := ps.ledger.Reserves()
	ps.mu.Unlock()
	return quote.PriceOfEth(reserves, nativeOut)
}

// Quote prices a request against the current reserves without executing
// it. It returns the input and output amounts.
func (e *Engine) Quote(req SwapRequest) (amountIn, amountOut *uint256.Int, err error) {
	ps, err := e.pool(req.Token)
	if err != nil {
		return nil, nil, err
	}
	ps.mu.Lock()
	reserves := ps.ledger.Reserves()
	ps.mu.Unlock()

	reserveIn, reserveOut := reserves.Token, reserves.Native
	if req.Direction.input() == model.AssetNative {
		reserveIn, reserveOut = reserves.Native, reserves.Token
	}
	if req.Kind == ExactOutput {
		amountIn, err = quote.AmountInGivenOut(reserveOut, reserveIn, req.Amount)
		return amountIn, req.Amount, err
	}
	amountOut, err = quote.AmountOutGivenIn(reserveOut, reserveIn, req.Amount)
	return req.Amount, amountOut, err
}
