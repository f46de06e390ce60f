package world

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"positionSwap/internal/engine"
	"positionSwap/internal/model"
	"positionSwap/internal/storage"
)

// Op is one line of a replay script.
type Op struct {
	Op           string `json:"op"`
	Account      string `json:"account,omitempty"`
	Token        string `json:"token,omitempty"`
	To           string `json:"to,omitempty"`
	Spender      string `json:"spender,omitempty"`
	Amount       string `json:"amount,omitempty"`
	TokenAmount  string `json:"token_amount,omitempty"`
	NativeAmount string `json:"native_amount,omitempty"`
	Value        string `json:"value,omitempty"`
	Bound        string `json:"bound,omitempty"`
	Direction    string `json:"direction,omitempty"`
	Kind         string `json:"kind,omitempty"`
	Position     string `json:"position,omitempty"`
	Label        string `json:"label,omitempty"`
	ExpectError  string `json:"expect_error,omitempty"`
}

// Summary counts the outcome of a replay run.
type Summary struct {
	Ops       int
	Committed int
	Expected  int
	Pools     []common.Address
}

// Replayer executes scripts against a World. Positions created with a label
// can later be referenced as "@label".
type Replayer struct {
	world  *World
	labels map[string]model.PositionID
	logger *zap.Logger
}

func NewReplayer(w *World, logger *zap.Logger) *Replayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replayer{world: w, labels: make(map[string]model.PositionID), logger: logger}
}

// Run executes every op of a JSONL script in order and audits every pool
// at the end. An op failing with an error other than its expect_error
// aborts the run.
func (r *Replayer) Run(ctx context.Context, path string) (Summary, error) {
	var summary Summary
	err := storage.ScanJSONL(path, func(lineNo int, line []byte) error {
		var op Op
		if err := json.Unmarshal(line, &op); err != nil {
			return fmt.Errorf("line %d: parse op: %w", lineNo, err)
		}
		summary.Ops++
		committed, err := r.Apply(ctx, op)
		if err != nil {
			return fmt.Errorf("line %d: %s: %w", lineNo, op.Op, err)
		}
		if committed {
			summary.Committed++
		} else {
			summary.Expected++
		}
		return nil
	})
	if err != nil {
		return summary, err
	}

	summary.Pools = r.world.Engine.Pools()
	for _, pool := range summary.Pools {
		if err := r.world.Engine.CheckInvariants(pool); err != nil {
			return summary, fmt.Errorf("audit pool %s: %w", pool.Hex(), err)
		}
	}
	return summary, nil
}

// Apply executes one op. It reports whether the op committed; an op that
// failed with its declared expect_error returns false and no error.
func (r *Replayer) Apply(ctx context.Context, op Op) (bool, error) {
	err := r.apply(ctx, op)
	if op.ExpectError == "" {
		return err == nil, err
	}
	want, ok := model.ErrorForCode(op.ExpectError)
	if !ok {
		return false, fmt.Errorf("unknown expect_error %q", op.ExpectError)
	}
	if err == nil {
		return false, fmt.Errorf("expected %s, operation committed", op.ExpectError)
	}
	if !errors.Is(err, want) {
		return false, fmt.Errorf("expected %s: %w", op.ExpectError, err)
	}
	r.logger.Debug("expected failure", zap.String("op", op.Op), zap.String("code", op.ExpectError))
	return false, nil
}

func (r *Replayer) apply(ctx context.Context, op Op) error {
	switch strings.ToLower(op.Op) {
	case "deploy":
		meta, err := ParseTokenSpec(op.Token)
		if err != nil {
			return err
		}
		_, err = r.world.DeployToken(meta)
		return err
	case "fund":
		return r.fund(op)
	case "approve":
		return r.approve(op)
	case "add_liquidity":
		return r.addLiquidity(ctx, op)
	case "swap_to_token", "swap_to_eth", "swap":
		return r.swap(ctx, op)
	case "remove_liquidity":
		return r.removeLiquidity(ctx, op)
	case "transfer_position":
		return r.transferPosition(op)
	case "check":
		tok, err := r.world.Token(op.Token)
		if err != nil {
			return err
		}
		return r.world.Engine.CheckInvariants(tok.Address())
	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
}

func (r *Replayer) fund(op Op) error {
	account, err := ParseAccount(op.Account)
	if err != nil {
		return err
	}
	nativeAmount, err := model.ParseAmount(op.NativeAmount)
	if err != nil {
		return err
	}
	tokenAmount, err := model.ParseAmount(op.TokenAmount)
	if err != nil {
		return err
	}
	if op.Token == "" {
		if !tokenAmount.IsZero() {
			return fmt.Errorf("token_amount without token")
		}
		r.world.Fund(account, nil, nil, nativeAmount)
		return nil
	}
	tok, err := r.world.Token(op.Token)
	if err != nil {
		return err
	}
	r.world.Fund(account, tok, tokenAmount, nativeAmount)
	return nil
}

func (r *Replayer) approve(op Op) error {
	account, err := ParseAccount(op.Account)
	if err != nil {
		return err
	}
	tok, err := r.world.Token(op.Token)
	if err != nil {
		return err
	}
	spender := r.world.Engine.Address()
	if op.Spender != "" {
		if spender, err = ParseAccount(op.Spender); err != nil {
			return err
		}
	}
	amount := new(uint256.Int).SetAllOne()
	if op.Amount != "" {
		if amount, err = model.ParseAmount(op.Amount); err != nil {
			return err
		}
	}
	tok.Approve(account, spender, amount)
	return nil
}

func (r *Replayer) addLiquidity(ctx context.Context, op Op) error {
	call, tok, err := r.call(op)
	if err != nil {
		return err
	}
	tokenAmount, err := model.ParseAmount(op.TokenAmount)
	if err != nil {
		return err
	}
	nativeAmount, err := model.ParseAmount(op.NativeAmount)
	if err != nil {
		return err
	}
	if op.Value == "" {
		call.Value = nativeAmount
	}
	res, err := r.world.Engine.AddLiquidity(ctx, call, tok, tokenAmount, nativeAmount)
	if err != nil {
		return err
	}
	if op.Label != "" {
		r.labels[op.Label] = res.PositionID
	}
	return nil
}

func (r *Replayer) swap(ctx context.Context, op Op) error {
	call, tok, err := r.call(op)
	if err != nil {
		return err
	}
	amount, err := model.ParseAmount(op.Amount)
	if err != nil {
		return err
	}
	var bound *uint256.Int
	if op.Bound != "" {
		if bound, err = model.ParseAmount(op.Bound); err != nil {
			return err
		}
	}

	req := engine.SwapRequest{Token: tok, Amount: amount, Bound: bound}
	switch strings.ToLower(op.Op) {
	case "swap_to_token":
		req.Direction, req.Kind = engine.BuyToken, engine.ExactOutput
		if op.Value == "" {
			price, err := r.world.Engine.PriceOfToken(tok, amount)
			if err != nil {
				return err
			}
			call.Value = price
		}
	case "swap_to_eth":
		req.Direction, req.Kind = engine.SellToken, engine.ExactInput
	default:
		if req.Direction, err = engine.ParseDirection(op.Direction); err != nil {
			return err
		}
		if req.Kind, err = engine.ParseKind(op.Kind); err != nil {
			return err
		}
		if req.Direction == engine.BuyToken && op.Value == "" {
			in, _, err := r.world.Engine.Quote(req)
			if err != nil {
				return err
			}
			call.Value = in
		}
	}
	_, err = r.world.Engine.Swap(ctx, call, req)
	return err
}

func (r *Replayer) removeLiquidity(ctx context.Context, op Op) error {
	caller, err := ParseAccount(op.Account)
	if err != nil {
		return err
	}
	id, err := r.positionID(op.Position)
	if err != nil {
		return err
	}
	value, err := model.ParseAmount(op.Value)
	if err != nil {
		return err
	}
	_, err = r.world.Engine.RemoveLiquidity(ctx, engine.Call{Caller: caller, Value: value}, id)
	return err
}

func (r *Replayer) transferPosition(op Op) error {
	caller, err := ParseAccount(op.Account)
	if err != nil {
		return err
	}
	to, err := ParseAccount(op.To)
	if err != nil {
		return err
	}
	id, err := r.positionID(op.Position)
	if err != nil {
		return err
	}
	return r.world.Engine.TransferPosition(engine.Call{Caller: caller}, to, id)
}

func (r *Replayer) call(op Op) (engine.Call, common.Address, error) {
	caller, err := ParseAccount(op.Account)
	if err != nil {
		return engine.Call{}, common.Address{}, err
	}
	tok, err := r.world.Token(op.Token)
	if err != nil {
		return engine.Call{}, common.Address{}, err
	}
	value, err := model.ParseAmount(op.Value)
	if err != nil {
		return engine.Call{}, common.Address{}, err
	}
	return engine.Call{Caller: caller, Value: value}, tok.Address(), nil
}

func (r *Replayer) positionID(ref string) (model.PositionID, error) {
	if label, ok := strings.CutPrefix(ref, "@"); ok {
		id, found := r.labels[label]
		if !found {
			return model.PositionID{}, fmt.Errorf("position label %q: %w", label, model.ErrPositionNotFound)
		}
		return id, nil
	}
	return model.ParsePositionID(ref)
}
