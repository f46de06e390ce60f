// Package engine runs swaps and liquidity operations against the pools.
//
// Each pool is owned by a poolState whose mutex covers the whole
// quote, validate, transfer and commit sequence of an operation. Operations
// on different pools run in parallel. Committed events are queued under the
// pool mutex and handed to the sinks after it is released.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"positionSwap/internal/ledger"
	"positionSwap/internal/model"
	"positionSwap/internal/position"
)

// Token is the fungible asset a pool trades. Senders are explicit because
// collaborators live in the same process.
type Token interface {
	Transfer(from, to common.Address, amount *uint256.Int) bool
	TransferFrom(spender, from, to common.Address, amount *uint256.Int) bool
	Approve(owner, spender common.Address, amount *uint256.Int) bool
	BalanceOf(account common.Address) *uint256.Int
}

// NativeBank moves the native currency.
type NativeBank interface {
	Transfer(from, to common.Address, amount *uint256.Int) bool
	BalanceOf(account common.Address) *uint256.Int
}

// EventSink receives every committed event.
type EventSink interface {
	Publish(ctx context.Context, event model.Event) error
}

// Call carries the caller of an operation and the native value attached
// to it.
type Call struct {
	Caller common.Address
	Value  *uint256.Int
}

func (c Call) value() *uint256.Int {
	if c.Value == nil {
		return new(uint256.Int)
	}
	return c.Value
}

// Config holds engine settings.
type Config struct {
	// Address is the custody account holding every pool's assets.
	Address     common.Address
	DepositRule ledger.DepositRule
	Now         func() time.Time
}

// Engine is the entry point for pool operations.
type Engine struct {
	cfg      Config
	native   NativeBank
	registry *position.Registry
	metrics  *Metrics
	logger   *zap.Logger

	mu    sync.RWMutex
	pools map[common.Address]*poolState
	sinks []EventSink

	eventSeq atomic.Uint64
}

type poolState struct {
	mu     sync.Mutex
	token  common.Address
	asset  Token
	ledger *ledger.Pool

	// outbox is appended under mu and drained under publishMu, so sinks
	// see a pool's events in commit order without blocking the pool.
	outboxMu  sync.Mutex
	outbox    []model.Event
	publishMu sync.Mutex
}

// New builds an Engine. metrics may be nil.
func New(cfg Config, native NativeBank, registry *position.Registry, metrics *Metrics, logger *zap.Logger) (*Engine, error) {
	if native == nil {
		return nil, fmt.Errorf("native bank is nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("position registry is nil")
	}
	if cfg.Address == (common.Address{}) {
		return nil, fmt.Errorf("engine address is required")
	}
	if cfg.DepositRule.Policy == "" {
		cfg.DepositRule.Policy = ledger.PolicyOpen
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:      cfg,
		native:   native,
		registry: registry,
		metrics:  metrics,
		logger:   logger,
		pools:    make(map[common.Address]*poolState),
	}, nil
}

// Address returns the custody account.
func (e *Engine) Address() common.Address {
	return e.cfg.Address
}

// AddSink registers a sink for committed events.
func (e *Engine) AddSink(sink EventSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, sink)
}

// CreatePool opens an empty pool for token.
func (e *Engine) CreatePool(token common.Address, asset Token) error {
	if asset == nil {
		return fmt.Errorf("create pool %s: token is nil", token.Hex())
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.pools[token]; ok {
		return fmt.Errorf("create pool %s: %w", token.Hex(), model.ErrPoolExists)
	}
	e.pools[token] = &poolState{token: token, asset: asset, ledger: ledger.NewPool()}
	e.logger.Info("pool created", zap.String("token", token.Hex()))
	return nil
}

// Pools returns the tokens with a pool, ordered by address.
func (e *Engine) Pools() []common.Address {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]common.Address, 0, len(e.pools))
	for token := range e.pools {
		out = append(out, token)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

func (e *Engine) pool(token common.Address) (*poolState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ps, ok := e.pools[token]
	if !ok {
		return nil, fmt.Errorf("pool %s: %w", token.Hex(), model.ErrPoolNotFound)
	}
	return ps, nil
}

// emit stamps the next event sequence and queues the event for publish.
// It runs under the pool lock so per-pool events keep commit order.
func (e *Engine) emit(ps *poolState, event model.Event) model.Event {
	event.Seq = e.eventSeq.Add(1)
	event.Token = ps.token
	event.Time = e.cfg.Now().UTC()
	event.TokenReserve, event.NativeReserve, event.PriceRatio = ps.ledger.CurrentReserves()

	ps.outboxMu.Lock()
	ps.outbox = append(ps.outbox, event)
	ps.outboxMu.Unlock()
	e.metrics.observePool(ps.token, event.TokenReserve, event.NativeReserve, e.registry.Count(ps.token))
	return event
}

// publish hands the queued events of token's pool to the sinks. It must be
// called without the pool lock held.
func (e *Engine) publish(ctx context.Context, token common.Address) {
	ps, err := e.pool(token)
	if err != nil {
		return
	}
	ps.publishMu.Lock()
	defer ps.publishMu.Unlock()

	ps.outboxMu.Lock()
	pending := ps.outbox
	ps.outbox = nil
	ps.outboxMu.Unlock()
	if len(pending) == 0 {
		return
	}

	e.mu.RLock()
	sinks := append([]EventSink(nil), e.sinks...)
	e.mu.RUnlock()
	for _, event := range pending {
		for _, sink := range sinks {
			if err := sink.Publish(ctx, event); err != nil {
				e.logger.Warn("publish event failed",
					zap.String("event", event.Name),
					zap.Uint64("seq", event.Seq),
					zap.Error(err),
				)
			}
		}
	}
}
