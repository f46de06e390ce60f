package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"positionSwap/internal/model"
	"positionSwap/internal/position"
	"positionSwap/internal/token"
)

var (
	engineAddr = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	tokenAddr  = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	provider   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	trader     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	other      = common.HexToAddress("0x00000000000000000000000000000000000000c3")

	oneE18 = uint256.NewInt(1_000_000_000_000_000_000)
	twoE18 = uint256.NewInt(2_000_000_000_000_000_000)
	fivE17 = uint256.NewInt(500_000_000_000_000_000)
	ofiE18 = uint256.NewInt(1_500_000_000_000_000_000)
	sevE17 = uint256.NewInt(700_000_000_000_000_000)
)

type recordingSink struct {
	mu     sync.Mutex
	events []model.Event
}

func (s *recordingSink) Publish(_ context.Context, event model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *recordingSink) last() model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

type world struct {
	eng  *Engine
	tok  *token.ERC20
	bank *token.Bank
	nft  *position.MemoryNFT
	sink *recordingSink
}

func newWorld(t *testing.T) *world {
	t.Helper()
	bank := token.NewBank()
	nft := position.NewMemoryNFT()
	registry, err := position.NewRegistry(nft, engineAddr)
	require.NoError(t, err)
	eng, err := New(Config{Address: engineAddr}, bank, registry, NewMetrics(prometheus.NewRegistry()), nil)
	require.NoError(t, err)
	tok := token.NewERC20(model.TokenMeta{Address: tokenAddr, Symbol: "TGT", Decimals: 18})
	require.NoError(t, eng.CreatePool(tokenAddr, tok))
	sink := &recordingSink{}
	eng.AddSink(sink)
	return &world{eng: eng, tok: tok, bank: bank, nft: nft, sink: sink}
}

func (w *world) fund(account common.Address, tokenAmount, nativeAmount *uint256.Int) {
	w.tok.Mint(account, tokenAmount)
	w.bank.Fund(account, nativeAmount)
	w.tok.Approve(account, engineAddr, new(uint256.Int).SetAllOne())
}

func (w *world) addLiquidity(t *testing.T, account common.Address, tokenAmount, nativeAmount *uint256.Int) model.PositionID {
	t.Helper()
	w.fund(account, tokenAmount, nativeAmount)
	res, err := w.eng.AddLiquidity(context.Background(), Call{Caller: account, Value: nativeAmount}, tokenAddr, tokenAmount, nativeAmount)
	require.NoError(t, err)
	return res.PositionID
}

func (w *world) swapToToken(t *testing.T, account common.Address, tokenOut *uint256.Int) *uint256.Int {
	t.Helper()
	price, err := w.eng.PriceOfToken(tokenAddr, tokenOut)
	require.NoError(t, err)
	w.bank.Fund(account, price)

	tokenBefore, nativeBefore := w.tok.BalanceOf(account), w.bank.BalanceOf(account)
	res, err := w.eng.SwapToToken(context.Background(), Call{Caller: account, Value: price}, tokenAddr, tokenOut, nil)
	require.NoError(t, err)
	require.Equal(t, price.Dec(), res.AmountIn.Dec())

	gained := new(uint256.Int).Sub(w.tok.BalanceOf(account), tokenBefore)
	spent := new(uint256.Int).Sub(nativeBefore, w.bank.BalanceOf(account))
	require.Equal(t, tokenOut.Dec(), gained.Dec())
	require.Equal(t, price.Dec(), spent.Dec())
	return price
}

func (w *world) swapToEth(t *testing.T, account common.Address, nativeOut *uint256.Int) *uint256.Int {
	t.Helper()
	price, err := w.eng.PriceOfEth(tokenAddr, nativeOut)
	require.NoError(t, err)
	w.fund(account, price, new(uint256.Int))

	nativeBefore := w.bank.BalanceOf(account)
	res, err := w.eng.SwapToEth(context.Background(), Call{Caller: account}, tokenAddr, price, nativeOut)
	require.NoError(t, err)
	received := new(uint256.Int).Sub(w.bank.BalanceOf(account), nativeBefore)
	require.False(t, received.Lt(nativeOut))
	require.Equal(t, res.AmountOut.Dec(), received.Dec())
	return price
}

// gap returns reserve minus the summed claims of ids for both assets.
func (w *world) gap(t *testing.T, ids ...model.PositionID) (tokenGap, nativeGap *uint256.Int) {
	t.Helper()
	info, err := w.eng.PoolInfo(tokenAddr)
	require.NoError(t, err)
	sumToken, sumNative := new(uint256.Int), new(uint256.Int)
	for _, id := range ids {
		tok, native, err := w.eng.BalanceOf(id)
		require.NoError(t, err)
		sumToken.Add(sumToken, tok)
		sumNative.Add(sumNative, native)
	}
	require.False(t, sumToken.Gt(info.TokenReserve), "token claims exceed reserve")
	require.False(t, sumNative.Gt(info.NativeReserve), "native claims exceed reserve")
	return new(uint256.Int).Sub(info.TokenReserve, sumToken), new(uint256.Int).Sub(info.NativeReserve, sumNative)
}

func requireAtMost(t *testing.T, v *uint256.Int, limit uint64) {
	t.Helper()
	require.Falsef(t, v.Gt(uint256.NewInt(limit)), "%s above %d", v.Dec(), limit)
}

func TestFirstDepositSetsPoolInfo(t *testing.T) {
	w := newWorld(t)
	id := w.addLiquidity(t, provider, twoE18, oneE18)

	info, err := w.eng.PoolInfo(tokenAddr)
	require.NoError(t, err)
	require.Equal(t, twoE18.Dec(), info.TokenReserve.Dec())
	require.Equal(t, oneE18.Dec(), info.NativeReserve.Dec())
	require.Equal(t, "2000000000000", info.PriceRatio.Dec())

	want := new(uint256.Int).Lsh(new(uint256.Int).SetBytes(tokenAddr.Bytes()), 96)
	require.Equal(t, want.Dec(), id.String())

	pos, err := w.eng.PositionInfo(id)
	require.NoError(t, err)
	require.Equal(t, provider, pos.Owner)
	require.Equal(t, new(uint256.Int).Mul(twoE18, oneE18).Dec(), pos.Liquidity.Dec())
	require.True(t, pos.FeeCheckpointToken.IsZero())

	tok, native, err := w.eng.BalanceOf(id)
	require.NoError(t, err)
	require.Equal(t, twoE18.Dec(), tok.Dec())
	require.Equal(t, oneE18.Dec(), native.Dec())

	owner, err := w.nft.OwnerOf(id.Uint256())
	require.NoError(t, err)
	require.Equal(t, provider, owner)

	ev := w.sink.last()
	require.Equal(t, model.EventAddLiquidity, ev.Name)
	require.Equal(t, id, *ev.Position)
	require.Equal(t, twoE18.Dec(), ev.TokenAmount.Dec())
}

func TestBuyTokensAgainstSolePosition(t *testing.T) {
	w := newWorld(t)
	id := w.addLiquidity(t, provider, twoE18, oneE18)

	price := w.swapToToken(t, trader, fivE17)
	require.Equal(t, fivE17.Dec(), price.Dec())

	tokenGap, nativeGap := w.gap(t, id)
	requireAtMost(t, tokenGap, 1_500_001)
	requireAtMost(t, nativeGap, 1_500_001)

	ev := w.sink.last()
	require.Equal(t, model.EventSwapToToken, ev.Name)
	require.Equal(t, trader, ev.Account)
	require.Equal(t, fivE17.Dec(), ev.NativeAmount.Dec())
	require.Equal(t, fivE17.Dec(), ev.TokenAmount.Dec())
	require.Equal(t, "1000000000000", ev.PriceRatio.Dec())
	require.Equal(t, "166666666666666666", ev.Fee.Dec())
	require.NoError(t, w.eng.CheckInvariants(tokenAddr))
}

func TestWithdrawSolePositionEmptiesPool(t *testing.T) {
	w := newWorld(t)
	id := w.addLiquidity(t, provider, twoE18, oneE18)

	res, err := w.eng.RemoveLiquidity(context.Background(), Call{Caller: provider}, id)
	require.NoError(t, err)
	require.Equal(t, twoE18.Dec(), res.TokenAmount.Dec())
	require.Equal(t, oneE18.Dec(), res.NativeAmount.Dec())

	info, err := w.eng.PoolInfo(tokenAddr)
	require.NoError(t, err)
	require.True(t, info.TokenReserve.IsZero())
	require.True(t, info.NativeReserve.IsZero())
	require.True(t, info.PriceRatio.IsZero())

	require.Equal(t, twoE18.Dec(), w.tok.BalanceOf(provider).Dec())
	require.Equal(t, oneE18.Dec(), w.bank.BalanceOf(provider).Dec())

	_, _, err = w.eng.BalanceOf(id)
	require.ErrorIs(t, err, model.ErrPositionNotFound)
	_, err = w.eng.RemoveLiquidity(context.Background(), Call{Caller: provider}, id)
	require.ErrorIs(t, err, model.ErrPositionNotFound)
	_, err = w.nft.OwnerOf(id.Uint256())
	require.ErrorIs(t, err, model.ErrPositionNotFound)

	ev := w.sink.last()
	require.Equal(t, model.EventRemoveLiquidity, ev.Name)
	require.Equal(t, id, *ev.Position)
	require.NoError(t, w.eng.CheckInvariants(tokenAddr))
}

func TestTwoPositionsDifferentRatiosReconcile(t *testing.T) {
	w := newWorld(t)
	first := w.addLiquidity(t, provider, twoE18, oneE18)
	second := w.addLiquidity(t, other, oneE18, oneE18)
	require.Equal(t, uint64(1), second.Seq)

	w.swapToToken(t, trader, fivE17)
	w.swapToEth(t, trader, uint256.NewInt(300_000_000_000_000_000))
	w.swapToToken(t, trader, uint256.NewInt(100_000_000_000_000_000))
	w.swapToEth(t, trader, uint256.NewInt(50_000_000_000_000_000))

	tokenGap, nativeGap := w.gap(t, first, second)
	requireAtMost(t, tokenGap, 1_500_001)
	requireAtMost(t, nativeGap, 1_500_001)
	require.NoError(t, w.eng.CheckInvariants(tokenAddr))

	before, err := w.eng.PoolInfo(tokenAddr)
	require.NoError(t, err)
	a, err := w.eng.RemoveLiquidity(context.Background(), Call{Caller: provider}, first)
	require.NoError(t, err)
	b, err := w.eng.RemoveLiquidity(context.Background(), Call{Caller: other}, second)
	require.NoError(t, err)

	require.Equal(t, before.TokenReserve.Dec(), new(uint256.Int).Add(a.TokenAmount, b.TokenAmount).Dec())
	require.Equal(t, before.NativeReserve.Dec(), new(uint256.Int).Add(a.NativeAmount, b.NativeAmount).Dec())

	after, err := w.eng.PoolInfo(tokenAddr)
	require.NoError(t, err)
	require.True(t, after.TokenReserve.IsZero())
	require.True(t, after.NativeReserve.IsZero())
	require.True(t, w.tok.BalanceOf(engineAddr).IsZero())
	require.True(t, w.bank.BalanceOf(engineAddr).IsZero())
}

func TestMultiTradeSequences(t *testing.T) {
	cases := []struct {
		name      string
		buys      []*uint256.Int
		sells     []*uint256.Int
		nativeEps uint64
	}{
		{"small buy", []*uint256.Int{fivE17, uint256.NewInt(500)}, nil, 1_500_001},
		{"large buy", []*uint256.Int{fivE17, uint256.NewInt(500), sevE17}, nil, 12_000_001},
		{"buy then sell", []*uint256.Int{fivE17, uint256.NewInt(500), sevE17}, []*uint256.Int{fivE17}, 12_000_001},
		{"buy then two sells", []*uint256.Int{fivE17, uint256.NewInt(500), sevE17}, []*uint256.Int{fivE17, oneE18}, 12_000_001},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := newWorld(t)
			id := w.addLiquidity(t, provider, twoE18, oneE18)
			for _, amount := range tc.buys {
				w.swapToToken(t, trader, amount)
			}
			for _, amount := range tc.sells {
				w.swapToEth(t, trader, amount)
			}
			tokenGap, nativeGap := w.gap(t, id)
			requireAtMost(t, tokenGap, 1_500_001)
			requireAtMost(t, nativeGap, tc.nativeEps)
			require.NoError(t, w.eng.CheckInvariants(tokenAddr))
		})
	}
}

func TestLateDepositAfterTrade(t *testing.T) {
	w := newWorld(t)
	first := w.addLiquidity(t, provider, twoE18, oneE18)
	w.swapToToken(t, trader, fivE17)
	second := w.addLiquidity(t, other, ofiE18, ofiE18)

	tokenGap, nativeGap := w.gap(t, first, second)
	requireAtMost(t, tokenGap, 1_500_001)
	requireAtMost(t, nativeGap, 1_500_001)

	// The late position does not share fees earned before it existed.
	_, lateNative, err := w.eng.BalanceOf(second)
	require.NoError(t, err)
	require.False(t, lateNative.Gt(ofiE18))
}

func TestSwapSlippageBounds(t *testing.T) {
	w := newWorld(t)
	w.addLiquidity(t, provider, twoE18, oneE18)
	w.bank.Fund(trader, oneE18)
	events := w.sink.len()

	_, err := w.eng.SwapToToken(context.Background(), Call{Caller: trader, Value: oneE18}, tokenAddr, fivE17, uint256.NewInt(1))
	require.ErrorIs(t, err, model.ErrSlippageExceeded)

	_, err = w.eng.SwapToToken(context.Background(), Call{Caller: trader, Value: uint256.NewInt(10)}, tokenAddr, fivE17, nil)
	require.ErrorIs(t, err, model.ErrValueMismatch)

	w.fund(trader, oneE18, new(uint256.Int))
	_, err = w.eng.SwapToEth(context.Background(), Call{Caller: trader}, tokenAddr, uint256.NewInt(1000), oneE18)
	require.ErrorIs(t, err, model.ErrSlippageExceeded)

	_, err = w.eng.SwapToToken(context.Background(), Call{Caller: trader, Value: oneE18}, tokenAddr, oneE18, nil)
	require.ErrorIs(t, err, model.ErrInsufficientLiquidity)

	require.Equal(t, events, w.sink.len())
	require.Equal(t, oneE18.Dec(), w.bank.BalanceOf(trader).Dec())
}

func TestSwapExactInputBuy(t *testing.T) {
	w := newWorld(t)
	w.addLiquidity(t, provider, twoE18, oneE18)
	w.bank.Fund(trader, fivE17)

	res, err := w.eng.Swap(context.Background(), Call{Caller: trader, Value: fivE17}, SwapRequest{
		Token:     tokenAddr,
		Direction: BuyToken,
		Kind:      ExactInput,
		Amount:    fivE17,
	})
	require.NoError(t, err)
	require.Equal(t, fivE17.Dec(), res.AmountOut.Dec())
	require.Equal(t, fivE17.Dec(), w.tok.BalanceOf(trader).Dec())

	_, err = w.eng.Swap(context.Background(), Call{Caller: trader, Value: uint256.NewInt(1)}, SwapRequest{
		Token:     tokenAddr,
		Direction: BuyToken,
		Kind:      ExactInput,
		Amount:    fivE17,
	})
	require.ErrorIs(t, err, model.ErrValueMismatch)
}

func TestFailedTokenPushLeavesNoTrace(t *testing.T) {
	w := newWorld(t)
	id := w.addLiquidity(t, provider, twoE18, oneE18)
	w.bank.Fund(trader, oneE18)
	w.tok.SetBlocked(trader, true)
	events := w.sink.len()
	before, err := w.eng.Snapshot(tokenAddr)
	require.NoError(t, err)

	_, err = w.eng.SwapToToken(context.Background(), Call{Caller: trader, Value: oneE18}, tokenAddr, fivE17, nil)
	require.ErrorIs(t, err, model.ErrTransferFailed)

	after, err := w.eng.Snapshot(tokenAddr)
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Equal(t, oneE18.Dec(), w.bank.BalanceOf(trader).Dec())
	require.Equal(t, events, w.sink.len())

	tok, native, err := w.eng.BalanceOf(id)
	require.NoError(t, err)
	require.Equal(t, twoE18.Dec(), tok.Dec())
	require.Equal(t, oneE18.Dec(), native.Dec())
}

func TestFailedWithdrawalRestoresPosition(t *testing.T) {
	w := newWorld(t)
	id := w.addLiquidity(t, provider, twoE18, oneE18)
	w.bank.SetBlocked(provider, true)

	_, err := w.eng.RemoveLiquidity(context.Background(), Call{Caller: provider}, id)
	require.ErrorIs(t, err, model.ErrTransferFailed)

	pos, err := w.eng.PositionInfo(id)
	require.NoError(t, err)
	require.Equal(t, provider, pos.Owner)
	require.True(t, w.tok.BalanceOf(provider).IsZero())
	require.Equal(t, twoE18.Dec(), w.tok.BalanceOf(engineAddr).Dec())
	require.NoError(t, w.eng.CheckInvariants(tokenAddr))

	w.bank.SetBlocked(provider, false)
	_, err = w.eng.RemoveLiquidity(context.Background(), Call{Caller: provider}, id)
	require.NoError(t, err)
}

func TestAddLiquidityValidation(t *testing.T) {
	w := newWorld(t)
	w.fund(provider, twoE18, oneE18)
	ctx := context.Background()

	_, err := w.eng.AddLiquidity(ctx, Call{Caller: provider, Value: fivE17}, tokenAddr, twoE18, oneE18)
	require.ErrorIs(t, err, model.ErrValueMismatch)

	_, err = w.eng.AddLiquidity(ctx, Call{Caller: provider}, tokenAddr, twoE18, new(uint256.Int))
	require.ErrorIs(t, err, model.ErrZeroAmount)

	_, err = w.eng.AddLiquidity(ctx, Call{Caller: provider, Value: oneE18}, other, twoE18, oneE18)
	require.ErrorIs(t, err, model.ErrPoolNotFound)

	w.tok.Approve(provider, engineAddr, uint256.NewInt(1))
	_, err = w.eng.AddLiquidity(ctx, Call{Caller: provider, Value: oneE18}, tokenAddr, twoE18, oneE18)
	require.ErrorIs(t, err, model.ErrTransferFailed)

	w.tok.Approve(provider, engineAddr, twoE18)
	w.bank.SetBlocked(provider, true)
	_, err = w.eng.AddLiquidity(ctx, Call{Caller: provider, Value: oneE18}, tokenAddr, twoE18, oneE18)
	require.ErrorIs(t, err, model.ErrTransferFailed)
	require.Equal(t, twoE18.Dec(), w.tok.BalanceOf(provider).Dec())

	require.Equal(t, 0, w.sink.len())
	require.Equal(t, uint64(0), w.eng.registry.NextID(tokenAddr).Seq)
}

func TestRemoveLiquidityRequiresOwner(t *testing.T) {
	w := newWorld(t)
	id := w.addLiquidity(t, provider, twoE18, oneE18)
	ctx := context.Background()

	_, err := w.eng.RemoveLiquidity(ctx, Call{Caller: trader}, id)
	require.ErrorIs(t, err, model.ErrNotOwner)

	missing := model.PositionID{Pool: tokenAddr, Seq: 9}
	_, err = w.eng.RemoveLiquidity(ctx, Call{Caller: provider}, missing)
	require.ErrorIs(t, err, model.ErrPositionNotFound)

	unknownPool := model.PositionID{Pool: other, Seq: 0}
	_, err = w.eng.RemoveLiquidity(ctx, Call{Caller: provider}, unknownPool)
	require.ErrorIs(t, err, model.ErrPositionNotFound)

	require.NoError(t, w.eng.TransferPosition(Call{Caller: provider}, trader, id))
	_, err = w.eng.RemoveLiquidity(ctx, Call{Caller: provider}, id)
	require.ErrorIs(t, err, model.ErrNotOwner)
	res, err := w.eng.RemoveLiquidity(ctx, Call{Caller: trader}, id)
	require.NoError(t, err)
	require.Equal(t, trader, res.Owner)
	require.Equal(t, twoE18.Dec(), w.tok.BalanceOf(trader).Dec())
}

func TestSequenceSurvivesBurn(t *testing.T) {
	w := newWorld(t)
	first := w.addLiquidity(t, provider, twoE18, oneE18)
	_, err := w.eng.RemoveLiquidity(context.Background(), Call{Caller: provider}, first)
	require.NoError(t, err)

	second := w.addLiquidity(t, provider, twoE18, oneE18)
	require.Equal(t, uint64(1), second.Seq)
}

func TestConcurrentSwapsKeepInvariants(t *testing.T) {
	w := newWorld(t)
	w.addLiquidity(t, provider, new(uint256.Int).Mul(twoE18, uint256.NewInt(100)), new(uint256.Int).Mul(oneE18, uint256.NewInt(100)))

	traders := make([]common.Address, 8)
	for i := range traders {
		traders[i] = common.BytesToAddress([]byte{0xf0, byte(i + 1)})
		w.fund(traders[i], oneE18, oneE18)
	}

	var wg sync.WaitGroup
	for i, addr := range traders {
		wg.Add(1)
		go func(i int, addr common.Address) {
			defer wg.Done()
			amount := uint256.NewInt(uint64(i+1) * 10_000_000_000_000_000)
			if i%2 == 0 {
				_, _ = w.eng.SwapToToken(context.Background(), Call{Caller: addr, Value: oneE18}, tokenAddr, amount, nil)
				return
			}
			_, _ = w.eng.SwapToEth(context.Background(), Call{Caller: addr}, tokenAddr, amount, nil)
		}(i, addr)
	}
	wg.Wait()

	require.NoError(t, w.eng.CheckInvariants(tokenAddr))
	require.Equal(t, len(traders)+1, w.sink.len())

	seen := make(map[uint64]bool)
	for _, ev := range w.sink.events {
		require.False(t, seen[ev.Seq])
		seen[ev.Seq] = true
	}
}

func TestAddThenRemoveIsNotASwap(t *testing.T) {
	cases := []struct {
		name   string
		token  *uint256.Int
		native *uint256.Int
	}{
		{"native heavy", uint256.NewInt(200_000_000_000_000_000), oneE18},
		{"token heavy", twoE18, uint256.NewInt(1_000_000_000_000_000)},
		{"balanced", twoE18, oneE18},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := newWorld(t)
			w.addLiquidity(t, provider, twoE18, oneE18)
			w.fund(trader, tc.token, tc.native)
			before, err := w.eng.PoolInfo(tokenAddr)
			require.NoError(t, err)
			ctx := context.Background()

			res, err := w.eng.AddLiquidity(ctx, Call{Caller: trader, Value: tc.native}, tokenAddr, tc.token, tc.native)
			require.NoError(t, err)
			require.False(t, res.TokenAmount.Gt(tc.token))
			require.False(t, res.NativeAmount.Gt(tc.native))
			require.Equal(t, new(uint256.Int).Sub(tc.token, res.TokenAmount).Dec(), w.tok.BalanceOf(trader).Dec())
			require.Equal(t, new(uint256.Int).Sub(tc.native, res.NativeAmount).Dec(), w.bank.BalanceOf(trader).Dec())

			ev := w.sink.last()
			require.Equal(t, res.TokenAmount.Dec(), ev.TokenAmount.Dec())
			require.Equal(t, res.NativeAmount.Dec(), ev.NativeAmount.Dec())

			tok, native, err := w.eng.BalanceOf(res.PositionID)
			require.NoError(t, err)
			require.False(t, tok.Gt(res.TokenAmount))
			require.False(t, native.Gt(res.NativeAmount))

			_, err = w.eng.RemoveLiquidity(ctx, Call{Caller: trader}, res.PositionID)
			require.NoError(t, err)
			require.False(t, w.tok.BalanceOf(trader).Gt(tc.token), "withdrawal returned extra token")
			require.False(t, w.bank.BalanceOf(trader).Gt(tc.native), "withdrawal returned extra native")

			after, err := w.eng.PoolInfo(tokenAddr)
			require.NoError(t, err)
			require.False(t, after.TokenReserve.Lt(before.TokenReserve))
			require.False(t, after.NativeReserve.Lt(before.NativeReserve))
			require.NoError(t, w.eng.CheckInvariants(tokenAddr))
		})
	}
}

func TestDepositTooLopsidedToMint(t *testing.T) {
	w := newWorld(t)
	w.addLiquidity(t, provider, twoE18, oneE18)
	w.fund(trader, uint256.NewInt(1), oneE18)
	events := w.sink.len()

	_, err := w.eng.AddLiquidity(context.Background(), Call{Caller: trader, Value: oneE18}, tokenAddr, uint256.NewInt(1), oneE18)
	require.ErrorIs(t, err, model.ErrZeroAmount)
	require.Equal(t, uint64(1), w.tok.BalanceOf(trader).Uint64())
	require.Equal(t, oneE18.Dec(), w.bank.BalanceOf(trader).Dec())
	require.Equal(t, events, w.sink.len())
}

func TestStaleOwnerCannotWithdrawMovedPosition(t *testing.T) {
	w := newWorld(t)
	id := w.addLiquidity(t, provider, twoE18, oneE18)
	ctx := context.Background()

	require.NoError(t, w.nft.Approve(provider, other, id.Uint256()))
	require.NoError(t, w.eng.TransferPosition(Call{Caller: other}, trader, id))

	_, err := w.eng.RemoveLiquidity(ctx, Call{Caller: provider}, id)
	require.ErrorIs(t, err, model.ErrNotOwner)
	require.True(t, w.tok.BalanceOf(provider).IsZero())
	require.True(t, w.bank.BalanceOf(provider).IsZero())

	pos, err := w.eng.PositionInfo(id)
	require.NoError(t, err)
	require.Equal(t, trader, pos.Owner)

	res, err := w.eng.RemoveLiquidity(ctx, Call{Caller: trader}, id)
	require.NoError(t, err)
	require.Equal(t, trader, res.Owner)
	require.Equal(t, twoE18.Dec(), w.tok.BalanceOf(trader).Dec())
	require.Equal(t, oneE18.Dec(), w.bank.BalanceOf(trader).Dec())
}

func TestTransferRacingWithdrawalPaysTheBurner(t *testing.T) {
	for i := 0; i < 20; i++ {
		w := newWorld(t)
		id := w.addLiquidity(t, provider, twoE18, oneE18)
		require.NoError(t, w.nft.Approve(provider, other, id.Uint256()))

		var (
			wg          sync.WaitGroup
			removeErr   error
			transferErr error
			res         RemoveResult
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			res, removeErr = w.eng.RemoveLiquidity(context.Background(), Call{Caller: provider}, id)
		}()
		go func() {
			defer wg.Done()
			transferErr = w.eng.TransferPosition(Call{Caller: other}, trader, id)
		}()
		wg.Wait()

		if removeErr == nil {
			require.Equal(t, provider, res.Owner)
			require.ErrorIs(t, transferErr, model.ErrPositionNotFound)
			require.Equal(t, twoE18.Dec(), w.tok.BalanceOf(provider).Dec())
			require.True(t, w.tok.BalanceOf(trader).IsZero())
			continue
		}
		require.ErrorIs(t, removeErr, model.ErrNotOwner)
		require.NoError(t, transferErr)
		require.True(t, w.tok.BalanceOf(provider).IsZero())
		pos, err := w.eng.PositionInfo(id)
		require.NoError(t, err)
		require.Equal(t, trader, pos.Owner)
	}
}

type blockingSink struct {
	entered chan struct{}
	release chan struct{}
}

func (s *blockingSink) Publish(context.Context, model.Event) error {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.release
	return nil
}

func TestSlowSinkDoesNotBlockPool(t *testing.T) {
	w := newWorld(t)
	id := w.addLiquidity(t, provider, twoE18, oneE18)
	slow := &blockingSink{entered: make(chan struct{}, 1), release: make(chan struct{})}
	w.eng.AddSink(slow)

	price, err := w.eng.PriceOfToken(tokenAddr, fivE17)
	require.NoError(t, err)
	w.bank.Fund(trader, price)
	done := make(chan error, 1)
	go func() {
		_, err := w.eng.SwapToToken(context.Background(), Call{Caller: trader, Value: price}, tokenAddr, fivE17, nil)
		done <- err
	}()

	select {
	case <-slow.entered:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "sink never received the swap")
	}

	reads := make(chan model.PoolInfo, 1)
	go func() {
		info, err := w.eng.PoolInfo(tokenAddr)
		if err == nil {
			_, _, err = w.eng.BalanceOf(id)
		}
		if err == nil {
			reads <- info
		}
	}()
	select {
	case info := <-reads:
		require.Equal(t, "1500000000000000000", info.TokenReserve.Dec())
	case <-time.After(5 * time.Second):
		require.FailNow(t, "pool reads blocked behind the sink")
	}

	close(slow.release)
	require.NoError(t, <-done)
	require.Equal(t, model.EventSwapToToken, w.sink.last().Name)

	var last uint64
	for _, ev := range w.sink.events {
		require.Greater(t, ev.Seq, last)
		last = ev.Seq
	}
}
