package aggregate

import (
	"context"
	"encoding/json"
	"math/big"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"positionSwap/internal/model"
	"positionSwap/internal/storage"
)

const testPool = "0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa"

type memoryStore struct {
	pools   []model.PoolRecord
	metrics []model.PoolWindowMetrics
}

func (m *memoryStore) UpsertPools(_ context.Context, pools []model.PoolRecord) error {
	m.pools = append(m.pools, pools...)
	return nil
}

func (m *memoryStore) UpsertWindowMetrics(_ context.Context, metrics []model.PoolWindowMetrics) error {
	m.metrics = append(m.metrics, metrics...)
	return nil
}

func typedRecord(t *testing.T, seq, ts uint64, name string, decoded interface{}) model.TypedEventRecord {
	t.Helper()
	raw, err := json.Marshal(decoded)
	require.NoError(t, err)
	return model.TypedEventRecord{
		ChainID:     1,
		BlockNumber: seq,
		Pool:        testPool,
		EventName:   name,
		Timestamp:   ts,
		Decoded:     raw,
	}
}

func writeTyped(t *testing.T, records ...model.TypedEventRecord) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "typed.jsonl")
	w, err := storage.NewJSONLWriter(path, false)
	require.NoError(t, err)
	for _, r := range records {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())
	return path
}

func sampleEvents(t *testing.T) []model.TypedEventRecord {
	return []model.TypedEventRecord{
		typedRecord(t, 1, 1000, model.EventAddLiquidity, model.LiquidityEventData{
			Token: testPool, TokenAmount: "2000000000000000000", NativeAmount: "1000000000000000000",
			TokenReserve: "2000000000000000000", NativeReserve: "1000000000000000000",
		}),
		typedRecord(t, 2, 1100, model.EventSwapToToken, model.SwapEventData{
			Token: testPool, TokenAmount: "500000000000000000", NativeAmount: "400000000000000000",
			Fee: "100000000000000000", FeeAsset: "native",
			TokenReserve: "1500000000000000000", NativeReserve: "1400000000000000000",
		}),
		typedRecord(t, 3, 4000, model.EventSwapToEth, model.SwapEventData{
			Token: testPool, TokenAmount: "100000000000000000", NativeAmount: "50000000000000000",
			Fee: "10000000000000000", FeeAsset: "token", PriceRatio: "1185185185185",
			TokenReserve: "1600000000000000000", NativeReserve: "1350000000000000000",
		}),
	}
}

func TestAggregatorWindows(t *testing.T) {
	input := writeTyped(t, sampleEvents(t)...)
	store := &memoryStore{}
	agg := NewAggregator(Config{WindowSeconds: 3600}, store, nil, nil)

	require.NoError(t, agg.Run(context.Background(), input))
	require.Len(t, store.metrics, 2)
	require.Len(t, store.pools, 1)
	require.Equal(t, uint64(1), store.pools[0].FirstSeenSeq)
	require.Equal(t, uint8(18), store.pools[0].Decimals)

	first := store.metrics[0]
	require.Equal(t, int64(0), first.WindowStart.Unix())
	require.Equal(t, uint64(1), first.SwapCount)
	require.Equal(t, uint64(1), first.DepositCount)
	require.Equal(t, "0.500000000000000000", first.VolumeToken)
	require.Equal(t, "0.400000000000000000", first.VolumeNative)
	require.Equal(t, "0.100000000000000000", first.FeeNative)
	require.Equal(t, "0.000000000000000000", first.FeeToken)
	require.Equal(t, "1.500000000000000000", *first.TokenReserve)
	require.Equal(t, "1.400000000000000000", *first.NativeReserve)
	require.Equal(t, "1071428571428", *first.PriceRatio)
	require.NotNil(t, first.FeeRateNative)
	require.Nil(t, first.FeeRateToken)
	require.NotNil(t, first.APR)
	require.True(t, strings.HasPrefix(*first.APR, "312.85714285714285714"), *first.APR)

	second := store.metrics[1]
	require.Equal(t, int64(3600), second.WindowStart.Unix())
	require.Equal(t, "0.010000000000000000", second.FeeToken)
	require.Equal(t, "1185185185185", *second.PriceRatio)
	require.NotNil(t, second.FeeRateToken)
}

func TestAggregatorResumesFromState(t *testing.T) {
	input := writeTyped(t, sampleEvents(t)...)
	backend := &FileStateBackend{Path: filepath.Join(t.TempDir(), "state.json")}
	state := &NamedState{Backend: backend, Name: "aggregator:3600"}

	store := &memoryStore{}
	require.NoError(t, NewAggregator(Config{WindowSeconds: 3600, StateStore: state}, store, nil, nil).Run(context.Background(), input))
	require.Len(t, store.metrics, 2)

	ts, ok, err := state.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(4000), ts)

	again := &memoryStore{}
	require.NoError(t, NewAggregator(Config{WindowSeconds: 3600, StateStore: state}, again, nil, nil).Run(context.Background(), input))
	require.Empty(t, again.metrics)

	recompute := &memoryStore{}
	require.NoError(t, NewAggregator(Config{WindowSeconds: 3600, RecomputeFrom: 3600, StateStore: state}, recompute, nil, nil).Run(context.Background(), input))
	require.Len(t, recompute.metrics, 1)
	require.Equal(t, uint64(1), recompute.metrics[0].SwapCount)
}

func TestAggregatorSkipsBadLines(t *testing.T) {
	events := sampleEvents(t)
	bad := typedRecord(t, 9, 1200, model.EventSwapToToken, model.SwapEventData{TokenAmount: "-5", FeeAsset: "native"})
	input := writeTyped(t, events[0], bad, events[1])

	store := &memoryStore{}
	require.NoError(t, NewAggregator(Config{WindowSeconds: 3600}, store, nil, nil).Run(context.Background(), input))
	require.Len(t, store.metrics, 1)
	require.Equal(t, uint64(1), store.metrics[0].SwapCount)
}

func TestAccumulatorIgnoresStaleReserves(t *testing.T) {
	events := sampleEvents(t)
	acc := NewAccumulator(events[1], 0, 3600)
	require.NoError(t, acc.AddEvent(events[1]))
	require.NoError(t, acc.AddEvent(events[0]))
	require.Equal(t, "1500000000000000000", acc.TokenReserve.String())
	require.Equal(t, uint64(1), acc.FirstSeq)
	require.Equal(t, uint64(1), acc.DepositCount)
}

func TestComputeAPRNeedsReserves(t *testing.T) {
	require.Nil(t, computeAPR(big.NewInt(1), big.NewInt(1), nil, big.NewInt(1), 3600))
	require.Nil(t, computeAPR(big.NewInt(1), big.NewInt(1), big.NewInt(0), big.NewInt(1), 3600))
	require.Nil(t, computeAPR(big.NewInt(1), big.NewInt(1), big.NewInt(1), big.NewInt(1), 0))
}

func TestFileStateBackendKeepsNames(t *testing.T) {
	backend := &FileStateBackend{Path: filepath.Join(t.TempDir(), "nested", "state.json")}
	ctx := context.Background()
	require.NoError(t, backend.SaveState(ctx, "a", 10))
	require.NoError(t, backend.SaveState(ctx, "b", 20))

	ts, ok, err := backend.LoadState(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(10), ts)

	_, ok, err = backend.LoadState(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)
	require.Error(t, backend.SaveState(ctx, "", 1))
}
