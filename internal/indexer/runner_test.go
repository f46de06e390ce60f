package indexer

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"positionSwap/internal/dex"
	"positionSwap/internal/model"
	"positionSwap/internal/storage"
)

var (
	testPool   = common.HexToAddress("0x00000000000000000000000000000000000005a7")
	testToken  = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testTrader = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type fakeSource struct {
	head        uint64
	logs        []types.Log
	filterCalls int
	failFirst   bool
}

func (f *fakeSource) GetChainID(context.Context) (*big.Int, error) {
	return big.NewInt(56), nil
}

func (f *fakeSource) LatestBlockNumber(context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeSource) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return 1_700_000_000 + number*3, nil
}

func (f *fakeSource) FilterLogs(_ context.Context, from, to uint64, pool common.Address, topic0 []common.Hash) ([]types.Log, error) {
	f.filterCalls++
	if f.failFirst && f.filterCalls == 1 {
		return nil, errors.New("rate limited")
	}
	if len(topic0) != 4 {
		return nil, errors.New("unexpected topic filter")
	}
	var out []types.Log
	for _, log := range f.logs {
		if log.Address == pool && log.BlockNumber >= from && log.BlockNumber <= to {
			out = append(out, log)
		}
	}
	return out, nil
}

type memoryStorage struct {
	records []model.LogRecord
}

func (m *memoryStorage) PutLogBatch(_ context.Context, logs []model.LogRecord) error {
	m.records = append(m.records, logs...)
	return nil
}

type memoryCheckpoint struct {
	block uint64
	ok    bool
	saves int
}

func (m *memoryCheckpoint) Load(context.Context) (uint64, bool, error) {
	return m.block, m.ok, nil
}

func (m *memoryCheckpoint) Save(_ context.Context, block uint64) error {
	m.block, m.ok = block, true
	m.saves++
	return nil
}

func swapLog(t *testing.T, block uint64, index uint) types.Log {
	t.Helper()
	record, err := dex.NewEncoder(56, testPool).Encode(model.Event{
		Seq:           block,
		Name:          model.EventSwapToEth,
		Token:         testToken,
		Account:       testTrader,
		TokenAmount:   uint256.NewInt(100),
		NativeAmount:  uint256.NewInt(48),
		Fee:           uint256.NewInt(1),
		PriceRatio:    uint256.NewInt(2_000_000_000_000),
		TokenReserve:  uint256.NewInt(2100),
		NativeReserve: uint256.NewInt(952),
		Time:          time.Unix(1_700_000_000, 0),
	})
	require.NoError(t, err)
	topics := make([]common.Hash, len(record.Topics))
	for i, topic := range record.Topics {
		topics[i] = common.HexToHash(topic)
	}
	return types.Log{
		Address:     testPool,
		Topics:      topics,
		Data:        hexutil.MustDecode(record.Data),
		BlockNumber: block,
		TxHash:      common.HexToHash(record.TxHash),
		Index:       index,
	}
}

func TestRunnerIndexesPoolLogs(t *testing.T) {
	source := &fakeSource{head: 20}
	source.logs = []types.Log{
		swapLog(t, 3, 0),
		swapLog(t, 3, 0),
		swapLog(t, 9, 1),
		swapLog(t, 25, 0),
	}
	other := swapLog(t, 4, 0)
	other.Address = testToken
	removed := swapLog(t, 5, 0)
	removed.Removed = true
	source.logs = append(source.logs, other, removed)

	store := &memoryStorage{}
	checkpoint := &memoryCheckpoint{}
	runner := NewRunner(RunConfig{
		Pool:       testPool,
		FromBlock:  1,
		BatchSize:  5,
		Checkpoint: checkpoint,
	}, source, store, zap.NewNop())

	require.NoError(t, runner.Run(context.Background()))
	require.Len(t, store.records, 2)
	require.Equal(t, uint64(20), checkpoint.block)
	require.Equal(t, 4, checkpoint.saves)

	decoder, err := dex.NewPoolDecoder()
	require.NoError(t, err)
	first := store.records[0]
	require.Equal(t, uint64(56), first.ChainID)
	require.Equal(t, uint64(3), first.BlockNumber)
	require.Equal(t, uint64(1_700_000_009), first.Timestamp)

	event, err := decoder.Decode(first, dex.DecodeContext{Logger: zap.NewNop()})
	require.NoError(t, err)
	swap, ok := event.Decoded.(model.SwapEventData)
	require.True(t, ok, "decoded type %T", event.Decoded)
	require.Equal(t, "100", swap.TokenAmount)
	require.Equal(t, "48", swap.NativeAmount)
	require.Equal(t, "token", swap.FeeAsset)
}

func TestRunnerResumesFromCheckpoint(t *testing.T) {
	source := &fakeSource{head: 20, logs: []types.Log{swapLog(t, 3, 0), swapLog(t, 15, 0)}}
	store := &memoryStorage{}
	checkpoint := &memoryCheckpoint{block: 10, ok: true}

	runner := NewRunner(RunConfig{Pool: testPool, BatchSize: 100, Checkpoint: checkpoint}, source, store, nil)
	require.NoError(t, runner.Run(context.Background()))
	require.Len(t, store.records, 1)
	require.Equal(t, uint64(15), store.records[0].BlockNumber)

	store.records = nil
	require.NoError(t, runner.Run(context.Background()))
	require.Empty(t, store.records)
}

func TestRunnerRetriesFilterLogs(t *testing.T) {
	source := &fakeSource{head: 10, logs: []types.Log{swapLog(t, 2, 0)}, failFirst: true}
	store := &memoryStorage{}
	runner := NewRunner(RunConfig{
		Pool:      testPool,
		BatchSize: 10,
		Retry:     storage.RetryPolicy{MaxRetries: 2, Backoff: time.Millisecond},
	}, source, store, nil)

	require.NoError(t, runner.Run(context.Background()))
	require.Equal(t, 2, source.filterCalls)
	require.Len(t, store.records, 1)

	source = &fakeSource{head: 10, failFirst: true}
	runner = NewRunner(RunConfig{Pool: testPool, BatchSize: 10}, source, store, nil)
	require.Error(t, runner.Run(context.Background()))
}

func TestRunnerRequiresPool(t *testing.T) {
	runner := NewRunner(RunConfig{BatchSize: 1}, &fakeSource{}, &memoryStorage{}, nil)
	require.Error(t, runner.Run(context.Background()))
}
