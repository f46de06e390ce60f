package dex

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"positionSwap/internal/model"
)

// Encoder turns committed engine events into EVM-style log records.
type Encoder struct {
	chainID uint64
	emitter common.Address
	now     func() time.Time
}

// NewEncoder builds an encoder for logs emitted by emitter.
func NewEncoder(chainID uint64, emitter common.Address) *Encoder {
	return &Encoder{chainID: chainID, emitter: emitter, now: time.Now}
}

// Encode packs an event. The event sequence doubles as block number and
// the transaction hash is derived from it.
func (e *Encoder) Encode(event model.Event) (model.LogRecord, error) {
	parsed, err := PoolABI()
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("parse pool abi: %w", err)
	}
	abiEvent, ok := parsed.Events[event.Name]
	if !ok {
		return model.LogRecord{}, fmt.Errorf("unsupported event name: %s", event.Name)
	}

	topics := []common.Hash{abiEvent.ID, addressTopic(event.Token), addressTopic(event.Account)}
	var values []interface{}
	switch event.Name {
	case model.EventAddLiquidity, model.EventRemoveLiquidity:
		if event.Position == nil {
			return model.LogRecord{}, fmt.Errorf("%s without position id", event.Name)
		}
		topics = append(topics, common.Hash(event.Position.Uint256().Bytes32()))
		values = []interface{}{
			toBig(event.TokenAmount),
			toBig(event.NativeAmount),
			toBig(event.TokenReserve),
			toBig(event.NativeReserve),
		}
	case model.EventSwapToToken:
		values = []interface{}{
			toBig(event.NativeAmount),
			toBig(event.TokenAmount),
			toBig(event.Fee),
			toBig(event.PriceRatio),
			toBig(event.TokenReserve),
			toBig(event.NativeReserve),
		}
	case model.EventSwapToEth:
		values = []interface{}{
			toBig(event.TokenAmount),
			toBig(event.NativeAmount),
			toBig(event.Fee),
			toBig(event.PriceRatio),
			toBig(event.TokenReserve),
			toBig(event.NativeReserve),
		}
	}

	data, err := abiEvent.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("pack %s: %w", event.Name, err)
	}

	topicHex := make([]string, 0, len(topics))
	for _, topic := range topics {
		topicHex = append(topicHex, topic.Hex())
	}
	return model.LogRecord{
		ChainID:     e.chainID,
		BlockNumber: event.Seq,
		TxHash:      txHash(e.chainID, event.Seq).Hex(),
		LogIndex:    0,
		Address:     e.emitter.Hex(),
		Topics:      topicHex,
		Data:        hexutil.Encode(data),
		Timestamp:   uint64(event.Time.Unix()),
		IngestedAt:  e.now().UTC().Format(time.RFC3339),
	}, nil
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func txHash(chainID, seq uint64) common.Hash {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], chainID)
	binary.BigEndian.PutUint64(buf[8:], seq)
	return crypto.Keccak256Hash(buf[:])
}

func toBig(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}
