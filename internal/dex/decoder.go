package dex

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"positionSwap/internal/chain"
	"positionSwap/internal/model"
)

// Decoder defines a log decoder.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error)
}

// DecodeContext provides shared dependencies for decoders.
type DecodeContext struct {
	Context        context.Context
	Chain          *chain.Client
	TokenMetaCache *TokenMetaCache
	Logger         *zap.Logger
}

// PoolDecoder decodes the four pool events.
type PoolDecoder struct {
	abi          abi.ABI
	topicToEvent map[common.Hash]abi.Event
}

// NewPoolDecoder constructs a decoder for pool logs.
func NewPoolDecoder() (*PoolDecoder, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	topics := make(map[common.Hash]abi.Event, len(parsed.Events))
	for _, event := range parsed.Events {
		topics[event.ID] = event
	}
	return &PoolDecoder{abi: parsed, topicToEvent: topics}, nil
}

// CanDecode reports whether topic0 belongs to a pool event.
func (d *PoolDecoder) CanDecode(topic0 string) bool {
	if !isHash(topic0) {
		return false
	}
	_, ok := d.topicToEvent[common.HexToHash(topic0)]
	return ok
}

// Decode unpacks a pool log into a typed event.
func (d *PoolDecoder) Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	topics := make([]common.Hash, 0, len(log.Topics))
	for i, topic := range log.Topics {
		if !isHash(topic) {
			return nil, fmt.Errorf("topic %d is not a 32-byte hash", i)
		}
		topics = append(topics, common.HexToHash(topic))
	}

	event, ok := d.topicToEvent[topics[0]]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}

	indexed, err := parseIndexed(event, topics[1:])
	if err != nil {
		return nil, fmt.Errorf("%s topics: %w", event.Name, err)
	}
	data, err := hexutil.Decode(normalizeData(log.Data))
	if err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	values := make(map[string]interface{})
	if err := event.Inputs.NonIndexed().UnpackIntoMap(values, data); err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	for k, v := range indexed {
		values[k] = v
	}

	token, err := asAddress(values["token"])
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}

	var decoded interface{}
	switch event.Name {
	case model.EventSwapToToken:
		decoded, err = swapData(values, "trader", "tokenOut", "nativeIn", model.AssetNative)
	case model.EventSwapToEth:
		decoded, err = swapData(values, "trader", "tokenIn", "nativeOut", model.AssetToken)
	case model.EventAddLiquidity:
		decoded, err = liquidityData(values, "provider")
	case model.EventRemoveLiquidity:
		decoded, err = liquidityData(values, "owner")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", event.Name, err)
	}

	if ctx.TokenMetaCache != nil {
		if _, ok := ctx.TokenMetaCache.Get(token); !ok && ctx.Chain != nil {
			meta, err := FetchTokenMeta(ctx.Context, ctx.Chain, token, ctx.Logger)
			if err != nil && ctx.Logger != nil {
				ctx.Logger.Warn("token metadata fetch failed", zap.String("token", token.Hex()), zap.Error(err))
			}
			ctx.TokenMetaCache.Set(token, meta)
		}
	}

	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		Pool:        token.Hex(),
		EventName:   event.Name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		Raw: &model.RawLogRef{
			Topic0: log.Topics[0],
			Data:   log.Data,
		},
	}, nil
}

func parseIndexed(event abi.Event, topics []common.Hash) (map[string]interface{}, error) {
	var args abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			args = append(args, arg)
		}
	}
	if len(topics) != len(args) {
		return nil, fmt.Errorf("expected %d indexed topics, got %d", len(args), len(topics))
	}
	out := make(map[string]interface{}, len(args))
	if err := abi.ParseTopicsIntoMap(out, args, topics); err != nil {
		return nil, err
	}
	return out, nil
}

func swapData(values map[string]interface{}, traderKey, tokenKey, nativeKey string, feeAsset model.Asset) (model.SwapEventData, error) {
	token, _ := asAddress(values["token"])
	trader, err := asAddress(values[traderKey])
	if err != nil {
		return model.SwapEventData{}, fmt.Errorf("%s: %w", traderKey, err)
	}
	amounts, err := bigStrings(values, tokenKey, nativeKey, "fee", "priceRatio", "tokenReserve", "nativeReserve")
	if err != nil {
		return model.SwapEventData{}, err
	}
	return model.SwapEventData{
		Token:         token.Hex(),
		Trader:        trader.Hex(),
		TokenAmount:   amounts[0],
		NativeAmount:  amounts[1],
		Fee:           amounts[2],
		FeeAsset:      feeAsset.String(),
		PriceRatio:    amounts[3],
		TokenReserve:  amounts[4],
		NativeReserve: amounts[5],
	}, nil
}

func liquidityData(values map[string]interface{}, accountKey string) (model.LiquidityEventData, error) {
	token, _ := asAddress(values["token"])
	account, err := asAddress(values[accountKey])
	if err != nil {
		return model.LiquidityEventData{}, fmt.Errorf("%s: %w", accountKey, err)
	}
	amounts, err := bigStrings(values, "positionId", "tokenAmount", "nativeAmount", "tokenReserve", "nativeReserve")
	if err != nil {
		return model.LiquidityEventData{}, err
	}
	return model.LiquidityEventData{
		Token:         token.Hex(),
		Account:       account.Hex(),
		PositionID:    amounts[0],
		TokenAmount:   amounts[1],
		NativeAmount:  amounts[2],
		TokenReserve:  amounts[3],
		NativeReserve: amounts[4],
	}, nil
}

func bigStrings(values map[string]interface{}, keys ...string) ([]string, error) {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		v, err := asBigInt(values[key])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out = append(out, v.String())
	}
	return out, nil
}

func isHash(value string) bool {
	value = strings.TrimPrefix(strings.TrimPrefix(value, "0x"), "0X")
	if len(value) != 64 {
		return false
	}
	_, err := hexutil.Decode("0x" + value)
	return err == nil
}

func normalizeData(data string) string {
	if data == "" || data == "0x" {
		return "0x"
	}
	if !strings.HasPrefix(data, "0x") && !strings.HasPrefix(data, "0X") {
		return "0x" + data
	}
	return data
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}
