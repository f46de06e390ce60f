package dex

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"positionSwap/internal/model"
)

const poolABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "token", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "provider", "type": "address"},
      {"indexed": true, "internalType": "uint256", "name": "positionId", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "tokenAmount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "nativeAmount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "tokenReserve", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "nativeReserve", "type": "uint256"}
    ],
    "name": "AddLiquidity",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "token", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "trader", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "nativeIn", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "tokenOut", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "fee", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "priceRatio", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "tokenReserve", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "nativeReserve", "type": "uint256"}
    ],
    "name": "SwapToToken",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "token", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "trader", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "tokenIn", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "nativeOut", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "fee", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "priceRatio", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "tokenReserve", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "nativeReserve", "type": "uint256"}
    ],
    "name": "SwapToEth",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "token", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": true, "internalType": "uint256", "name": "positionId", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "tokenAmount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "nativeAmount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "tokenReserve", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "nativeReserve", "type": "uint256"}
    ],
    "name": "RemoveLiquidity",
    "type": "event"
  }
]`

const erc20ABIJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

var (
	poolABI     abi.ABI
	poolABIOnce sync.Once
	poolABIErr  error

	erc20ABI     abi.ABI
	erc20ABIOnce sync.Once
	erc20ABIErr  error
)

// PoolABI returns the parsed ABI of the pool events.
func PoolABI() (abi.ABI, error) {
	poolABIOnce.Do(func() {
		poolABI, poolABIErr = abi.JSON(strings.NewReader(poolABIJSON))
	})
	return poolABI, poolABIErr
}

// ERC20ABI returns the parsed ABI of the ERC20 metadata getters.
func ERC20ABI() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIJSON))
	})
	return erc20ABI, erc20ABIErr
}

// EventTopics returns the topic0 of every pool event, in a stable order.
func EventTopics() ([]common.Hash, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, err
	}
	names := []string{model.EventAddLiquidity, model.EventSwapToToken, model.EventSwapToEth, model.EventRemoveLiquidity}
	topics := make([]common.Hash, 0, len(names))
	for _, name := range names {
		event, ok := parsed.Events[name]
		if !ok {
			return nil, fmt.Errorf("pool abi missing event %s", name)
		}
		topics = append(topics, event.ID)
	}
	return topics, nil
}
