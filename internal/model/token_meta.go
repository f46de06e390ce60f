package model

import "github.com/ethereum/go-ethereum/common"

// TokenMeta captures ERC20 metadata used to format amounts.
type TokenMeta struct {
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name"`
}

// NativeDecimals is the decimal scale of the native currency.
const NativeDecimals uint8 = 18
