package model

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// PriceScale is the fixed-point scale of every price ratio (token per native).
var PriceScale = uint256.NewInt(1_000_000_000_000)

// ParseAmount parses a base-10 amount. Empty input is zero.
func ParseAmount(value string) (*uint256.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return new(uint256.Int), nil
	}
	amount, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return amount, nil
}

// FormatAmount renders an amount as a base-10 string; nil renders as "0".
func FormatAmount(value *uint256.Int) string {
	if value == nil {
		return "0"
	}
	return value.Dec()
}

// Asset identifies one side of a pool.
type Asset uint8

const (
	AssetToken Asset = iota
	AssetNative
)

func (a Asset) String() string {
	switch a {
	case AssetToken:
		return "token"
	case AssetNative:
		return "native"
	default:
		return "unknown"
	}
}

// Other returns the opposite side of the pool.
func (a Asset) Other() Asset {
	if a == AssetToken {
		return AssetNative
	}
	return AssetToken
}
