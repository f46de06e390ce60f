package main

import (
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"positionSwap/internal/engine"
	"positionSwap/internal/model"
	"positionSwap/internal/quote"
)

type quoteResult struct {
	Direction  string `json:"direction"`
	Kind       string `json:"kind"`
	AmountIn   string `json:"amount_in"`
	AmountOut  string `json:"amount_out"`
	PriceRatio string `json:"price_ratio"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	tokenReserve, err := amountFlag(cmd, "token-reserve")
	if err != nil {
		return err
	}
	nativeReserve, err := amountFlag(cmd, "native-reserve")
	if err != nil {
		return err
	}
	amount, err := amountFlag(cmd, "amount")
	if err != nil {
		return err
	}
	directionText, _ := flags.GetString("direction")
	direction, err := engine.ParseDirection(directionText)
	if err != nil {
		return err
	}
	kindText, _ := flags.GetString("kind")
	kind, err := engine.ParseKind(kindText)
	if err != nil {
		return err
	}

	reserves := quote.Reserves{Token: tokenReserve, Native: nativeReserve}
	var in, out *uint256.Int
	switch {
	case direction == engine.BuyToken && kind == engine.ExactInput:
		in = amount
		out, err = quote.TokenForNative(reserves, amount)
	case direction == engine.BuyToken:
		out = amount
		in, err = quote.PriceOfToken(reserves, amount)
	case kind == engine.ExactInput:
		in = amount
		out, err = quote.NativeForToken(reserves, amount)
	default:
		out = amount
		in, err = quote.PriceOfEth(reserves, amount)
	}
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(quoteResult{
		Direction:  direction.String(),
		Kind:       kind.String(),
		AmountIn:   in.Dec(),
		AmountOut:  out.Dec(),
		PriceRatio: quote.PriceRatio(tokenReserve, nativeReserve).Dec(),
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return err
}

func amountFlag(cmd *cobra.Command, name string) (*uint256.Int, error) {
	value, _ := cmd.Flags().GetString(name)
	amount, err := model.ParseAmount(value)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("--%s: %w", name, model.ErrZeroAmount)
	}
	return amount, nil
}
