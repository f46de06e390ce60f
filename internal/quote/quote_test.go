package quote

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"positionSwap/internal/model"
)

func amount(t testing.TB, value string) *uint256.Int {
	t.Helper()
	v, err := uint256.FromDecimal(value)
	require.NoError(t, err, value)
	return v
}

func TestAmountOutGivenIn(t *testing.T) {
	cases := []struct {
		name       string
		reserveOut string
		reserveIn  string
		amountIn   string
		want       string
	}{
		{"balanced", "1000", "1000", "100", "83"},
		{"scenario pool buy", "2000000000000000000", "1000000000000000000", "500000000000000000", "500000000000000000"},
		{"tiny input", "2000000000000000000", "1000000000000000000", "1", "1"},
		{"truncates", "10", "10", "1", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := AmountOutGivenIn(amount(t, tc.reserveOut), amount(t, tc.reserveIn), amount(t, tc.amountIn))
			require.NoError(t, err)
			require.Equal(t, tc.want, got.Dec())
		})
	}
}

func TestAmountInGivenOut(t *testing.T) {
	got, err := AmountInGivenOut(amount(t, "2000000000000000000"), amount(t, "1000000000000000000"), amount(t, "500000000000000000"))
	require.NoError(t, err)
	require.Equal(t, "500000000000000000", got.Dec())

	// 1000*100/(1000-200) = 125 exactly, 1000*101/798 rounds up.
	got, err = AmountInGivenOut(uint256.NewInt(1000), uint256.NewInt(1000), uint256.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, uint64(125), got.Uint64())
	got, err = AmountInGivenOut(uint256.NewInt(1000), uint256.NewInt(1000), uint256.NewInt(101))
	require.NoError(t, err)
	require.Equal(t, uint64(127), got.Uint64())
}

func TestAmountInGivenOutRejectsHalfReserve(t *testing.T) {
	_, err := AmountInGivenOut(uint256.NewInt(1000), uint256.NewInt(1000), uint256.NewInt(500))
	require.ErrorIs(t, err, model.ErrInsufficientLiquidity)
	_, err = AmountInGivenOut(uint256.NewInt(1000), uint256.NewInt(1000), uint256.NewInt(900))
	require.ErrorIs(t, err, model.ErrInsufficientLiquidity)
}

func TestQuoteErrors(t *testing.T) {
	_, err := AmountOutGivenIn(new(uint256.Int), uint256.NewInt(1), uint256.NewInt(1))
	require.ErrorIs(t, err, model.ErrInsufficientLiquidity)
	_, err = AmountOutGivenIn(uint256.NewInt(1), uint256.NewInt(1), new(uint256.Int))
	require.ErrorIs(t, err, model.ErrZeroAmount)
	_, err = AmountInGivenOut(uint256.NewInt(10), uint256.NewInt(10), nil)
	require.ErrorIs(t, err, model.ErrZeroAmount)

	maxed := new(uint256.Int).SetAllOne()
	_, err = AmountOutGivenIn(uint256.NewInt(1), maxed, uint256.NewInt(1))
	require.ErrorIs(t, err, model.ErrOverflow)
}

func TestPriceRatio(t *testing.T) {
	ratio := PriceRatio(amount(t, "2000000000000000000"), amount(t, "1000000000000000000"))
	require.Equal(t, "2000000000000", ratio.Dec())
	require.True(t, PriceRatio(uint256.NewInt(5), new(uint256.Int)).IsZero())
	require.True(t, PriceRatio(nil, nil).IsZero())
}

func TestPriceOfTokenAndEth(t *testing.T) {
	r := Reserves{Token: amount(t, "2000000000000000000"), Native: amount(t, "1000000000000000000")}

	nativeIn, err := PriceOfToken(r, amount(t, "500000000000000000"))
	require.NoError(t, err)
	require.Equal(t, "500000000000000000", nativeIn.Dec())

	tokenIn, err := PriceOfEth(r, amount(t, "100000000000000000"))
	require.NoError(t, err)
	// 2e18*1e17/(1e18-2e17) = 2.5e17
	require.Equal(t, "250000000000000000", tokenIn.Dec())

	_, err = PriceOfEth(r, amount(t, "500000000000000000"))
	require.ErrorIs(t, err, model.ErrInsufficientLiquidity)
}

func reservesGen() *rapid.Generator[uint64] {
	return rapid.Uint64Range(1_000, 1<<62)
}

func TestRoundTripNeverCostsMoreThanInput(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rOut := uint256.NewInt(reservesGen().Draw(t, "rOut"))
		rIn := uint256.NewInt(reservesGen().Draw(t, "rIn"))
		in := uint256.NewInt(rapid.Uint64Range(1, 1<<62).Draw(t, "in"))

		out, err := AmountOutGivenIn(rOut, rIn, in)
		require.NoError(t, err)
		if out.IsZero() {
			t.Skip("output truncated to zero")
		}
		back, err := AmountInGivenOut(rOut, rIn, out)
		require.NoError(t, err)
		require.Falsef(t, back.Gt(in), "round trip mismatch: in=%s out=%s back=%s", in.Dec(), out.Dec(), back.Dec())
	})
}

func TestQuotedInputDeliversOutput(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rOutRaw := reservesGen().Draw(t, "rOut")
		rOut := uint256.NewInt(rOutRaw)
		rIn := uint256.NewInt(reservesGen().Draw(t, "rIn"))
		want := uint256.NewInt(rapid.Uint64Range(1, (rOutRaw-1)/2).Draw(t, "out"))

		in, err := AmountInGivenOut(rOut, rIn, want)
		require.NoError(t, err)
		got, err := AmountOutGivenIn(rOut, rIn, in)
		require.NoError(t, err)
		require.Falsef(t, got.Lt(want), "output mismatch: want=%s got=%s in=%s", want.Dec(), got.Dec(), in.Dec())
	})
}
