package indexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitRange(t *testing.T) {
	got, err := splitRange(100, 105, 2)
	require.NoError(t, err)
	require.Equal(t, []blockRange{
		{from: 100, to: 101},
		{from: 102, to: 103},
		{from: 104, to: 105},
	}, got)
}

func TestSplitRangeSingle(t *testing.T) {
	got, err := splitRange(5, 5, 10)
	require.NoError(t, err)
	require.Equal(t, []blockRange{{from: 5, to: 5}}, got)
}

func TestSplitRangeInvalid(t *testing.T) {
	_, err := splitRange(10, 9, 1)
	require.Error(t, err, "invalid range")
	_, err = splitRange(1, 10, 0)
	require.Error(t, err, "zero batch size")
}
