package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogRecordJSONRoundTrip(t *testing.T) {
	original := LogRecord{
		ChainID:     1337,
		BlockNumber: 42,
		TxHash:      "0xdef456",
		LogIndex:    0,
		Address:     "0x1111111111111111111111111111111111111111",
		Topics:      []string{"0xaaa", "0xbbb"},
		Data:        "0xdeadbeef",
		Timestamp:   1700000000,
		IngestedAt:  "2024-01-01T00:00:00Z",
	}

	b, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded LogRecord
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Equal(t, original, decoded)
}

func TestSwapEventDataJSONStringFields(t *testing.T) {
	payload := SwapEventData{
		Token:         "0x1111111111111111111111111111111111111111",
		Trader:        "0x2222222222222222222222222222222222222222",
		TokenAmount:   "500000000000000000",
		NativeAmount:  "500000000000000000",
		Fee:           "166666666666666666",
		FeeAsset:      "native",
		PriceRatio:    "1000000000000",
		TokenReserve:  "1500000000000000000",
		NativeReserve: "1500000000000000000",
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"token_amount", "native_amount", "fee", "price_ratio"} {
		require.IsType(t, "", decoded[key], key)
	}
}
