package tokenmeta

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestLookupDecodesLegacyFixedBytes32Symbol(t *testing.T) {
	ctrl := gomock.NewController(t)
	caller := NewMockEthCaller(ctrl)

	decimalsHex := "0x" + strings.Repeat("0", 63) + "d" // 13
	symbolHex := "0x4d4b5200" + strings.Repeat("0", 56) // "MKR\x00" padded to 32 bytes, no dynamic offset

	caller.EXPECT().EthCall(gomock.Any(), "0xmkr", decimalsSelector).Return(hexDecode(t, decimalsHex), nil)
	caller.EXPECT().EthCall(gomock.Any(), "0xmkr", symbolSelector).Return(hexDecode(t, symbolHex), nil)

	reg := NewRegistry()
	meta, err := reg.Lookup(context.Background(), caller, "ethereum", "0xmkr")
	require.NoError(t, err)
	require.Equal(t, int32(13), meta.Decimals)
	require.Equal(t, "MKR", meta.Symbol)
}

func hexDecode(t *testing.T, s string) []byte {
	t.Helper()
	out, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	require.NoError(t, err)
	return out
}
