package codec

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"explorer/internal/errors"
)

func TestHexToUint64(t *testing.T) {
	tests := []struct {
		name    string
		hex     string
		want    uint64
		wantErr bool
	}{
		{"零值", "0x0", 0, false},
		{"普通数值", "0x7b", 123, false},
		{"大写前缀", "0X7B", 123, false},
		{"最大uint64", "0xffffffffffffffff", 18446744073709551615, false},
		{"空字符串", "", 0, true},
		{"无前缀", "7b", 0, true},
		{"仅前缀", "0x", 0, true},
		{"非法字符", "0xzz", 0, true},
		{"负数", "0x-1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HexToUint64(tt.hex)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsKind(err, errors.KindInvalidEncoding))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHexToDecimalString(t *testing.T) {
	tests := []struct {
		name    string
		hex     string
		want    string
		wantErr bool
	}{
		{"零值", "0x0", "0", false},
		{"普通数值", "0x7b", "123", false},
		{"1 DSTN的Wei值", "0xde0b6b3a7640000", "1000000000000000000", false},
		// 超过uint64范围的256位数值
		{"256位大数", "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
			"115792089237316195423570985008687907853269984665640564039457584007913129639935", false},
		{"空字符串", "", "", true},
		{"无前缀", "123", "", true},
		{"非法字符", "0xgg", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HexToDecimalString(tt.hex)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsKind(err, errors.KindInvalidEncoding))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUint64ToHex(t *testing.T) {
	assert.Equal(t, "0x0", Uint64ToHex(0))
	assert.Equal(t, "0x7b", Uint64ToHex(123))
	assert.Equal(t, "0xffffffffffffffff", Uint64ToHex(18446744073709551615))
}

// 往返性质: decimalToHex(hexToInt(H)) == H（前导零/大小写归一化后）
func TestHexRoundTrip(t *testing.T) {
	hexes := []string{"0x0", "0x1", "0x7b", "0xde0b6b3a7640000", "0xffffffffffffffff"}

	for _, h := range hexes {
		n, err := HexToUint64(h)
		require.NoError(t, err)
		assert.Equal(t, h, Uint64ToHex(n))
	}
}

// 往返性质: HexToDecimalString后经任意精度解析可恢复同一整数
func TestHexToDecimalStringRoundTrip(t *testing.T) {
	hexes := []string{
		"0x0",
		"0xde0b6b3a7640000",
		"0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
	}

	for _, h := range hexes {
		dec, err := HexToDecimalString(h)
		require.NoError(t, err)

		fromDec, ok := new(big.Int).SetString(dec, 10)
		require.True(t, ok)
		fromHex, ok := new(big.Int).SetString(h[2:], 16)
		require.True(t, ok)

		assert.Zero(t, fromDec.Cmp(fromHex))
	}
}
