package addr

import (
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
)

func TestParseStringRoundTrip(t *testing.T) {
	var a Address
	for i := range a {
		a[i] = byte(i)
	}
	encoded := a.String()
	got, err := Parse(encoded)
	require.NoError(t, err)
	require.Equal(t, a, got)
}

func TestParseRejectsWrongLength(t *testing.T) {
	short := base58.Encode(make([]byte, 31))
	_, err := Parse(short)
	require.ErrorIs(t, err, ErrBadLength)
}

func TestHex(t *testing.T) {
	var a Address
	a[0] = 0xAB
	require.Equal(t, "ab", a.Hex()[:2])
}

func TestZeroIsAllZeroBytes(t *testing.T) {
	for _, b := range Zero {
		require.Equal(t, byte(0), b)
	}
}
