package assignments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDisplayCodeIsValid(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 200; i++ {
		code, err := NewDisplayCode()
		require.NoError(t, err)
		require.Len(t, code, codeLen)
		assert.True(t, ValidDisplayCode(code), code)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 190)
}

func TestEncodeDisplayCodeKnownValues(t *testing.T) {
	assert.Equal(t, "000000000", encodeDisplayCode(0))
	// 32 = "10" in base32 and 32 % 37 = 32, the first extra check symbol
	assert.Equal(t, "00000010*", encodeDisplayCode(32))
	assert.True(t, ValidDisplayCode(encodeDisplayCode(1<<40-1)))
}

func TestValidDisplayCodeDetectsTypos(t *testing.T) {
	code := encodeDisplayCode(0x1234567890)
	require.True(t, ValidDisplayCode(code))

	swapped := []byte(code)
	swapped[0], swapped[1] = swapped[1], swapped[0]
	if swapped[0] != swapped[1] {
		assert.False(t, ValidDisplayCode(string(swapped)))
	}

	changed := []byte(code)
	if changed[3] == 'A' {
		changed[3] = 'B'
	} else {
		changed[3] = 'A'
	}
	assert.False(t, ValidDisplayCode(string(changed)))

	assert.False(t, ValidDisplayCode("SHORT"))
	assert.False(t, ValidDisplayCode("0000000U0"))
}

func TestNormalizeDisplayCode(t *testing.T) {
	assert.Equal(t, "0123ABCD1", NormalizeDisplayCode(" o123-abcd-l "))
	assert.Equal(t, "11", NormalizeDisplayCode("iL"))
}
