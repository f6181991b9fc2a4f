package security_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabd-ai/vertex-backend/pkg/config"
	"github.com/nabd-ai/vertex-backend/pkg/security"
)

var cheap = config.PasswordConfig{
	ArgonMemoryKB:    8 * 1024,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func TestPasswordRoundTrip(t *testing.T) {
	encoded, err := security.HashPassword("correct horse battery", cheap)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=1,p=1$"), encoded)

	ok, err := security.VerifyPassword("correct horse battery", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = security.VerifyPassword("correct horse", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashesAreSalted(t *testing.T) {
	a, err := security.HashPassword("same", cheap)
	require.NoError(t, err)
	b, err := security.HashPassword("same", cheap)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestZeroConfigIsClamped(t *testing.T) {
	encoded, err := security.HashPassword("pw", config.PasswordConfig{})
	require.NoError(t, err)
	assert.Contains(t, encoded, "$m=8,t=1,p=1$")

	_, err = security.HashPassword("", cheap)
	assert.Error(t, err)
}

func TestVerifyRejectsMalformedHashes(t *testing.T) {
	valid, err := security.HashPassword("pw", cheap)
	require.NoError(t, err)
	parts := strings.Split(valid, "$")

	cases := map[string]string{
		"plain text":    "not-a-hash",
		"wrong algo":    strings.Replace(valid, "argon2id", "argon2i", 1),
		"wrong version": strings.Replace(valid, "v=19", "v=16", 1),
		"zero memory":   "$argon2id$v=19$m=0,t=1,p=1$" + parts[4] + "$" + parts[5],
		"bad salt":      "$argon2id$v=19$m=8192,t=1,p=1$!!!$" + parts[5],
		"empty key":     "$argon2id$v=19$m=8192,t=1,p=1$" + parts[4] + "$",
	}
	for name, encoded := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := security.VerifyPassword("pw", encoded)
			assert.ErrorIs(t, err, security.ErrInvalidHash)
		})
	}
}

func TestRandomURLToken(t *testing.T) {
	a, err := security.RandomURLToken(24)
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotContains(t, a, "=")

	b, err := security.RandomURLToken(24)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	_, err = security.RandomURLToken(0)
	assert.Error(t, err)
}
