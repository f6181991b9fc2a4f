// Package security holds password hashing and random token helpers.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/nabd-ai/vertex-backend/pkg/config"
)

// ErrInvalidHash is returned for stored hashes that are not argon2id PHC strings.
var ErrInvalidHash = errors.New("invalid argon2id hash")

var b64 = base64.RawStdEncoding

// argonCost is the tuning stored inside every PHC string, so hashes made under
// older settings keep verifying after the config changes.
type argonCost struct {
	memoryKB uint32
	passes   uint32
	lanes    uint8
	saltLen  uint32
	keyLen   uint32
}

func costFrom(cfg config.PasswordConfig) argonCost {
	return argonCost{
		memoryKB: uint32(bounded(cfg.ArgonMemoryKB, 8, 512*1024)),
		passes:   uint32(bounded(cfg.ArgonTime, 1, 10)),
		lanes:    uint8(bounded(cfg.ArgonParallelism, 1, 255)),
		saltLen:  uint32(bounded(cfg.ArgonSaltLen, 8, 64)),
		keyLen:   uint32(bounded(cfg.ArgonKeyLen, 16, 64)),
	}
}

func (c argonCost) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, c.passes, c.memoryKB, c.lanes, c.keyLen)
}

// HashPassword derives an argon2id key with a fresh salt and returns it in
// PHC form: $argon2id$v=19$m=..,t=..,p=..$salt$key.
func HashPassword(password string, cfg config.PasswordConfig) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	cost := costFrom(cfg)
	salt := make([]byte, cost.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := cost.derive(password, salt)

	var sb strings.Builder
	fmt.Fprintf(&sb, "$argon2id$v=%d$m=%d,t=%d,p=%d$", argon2.Version, cost.memoryKB, cost.passes, cost.lanes)
	sb.WriteString(b64.EncodeToString(salt))
	sb.WriteByte('$')
	sb.WriteString(b64.EncodeToString(key))
	return sb.String(), nil
}

// VerifyPassword reports whether password matches encoded. A malformed hash is
// an error; a wrong password is not.
func VerifyPassword(password, encoded string) (bool, error) {
	cost, salt, want, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	got := cost.derive(password, salt)
	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

func parsePHC(encoded string) (argonCost, []byte, []byte, error) {
	// Leading "$" yields an empty first field.
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return argonCost{}, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return argonCost{}, nil, nil, ErrInvalidHash
	}

	var cost argonCost
	if n, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &cost.memoryKB, &cost.passes, &cost.lanes); err != nil || n != 3 {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	if cost.memoryKB == 0 || cost.passes == 0 || cost.lanes == 0 {
		return argonCost{}, nil, nil, ErrInvalidHash
	}

	salt, err := b64.DecodeString(fields[4])
	if err != nil || len(salt) == 0 {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(fields[5])
	if err != nil || len(key) == 0 {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	cost.saltLen, cost.keyLen = uint32(len(salt)), uint32(len(key))
	return cost, salt, key, nil
}

func bounded(v, lo, hi int) int {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

// RandomURLToken returns n bytes from crypto/rand as unpadded base64url.
func RandomURLToken(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("token length must be positive")
	}
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
