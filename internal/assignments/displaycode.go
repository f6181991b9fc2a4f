package assignments

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Display codes are 8 Crockford base32 symbols (40 random bits) followed by
// the Crockford mod-37 check symbol.
const (
	crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
	crockfordCheck    = crockfordAlphabet + "*~$=U"
	codeBodyLen       = 8
	codeLen           = codeBodyLen + 1
)

var crockfordValues = func() map[byte]uint64 {
	m := make(map[byte]uint64, len(crockfordCheck))
	for i := 0; i < len(crockfordCheck); i++ {
		m[crockfordCheck[i]] = uint64(i)
	}
	return m
}()

// NewDisplayCode returns a fresh random code.
func NewDisplayCode() (string, error) {
	var buf [5]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	var value uint64
	for _, b := range buf {
		value = value<<8 | uint64(b)
	}
	return encodeDisplayCode(value), nil
}

func encodeDisplayCode(value uint64) string {
	var out [codeLen]byte
	v := value
	for i := codeBodyLen - 1; i >= 0; i-- {
		out[i] = crockfordAlphabet[v&31]
		v >>= 5
	}
	out[codeBodyLen] = crockfordCheck[value%37]
	return string(out[:])
}

// NormalizeDisplayCode uppercases input, drops separators and maps the
// symbols Crockford treats as aliases (O to 0, I and L to 1).
func NormalizeDisplayCode(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		switch r {
		case '-', ' ':
			continue
		case 'O':
			r = '0'
		case 'I', 'L':
			r = '1'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ValidDisplayCode reports whether a normalized code has the right shape and
// check symbol.
func ValidDisplayCode(code string) bool {
	if len(code) != codeLen {
		return false
	}
	var value uint64
	for i := 0; i < codeBodyLen; i++ {
		v, ok := crockfordValues[code[i]]
		if !ok || v >= 32 {
			return false
		}
		value = value<<5 | v
	}
	check, ok := crockfordValues[code[codeBodyLen]]
	return ok && check == value%37
}
