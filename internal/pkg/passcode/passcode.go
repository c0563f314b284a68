// Package passcode generates short numeric one-time codes.
package passcode

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// digits is the character set used for code generation.
const digits = "0123456789"

// Generator produces one-time passcodes.
type Generator interface {
	// Generate returns a new passcode or an error if the random source fails.
	Generate() (string, error)
}

// Numeric generates cryptographically secure numeric passcodes.
//
// Each digit is selected uniformly at random from 0-9 so every code of the
// configured length is equally likely, including codes with leading zeros.
type Numeric struct {
	length int
}

// NewNumeric returns a Numeric generator producing codes of the given length.
// Lengths below 1 fall back to 6 digits.
func NewNumeric(length int) *Numeric {
	if length < 1 {
		length = 6
	}
	return &Numeric{length: length}
}

// Generate produces a new numeric passcode.
func (n *Numeric) Generate() (string, error) {
	var sb strings.Builder
	sb.Grow(n.length)

	for i := 0; i < n.length; i++ {
		idx, err := randIntStrict(len(digits))
		if err != nil {
			return "", err
		}
		sb.WriteByte(digits[idx])
	}

	return sb.String(), nil
}

func randIntStrict(max int) (int, error) {
	num, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(num.Int64()), nil
}
