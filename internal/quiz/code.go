package quiz

import (
	"crypto/rand"
	"io"
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

const (
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	CodeLength   = 6

	// maxCodeTries bounds retry-until-unique; 36^6 codes make a long run of
	// collisions a store fault rather than bad luck.
	maxCodeTries = 16
)

var codeRand io.Reader = rand.Reader

// GenerateCode samples CodeLength characters uniformly from CodeAlphabet.
func GenerateCode() (string, error) {
	max := big.NewInt(int64(len(CodeAlphabet)))
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(codeRand, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(CodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeCode makes join-code lookups case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCode reports whether code has the shape of a quiz code.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(CodeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

// ShareURL is the link a teacher hands out: <origin>/quiz/<code>.
func ShareURL(origin, code string) string {
	return strings.TrimSuffix(origin, "/") + "/quiz/" + code
}

var errCodeExhausted = errors.New("no unique quiz code after retries")
