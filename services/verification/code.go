package verification

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"
)

const codeSpace = 1_000_000

var codePattern = regexp.MustCompile(`^\d{6}$`)

// GenerateCode returns a uniformly random six digit code, zero padded.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpace))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// ValidCodeFormat reports whether code is exactly six ASCII digits.
func ValidCodeFormat(code string) bool {
	return codePattern.MatchString(code)
}

// ceilSeconds rounds a positive duration up to whole seconds; non-positive yields 0.
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
