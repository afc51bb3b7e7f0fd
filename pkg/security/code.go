package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// DefaultRestockCodeLength yields roughly 51 bits of entropy over restockCodeCharset.
const DefaultRestockCodeLength = 10

const restockCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// restockCodeRejectAbove is the largest multiple of len(restockCodeCharset) that fits in a byte.
// Bytes at or above it are discarded so every symbol stays equally likely.
const restockCodeRejectAbove = 256 - 256%len(restockCodeCharset)

const hintEdge = 3

// GenerateRestockCode returns a random uppercase alphanumeric code of the given length.
func GenerateRestockCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length*2)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= restockCodeRejectAbove {
				continue
			}
			out = append(out, restockCodeCharset[int(b)%len(restockCodeCharset)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// NormalizeRestockCode trims whitespace and upper-cases a code as typed by a supplier.
func NormalizeRestockCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// HashRestockCode returns the hex SHA-256 digest of the normalized code. The digest is the
// only lookup key stored for a code.
func HashRestockCode(code string) string {
	sum := sha256.Sum256([]byte(NormalizeRestockCode(code)))
	return hex.EncodeToString(sum[:])
}

// RestockCodeHint renders a partially masked code for display, e.g. "AB3…9XZ".
// Codes of six characters or fewer are returned unchanged.
func RestockCodeHint(code string) string {
	runes := []rune(code)
	if len(runes) <= hintEdge*2 {
		return code
	}
	return string(runes[:hintEdge]) + "…" + string(runes[len(runes)-hintEdge:])
}
