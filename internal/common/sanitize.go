package common

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// SanitizePromptText normalizes user-provided free text before it is embedded
// in an LLM prompt: control characters are stripped, newlines become spaces,
// and runs of whitespace collapse to a single space.
func SanitizePromptText(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := false
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		case unicode.IsControl(r):
			// dropped
		case r == ' ':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}

	return strings.TrimSpace(b.String())
}

// HashSHA256 returns the hex-encoded sha256 of the given bytes. Used for
// content signatures, blob addressing and proposal cache keys.
func HashSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashString is a convenience wrapper around HashSHA256 for strings
func HashString(s string) string {
	return HashSHA256([]byte(s))
}

// Truncate bounds a string to max bytes, appending an ellipsis when cut.
// Cuts on a rune boundary.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
