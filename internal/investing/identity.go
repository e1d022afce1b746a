package investing

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// GenerateUDID returns a 16-hex-character device identifier. A non-empty
// seed produces a deterministic UDID (the same install always presents the
// same device to the provider); an empty seed produces a random one.
func GenerateUDID(seed string) string {
	if seed != "" {
		hash := sha256.Sum256([]byte(seed))
		return hex.EncodeToString(hash[:8])
	}
	buf := make([]byte, 8)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}

// NormalizePortfolioName converts a display name into an identifier-safe
// form for entity IDs. Example: "John's Crypto" -> "johns_crypto".
func NormalizePortfolioName(name string) string {
	// Decompose accented characters, then drop the combining marks.
	decomposed := norm.NFD.String(name)

	var b strings.Builder
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining mark, skip
		case r == ' ':
			b.WriteRune('_')
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
