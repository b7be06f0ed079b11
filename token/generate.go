package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenBytes of entropy per token. 32 bytes encode to 43 URL-safe
// characters, well past the point where guessing or collisions matter.
const tokenBytes = 32

// Generate returns an opaque, URL-safe download token. The token
// carries no structure: no sequence numbers, no embedded metadata.
// If the system's entropy source fails there is no safe fallback, so
// Generate panics rather than degrade to a guessable token.
func Generate() string {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
