package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenerateKey builds a deterministic key under scope from the given parts.
func GenerateKey(scope string, parts ...any) string {
	h := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(h, "%v:", part)
	}

	return scope + ":" + hex.EncodeToString(h.Sum(nil)[:16])
}
