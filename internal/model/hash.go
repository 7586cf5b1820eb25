package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashOf computes a stable hex identity over the given parts.
//
// Each part is serialized to compact JSON (encoding/json sorts map keys,
// so map-valued parts hash deterministically) and folded into a single
// SHA-256. Equal inputs produce equal ids across builds and processes,
// which is what lets equivalent nodes and requests from different passes
// collapse to the same identity.
func HashOf(parts ...any) string {
	h := sha256.New()
	for _, p := range parts {
		b, err := json.Marshal(p)
		if err != nil {
			// Only non-serializable programmer-supplied values can
			// fail here; that is a contract violation, not runtime
			// input.
			panic(fmt.Sprintf("model: unhashable value %T: %v", p, err))
		}
		h.Write(b)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
