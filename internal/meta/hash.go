package meta

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Hash normalizes a value per Meta's customer-information matching rules and
// returns its SHA-256 digest as lowercase hex. Normalization is: stringify,
// lowercase, trim, strip all internal whitespace. Empty input yields "" and
// callers must treat "" as "field omitted", never as an error.
func Hash(value any) string {
	if value == nil {
		return ""
	}

	s := fmt.Sprintf("%v", value)
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return ""
	}

	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
