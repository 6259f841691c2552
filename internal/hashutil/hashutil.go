package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strconv"
)

// HashStrings returns the hex SHA-256 of parts, each terminated by a newline
// so ("ab", "c") and ("a", "bc") hash differently.
func HashStrings(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		io.WriteString(h, p)
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Float renders v in its shortest exact form for hashing.
func Float(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
