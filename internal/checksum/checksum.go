// Package checksum computes content identities compatible with git.
package checksum

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// GitBlob returns the hex SHA-1 git assigns to a blob holding data, which is
// the same sha the GitHub contents API reports for a file.
func GitBlob(data []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(data))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
