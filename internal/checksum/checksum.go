// Package checksum computes the hex MD5 body hash used by note media
// references.
package checksum

import (
	"crypto/md5"
	"encoding/hex"
)

// Sum returns the hex-encoded MD5 digest of data, the hash format note
// markup uses to reference attached resources.
func Sum(data []byte) string {
	h := md5.Sum(data)
	return hex.EncodeToString(h[:])
}
