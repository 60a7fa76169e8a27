package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Digest returns the hex-encoded SHA-256 digest of data. The same function
// is used at upload time and at every later verification, so a digest
// comparison is byte-exact: any change to the content changes the digest.
func Digest(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// DigestReader computes the digest of a stream without buffering it whole.
func DigestReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
