package session

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewID returns a random identifier over a lowercase+digit alphabet. Short
// enough to fit in a share link, long enough that collisions are negligible.
func NewID(length int) string {
	b := make([]byte, length)
	max := big.NewInt(int64(len(idAlphabet)))
	for i := range b {
		n, _ := rand.Int(rand.Reader, max)
		b[i] = idAlphabet[n.Int64()]
	}
	return string(b)
}

// NewSecret returns an opaque URL-safe secret. Clients derive the real
// encryption key themselves; this only rides along in the join payload.
func NewSecret() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
