package util

import (
	"crypto/rand"
	"encoding/hex"
)

// defaultIDBytes sizes ids wide enough that sync run ids never collide in
// practice.
const defaultIDBytes = 12

// NewID returns a URL-safe hex identifier carrying n random bytes; n <= 0
// falls back to the default width.
func NewID(n int) string {
	if n <= 0 {
		n = defaultIDBytes
	}
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
