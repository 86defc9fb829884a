package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// PrefixDir returns the two-character fan-out directory for a digest.
func PrefixDir(digest string) string {
	if len(digest) < 2 {
		return digest
	}
	return digest[:2]
}

// IsHexDigest reports whether v looks like a lowercase hex SHA-256 digest.
func IsHexDigest(v string) bool {
	if len(v) != sha256.Size*2 {
		return false
	}
	for i := 0; i < len(v); i++ {
		ch := v[i]
		if (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') {
			continue
		}
		return false
	}
	return true
}

// Writer hashes everything written through it.
type Writer struct {
	w io.Writer
	h hash.Hash
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, h: sha256.New()}
}

func (hw *Writer) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	if n > 0 {
		hw.h.Write(p[:n])
	}
	return n, err
}

// Sum returns the hex digest of the bytes written so far.
func (hw *Writer) Sum() string {
	return hex.EncodeToString(hw.h.Sum(nil))
}
