// Package keccak wraps the legacy Keccak-256 hash used for message digests,
// address derivation and keystore integrity tags.
package keccak

import "golang.org/x/crypto/sha3"

// Size is the digest length in bytes.
const Size = 32

// Sum256 hashes the concatenation of data.
func Sum256(data ...[]byte) [Size]byte {
	var h [Size]byte
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	d.Sum(h[:0])
	return h
}

// Hash is Sum256 returning a slice.
func Hash(data ...[]byte) []byte {
	h := Sum256(data...)
	return h[:]
}
