// Package keys holds secp256k1 key pairs.
//
// A KeyPair carries a public point and, unless it was imported from a public
// key only, the private scalar the point was derived from.
package keys

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/mahdiidarabi/chainkey/internal/hexutil"
)

var (
	// ErrInvalidKey is returned for malformed or out of range scalars and points.
	ErrInvalidKey = errors.New("invalid key")

	// ErrMissingPrivateKey is returned when a public-only pair is asked to sign
	// or export its scalar.
	ErrMissingPrivateKey = errors.New("key pair has no private key")

	// ErrEntropy wraps failures of the random source. It is never retried.
	ErrEntropy = errors.New("entropy source failure")
)

const (
	PrivateKeyLength          = 32
	PublicKeyLength           = 65 // 0x04 || X || Y
	RawPublicKeyLength        = 64 // X || Y
	CompressedPublicKeyLength = 33
)

// KeyPair is a secp256k1 key pair. The private part is optional.
type KeyPair struct {
	priv *secp256k1.PrivateKey
	pub  *secp256k1.PublicKey
}

// Generate creates a key pair from crypto/rand.
func Generate() (*KeyPair, error) {
	return GenerateFrom(rand.Reader)
}

// GenerateFrom draws 32-byte candidates from r until one lies in [1, N-1].
func GenerateFrom(r io.Reader) (*KeyPair, error) {
	var buf [PrivateKeyLength]byte
	defer zeroBytes(buf[:])

	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEntropy, err)
		}

		var k secp256k1.ModNScalar
		if overflow := k.SetBytes(&buf); overflow != 0 || k.IsZero() {
			k.Zero()
			continue
		}
		priv := secp256k1.NewPrivateKey(&k)
		k.Zero()
		return &KeyPair{priv: priv, pub: priv.PubKey()}, nil
	}
}

// FromPrivate imports a 32-byte big-endian scalar.
func FromPrivate(b []byte) (*KeyPair, error) {
	if len(b) != PrivateKeyLength {
		return nil, fmt.Errorf("%w: private key must be %d bytes, got %d", ErrInvalidKey, PrivateKeyLength, len(b))
	}

	var k secp256k1.ModNScalar
	if overflow := k.SetByteSlice(b); overflow {
		return nil, fmt.Errorf("%w: private key is not below the curve order", ErrInvalidKey)
	}
	if k.IsZero() {
		return nil, fmt.Errorf("%w: private key is zero", ErrInvalidKey)
	}

	priv := secp256k1.NewPrivateKey(&k)
	k.Zero()
	return &KeyPair{priv: priv, pub: priv.PubKey()}, nil
}

// FromPrivateHex imports a hex scalar, with or without 0x.
func FromPrivateHex(s string) (*KeyPair, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	defer zeroBytes(b)
	return FromPrivate(b)
}

// FromPublic imports a public-only pair from a compressed (33), raw (64) or
// uncompressed (65) encoding.
func FromPublic(b []byte) (*KeyPair, error) {
	switch len(b) {
	case RawPublicKeyLength:
		b = append([]byte{0x04}, b...)
	case CompressedPublicKeyLength, PublicKeyLength:
	default:
		return nil, fmt.Errorf("%w: public key must be 33, 64 or 65 bytes, got %d", ErrInvalidKey, len(b))
	}

	pub, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return &KeyPair{pub: pub}, nil
}

// FromPublicHex is FromPublic for hex input.
func FromPublicHex(s string) (*KeyPair, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return FromPublic(b)
}

// FromPublicKey wraps an already parsed public key.
func FromPublicKey(pub *secp256k1.PublicKey) (*KeyPair, error) {
	if pub == nil {
		return nil, fmt.Errorf("%w: nil public key", ErrInvalidKey)
	}
	return &KeyPair{pub: pub}, nil
}

// HasPrivate reports whether the pair can sign.
func (k *KeyPair) HasPrivate() bool {
	return k != nil && k.priv != nil
}

// PrivateKey returns the underlying scalar, or nil for public-only pairs.
func (k *KeyPair) PrivateKey() *secp256k1.PrivateKey {
	return k.priv
}

// PublicKey returns the public point.
func (k *KeyPair) PublicKey() *secp256k1.PublicKey {
	return k.pub
}

// PrivateBytes returns the 32-byte scalar. The caller owns the slice.
func (k *KeyPair) PrivateBytes() ([]byte, error) {
	if !k.HasPrivate() {
		return nil, ErrMissingPrivateKey
	}
	return k.priv.Serialize(), nil
}

// PrivateHex returns the scalar as 64 hex characters, or "" for public-only
// pairs.
func (k *KeyPair) PrivateHex() string {
	b, err := k.PrivateBytes()
	if err != nil {
		return ""
	}
	defer zeroBytes(b)
	return hex.EncodeToString(b)
}

// PublicBytes returns the 65-byte uncompressed point.
func (k *KeyPair) PublicBytes() []byte {
	return k.pub.SerializeUncompressed()
}

// PublicHex returns the uncompressed point as hex.
func (k *KeyPair) PublicHex() string {
	return hex.EncodeToString(k.PublicBytes())
}

// CompressedPublicBytes returns the 33-byte compressed point.
func (k *KeyPair) CompressedPublicBytes() []byte {
	return k.pub.SerializeCompressed()
}

// CompressedPublicHex returns the compressed point as hex.
func (k *KeyPair) CompressedPublicHex() string {
	return hex.EncodeToString(k.CompressedPublicBytes())
}

// Public returns a public-only copy of the pair.
func (k *KeyPair) Public() *KeyPair {
	return &KeyPair{pub: k.pub}
}

// Equal reports whether both pairs hold the same point and the same scalar
// (or both lack one).
func (k *KeyPair) Equal(o *KeyPair) bool {
	if k == nil || o == nil {
		return k == o
	}
	if !k.pub.IsEqual(o.pub) {
		return false
	}
	if k.HasPrivate() != o.HasPrivate() {
		return false
	}
	return !k.HasPrivate() || k.priv.Key.Equals(&o.priv.Key)
}

// Zero clears the private scalar. The pair is public-only afterwards.
func (k *KeyPair) Zero() {
	if k.priv != nil {
		k.priv.Zero()
		k.priv = nil
	}
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
