// Package signature signs 32-byte digests with secp256k1 keys and recovers or
// verifies the signer from a signature.
//
// Signatures are deterministic (RFC 6979) and always low-S. The recovery id is
// kept raw (0 or 1) on Signature; the chain-dependent v value only appears in
// the wire form produced by Encode.
package signature

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/mahdiidarabi/chainkey/internal/keccak"
	"github.com/mahdiidarabi/chainkey/pkg/keys"
)

const (
	// DigestLength is the only digest size accepted.
	DigestLength = keccak.Size

	scalarLength  = 32
	compactLength = 1 + 2*scalarLength
	compactBase   = 27
)

var (
	// ErrMissingPrivateKey is returned when signing with a public-only pair.
	ErrMissingPrivateKey = keys.ErrMissingPrivateKey

	// ErrInvalidDigest is returned for digests that are not 32 bytes.
	ErrInvalidDigest = errors.New("digest must be 32 bytes")

	// ErrUnrecoverablePoint is returned when no valid public key can be
	// recovered from a signature.
	ErrUnrecoverablePoint = errors.New("unrecoverable public key")

	// ErrMalformedSignature is returned for wire signatures that cannot be
	// split into v, r and s.
	ErrMalformedSignature = errors.New("malformed signature")
)

// Curve order of secp256k1 and its half, used for the low-S rule.
var (
	Secp256k1N, _  = new(big.Int).SetString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141", 16)
	Secp256k1HalfN = new(big.Int).Rsh(Secp256k1N, 1)
)

// Signature is an ECDSA signature with its raw recovery id.
type Signature struct {
	R          *big.Int
	S          *big.Int
	RecoveryID byte
}

// Copy returns a deep copy of sig.
func (sig *Signature) Copy() *Signature {
	return &Signature{
		R:          new(big.Int).Set(sig.R),
		S:          new(big.Int).Set(sig.S),
		RecoveryID: sig.RecoveryID,
	}
}

// Sign produces a low-S deterministic signature of digest. kp is not modified.
func Sign(kp *keys.KeyPair, digest []byte) (*Signature, error) {
	if !kp.HasPrivate() {
		return nil, ErrMissingPrivateKey
	}
	if len(digest) != DigestLength {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDigest, len(digest))
	}

	compact := ecdsa.SignCompact(kp.PrivateKey(), digest, false)
	code := compact[0] - compactBase
	if code > 1 {
		// Only reachable when R overflowed the order, probability ~2^-127.
		return nil, fmt.Errorf("failed to sign: recovery code %d not representable", code)
	}

	sig := &Signature{
		R:          new(big.Int).SetBytes(compact[1 : 1+scalarLength]),
		S:          new(big.Int).SetBytes(compact[1+scalarLength:]),
		RecoveryID: code,
	}
	return Normalize(sig), nil
}

// Normalize returns sig with S folded into the lower half of the order. A
// high S becomes N-S and the recovery id flips.
func Normalize(sig *Signature) *Signature {
	out := sig.Copy()
	if out.S.Cmp(Secp256k1HalfN) > 0 {
		out.S.Sub(Secp256k1N, out.S)
		out.RecoveryID ^= 1
	}
	return out
}

// IsCanonical reports whether R and S are in range, S is low and the
// recovery id is 0 or 1.
func IsCanonical(sig *Signature) bool {
	if sig == nil || sig.R == nil || sig.S == nil {
		return false
	}
	if sig.R.Sign() <= 0 || sig.R.Cmp(Secp256k1N) >= 0 {
		return false
	}
	if sig.S.Sign() <= 0 || sig.S.Cmp(Secp256k1HalfN) > 0 {
		return false
	}
	return sig.RecoveryID <= 1
}

// RecoverPublicKey returns the public key that produced sig over digest.
func RecoverPublicKey(digest []byte, sig *Signature) (*secp256k1.PublicKey, error) {
	if len(digest) != DigestLength {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDigest, len(digest))
	}
	if !IsCanonical(sig) {
		return nil, fmt.Errorf("%w: signature is not canonical", ErrUnrecoverablePoint)
	}

	compact := make([]byte, compactLength)
	compact[0] = compactBase + sig.RecoveryID
	sig.R.FillBytes(compact[1 : 1+scalarLength])
	sig.S.FillBytes(compact[1+scalarLength:])

	pub, _, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnrecoverablePoint, err)
	}
	return pub, nil
}

// Verify reports whether sig over digest was produced by pub. It never
// panics and rejects high-S signatures.
func Verify(pub *secp256k1.PublicKey, digest []byte, sig *Signature) bool {
	if pub == nil {
		return false
	}
	recovered, err := RecoverPublicKey(digest, sig)
	if err != nil {
		return false
	}
	return bytes.Equal(recovered.SerializeUncompressed(), pub.SerializeUncompressed())
}

// VerifyKeyPair is Verify against kp's public point.
func VerifyKeyPair(kp *keys.KeyPair, digest []byte, sig *Signature) bool {
	if kp == nil {
		return false
	}
	return Verify(kp.PublicKey(), digest, sig)
}
