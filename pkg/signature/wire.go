package signature

import (
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/mahdiidarabi/chainkey/pkg/chain"
)

// Encode renders sig as v || r || s, with v the minimal big-endian encoding
// of the value params assign to the recovery id.
func Encode(sig *Signature, params chain.Params) ([]byte, error) {
	if sig == nil || sig.R == nil || sig.S == nil {
		return nil, fmt.Errorf("%w: incomplete signature", ErrMalformedSignature)
	}
	if sig.R.Sign() < 0 || sig.S.Sign() < 0 || sig.R.BitLen() > 8*scalarLength || sig.S.BitLen() > 8*scalarLength {
		return nil, fmt.Errorf("%w: r or s out of range", ErrMalformedSignature)
	}
	if sig.RecoveryID > 1 {
		return nil, fmt.Errorf("%w: recovery id %d", ErrMalformedSignature, sig.RecoveryID)
	}

	v := params.EncodeV(sig.RecoveryID).Bytes()
	out := make([]byte, len(v)+2*scalarLength)
	copy(out, v)
	sig.R.FillBytes(out[len(v) : len(v)+scalarLength])
	sig.S.FillBytes(out[len(v)+scalarLength:])
	return out, nil
}

// SplitV cuts a wire signature into its v value and the 64-byte r || s tail.
func SplitV(wire []byte) (*big.Int, []byte, error) {
	if len(wire) < 1+2*scalarLength {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrMalformedSignature, len(wire))
	}
	head := wire[:len(wire)-2*scalarLength]
	if head[0] == 0 {
		return nil, nil, fmt.Errorf("%w: v has leading zero", ErrMalformedSignature)
	}
	return new(big.Int).SetBytes(head), wire[len(head):], nil
}

// Decode parses a wire signature, resolving v through params. A v value
// produced for another chain yields chain.ErrChainMismatch.
func Decode(wire []byte, params chain.Params) (*Signature, error) {
	v, rs, err := SplitV(wire)
	if err != nil {
		return nil, err
	}
	recid, err := params.DecodeV(v)
	if err != nil {
		return nil, err
	}
	return &Signature{
		R:          new(big.Int).SetBytes(rs[:scalarLength]),
		S:          new(big.Int).SetBytes(rs[scalarLength:]),
		RecoveryID: recid,
	}, nil
}

// VerifyEncoded decodes wire under params and verifies it. Malformed input or
// a chain mismatch returns false.
func VerifyEncoded(pub *secp256k1.PublicKey, digest, wire []byte, params chain.Params) bool {
	sig, err := Decode(wire, params)
	if err != nil {
		return false
	}
	return Verify(pub, digest, sig)
}

// RecoverEncoded decodes wire under params and recovers the signer.
func RecoverEncoded(digest, wire []byte, params chain.Params) (*secp256k1.PublicKey, error) {
	sig, err := Decode(wire, params)
	if err != nil {
		return nil, err
	}
	return RecoverPublicKey(digest, sig)
}
