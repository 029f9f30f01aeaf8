// Package address derives account addresses from secp256k1 public keys and
// renders them in plain or EIP-55 checksummed hex.
package address

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/mahdiidarabi/chainkey/internal/hexutil"
	"github.com/mahdiidarabi/chainkey/internal/keccak"
	"github.com/mahdiidarabi/chainkey/pkg/keys"
)

// Length is the size of an address in bytes.
const Length = 20

// ErrInvalidAddress is returned for input that is not a 20-byte hex address,
// or that fails checksum validation.
var ErrInvalidAddress = errors.New("invalid address")

// Address is the last 20 bytes of the Keccak-256 hash of an uncompressed
// public key without its 0x04 prefix.
type Address [Length]byte

// FromPublicKey derives the address of pub.
func FromPublicKey(pub *secp256k1.PublicKey) Address {
	h := keccak.Sum256(pub.SerializeUncompressed()[1:])
	var a Address
	copy(a[:], h[keccak.Size-Length:])
	return a
}

// FromKeyPair derives the address of kp's public point.
func FromKeyPair(kp *keys.KeyPair) Address {
	return FromPublicKey(kp.PublicKey())
}

// BytesToAddress keeps the last 20 bytes of b, left-padding shorter input.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > Length {
		b = b[len(b)-Length:]
	}
	copy(a[Length-len(b):], b)
	return a
}

// Bytes returns a copy of the raw address.
func (a Address) Bytes() []byte {
	return append([]byte(nil), a[:]...)
}

// Hex returns the lower-case form with a 0x prefix.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Checksum returns the EIP-55 mixed-case form with a 0x prefix.
func (a Address) Checksum() string {
	lower := hex.EncodeToString(a[:])
	h := keccak.Sum256([]byte(lower))

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := h[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(out)
}

// String implements fmt.Stringer with the checksummed form.
func (a Address) String() string {
	return a.Checksum()
}

// IsZero reports whether a is the all-zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Parse accepts 40 hex characters with or without 0x, in any case. The
// checksum is not validated.
func Parse(s string) (Address, error) {
	s = strings.TrimSpace(s)
	body := hexutil.Strip0x(s)
	if len(body) != 2*Length {
		return Address{}, fmt.Errorf("%w: %q must be %d hex characters", ErrInvalidAddress, s, 2*Length)
	}
	b, err := hex.DecodeString(body)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return BytesToAddress(b), nil
}

// ParseChecksummed is Parse plus EIP-55 validation. All-lower and all-upper
// input carries no checksum and is accepted as is.
func ParseChecksummed(s string) (Address, error) {
	a, err := Parse(s)
	if err != nil {
		return Address{}, err
	}
	body := hexutil.Strip0x(strings.TrimSpace(s))
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return a, nil
	}
	if body != a.Checksum()[2:] {
		return Address{}, fmt.Errorf("%w: checksum mismatch for %s", ErrInvalidAddress, s)
	}
	return a, nil
}

// ToChecksummedHex re-renders any hex address in EIP-55 form. Applying it to
// its own output is a no-op.
func ToChecksummedHex(s string) (string, error) {
	a, err := Parse(s)
	if err != nil {
		return "", err
	}
	return a.Checksum(), nil
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Checksum()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
