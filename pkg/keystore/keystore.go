// Package keystore encrypts private keys into Web3 Secret Storage (version 3)
// records and decrypts them back.
//
// A record stores the scalar encrypted with aes-128-ctr under the first half
// of a password-derived key, plus a Keccak-256 tag over the second half and
// the ciphertext. The tag is checked before anything is decrypted.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/mahdiidarabi/chainkey/internal/hexutil"
	"github.com/mahdiidarabi/chainkey/internal/keccak"
	"github.com/mahdiidarabi/chainkey/pkg/address"
	"github.com/mahdiidarabi/chainkey/pkg/keys"
)

// Version is the only record version this package reads or writes.
const Version = 3

var (
	ErrInvalidPassword   = errors.New("could not decrypt key with given password")
	ErrUnsupportedFormat = errors.New("unsupported keystore format")
	ErrAddressMismatch   = errors.New("keystore address does not match decrypted key")
	ErrMalformedRecord   = errors.New("malformed keystore record")
	ErrNoMatch           = errors.New("no key for given address")
)

// HexBytes is a byte slice serialized as plain lower-case hex.
type HexBytes []byte

func (b HexBytes) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(b)), nil
}

func (b *HexBytes) UnmarshalText(text []byte) error {
	dec, err := hexutil.Decode(string(text))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	*b = dec
	return nil
}

// Record is a version 3 keystore file.
type Record struct {
	Address string     `json:"address,omitempty"`
	Crypto  CryptoJSON `json:"crypto"`
	ID      string     `json:"id"`
	Version int        `json:"version"`
}

// CryptoJSON is the crypto section of a record.
type CryptoJSON struct {
	Cipher       string       `json:"cipher"`
	CipherText   HexBytes     `json:"ciphertext"`
	CipherParams CipherParams `json:"cipherparams"`
	KDF          string       `json:"kdf"`
	KDFParams    KDFParams    `json:"kdfparams"`
	MAC          HexBytes     `json:"mac"`
}

type CipherParams struct {
	IV HexBytes `json:"iv"`
}

// KDFParams holds the parameters of either kdf. Unused fields are omitted.
type KDFParams struct {
	C     int      `json:"c,omitempty"`
	DKLen int      `json:"dklen"`
	N     int      `json:"n,omitempty"`
	P     int      `json:"p,omitempty"`
	PRF   string   `json:"prf,omitempty"`
	R     int      `json:"r,omitempty"`
	Salt  HexBytes `json:"salt"`
}

// Encrypt seals kp's private scalar under password.
func Encrypt(kp *keys.KeyPair, password string, cfg KDFConfig) (*Record, error) {
	return encrypt(rand.Reader, kp, password, cfg)
}

func encrypt(rng io.Reader, kp *keys.KeyPair, password string, cfg KDFConfig) (*Record, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	priv, err := kp.PrivateBytes()
	if err != nil {
		return nil, err
	}
	defer zero(priv)

	salt := make([]byte, cfg.SaltLen)
	if _, err := io.ReadFull(rng, salt); err != nil {
		return nil, fmt.Errorf("%w: %w", keys.ErrEntropy, err)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rng, iv); err != nil {
		return nil, fmt.Errorf("%w: %w", keys.ErrEntropy, err)
	}

	params := cfg.params(salt)
	dk, err := deriveKey(cfg.KDF, params, []byte(password))
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer zero(dk)

	ct, err := aesCTR(dk[:16], iv, priv)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", keys.ErrEntropy, err)
	}

	addr := address.FromKeyPair(kp)
	return &Record{
		Address: hex.EncodeToString(addr[:]),
		Crypto: CryptoJSON{
			Cipher:       CipherName,
			CipherText:   ct,
			CipherParams: CipherParams{IV: iv},
			KDF:          cfg.KDF,
			KDFParams:    params,
			MAC:          keccak.Hash(dk[16:32], ct),
		},
		ID:      id.String(),
		Version: Version,
	}, nil
}

// Decrypt verifies the record's tag under password and returns the key pair.
func Decrypt(rec *Record, password string) (*keys.KeyPair, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: nil record", ErrMalformedRecord)
	}
	if rec.Version != Version {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedFormat, rec.Version)
	}
	c := rec.Crypto
	if c.Cipher != CipherName {
		return nil, fmt.Errorf("%w: cipher %q", ErrUnsupportedFormat, c.Cipher)
	}
	if len(c.CipherParams.IV) != aes.BlockSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes", ErrMalformedRecord, aes.BlockSize)
	}
	if len(c.CipherText) == 0 || len(c.MAC) != keccak.Size {
		return nil, fmt.Errorf("%w: missing ciphertext or mac", ErrMalformedRecord)
	}

	dk, err := deriveKey(c.KDF, c.KDFParams, []byte(password))
	if err != nil {
		return nil, err
	}
	defer zero(dk)

	mac := keccak.Hash(dk[16:32], c.CipherText)
	if subtle.ConstantTimeCompare(mac, c.MAC) != 1 {
		return nil, ErrInvalidPassword
	}

	priv, err := aesCTR(dk[:16], c.CipherParams.IV, c.CipherText)
	if err != nil {
		return nil, err
	}
	defer zero(priv)

	kp, err := keys.FromPrivate(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}

	if rec.Address != "" {
		want, err := address.Parse(rec.Address)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
		}
		if got := address.FromKeyPair(kp); got != want {
			kp.Zero()
			return nil, fmt.Errorf("%w: record %s, key %s", ErrAddressMismatch, want.Checksum(), got.Checksum())
		}
	}
	return kp, nil
}

// EncryptJSON is Encrypt returning the serialized record.
func EncryptJSON(kp *keys.KeyPair, password string, cfg KDFConfig) ([]byte, error) {
	rec, err := Encrypt(kp, password, cfg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rec)
}

// DecryptJSON parses a serialized record and decrypts it.
func DecryptJSON(data []byte, password string) (*keys.KeyPair, error) {
	rec, err := ParseRecord(data)
	if err != nil {
		return nil, err
	}
	return Decrypt(rec, password)
}

// ParseRecord unmarshals a record without decrypting it.
func ParseRecord(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		if errors.Is(err, ErrMalformedRecord) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	rec.Crypto.Cipher = strings.ToLower(rec.Crypto.Cipher)
	rec.Crypto.KDF = strings.ToLower(rec.Crypto.KDF)
	return &rec, nil
}

// AccountAddress returns the address stored in the record, if any.
func (r *Record) AccountAddress() (address.Address, error) {
	if r.Address == "" {
		return address.Address{}, fmt.Errorf("%w: record has no address", ErrMalformedRecord)
	}
	return address.Parse(r.Address)
}

func aesCTR(key, iv, in []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	out := make([]byte, len(in))
	cipher.NewCTR(block, iv).XORKeyStream(out, in)
	return out, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
