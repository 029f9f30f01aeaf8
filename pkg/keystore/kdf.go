package keystore

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// Names used in the kdf and prf fields of a record.
const (
	KDFScrypt  = "scrypt"
	KDFPBKDF2  = "pbkdf2"
	PRFSHA256  = "hmac-sha256"
	CipherName = "aes-128-ctr"
)

const (
	defaultDKLen   = 32
	defaultSaltLen = 32
)

// KDFConfig selects the key derivation function and its cost for new records.
type KDFConfig struct {
	KDF     string // KDFScrypt or KDFPBKDF2
	N       int    // scrypt cost, a power of two
	R       int    // scrypt block size
	P       int    // scrypt parallelism
	C       int    // pbkdf2 iteration count
	DKLen   int
	SaltLen int
}

// StandardScrypt is the default, matching the cost current wallets use.
func StandardScrypt() KDFConfig {
	return KDFConfig{KDF: KDFScrypt, N: 1 << 18, R: 8, P: 1, DKLen: defaultDKLen, SaltLen: defaultSaltLen}
}

// LightScrypt trades strength for speed. Use it for tests and low-memory
// devices only.
func LightScrypt() KDFConfig {
	return KDFConfig{KDF: KDFScrypt, N: 1 << 12, R: 8, P: 6, DKLen: defaultDKLen, SaltLen: defaultSaltLen}
}

// StandardPBKDF2 is pbkdf2-hmac-sha256 with 262144 iterations.
func StandardPBKDF2() KDFConfig {
	return KDFConfig{KDF: KDFPBKDF2, C: 262144, DKLen: defaultDKLen, SaltLen: defaultSaltLen}
}

// Validate checks that the config can derive a key usable for both the
// cipher and the MAC.
func (c KDFConfig) Validate() error {
	if c.DKLen < defaultDKLen {
		return fmt.Errorf("%w: dklen must be at least %d, got %d", ErrUnsupportedFormat, defaultDKLen, c.DKLen)
	}
	if c.SaltLen <= 0 {
		return fmt.Errorf("%w: salt length must be positive", ErrUnsupportedFormat)
	}
	switch c.KDF {
	case KDFScrypt:
		if c.N <= 1 || c.N&(c.N-1) != 0 {
			return fmt.Errorf("%w: scrypt n must be a power of two above 1, got %d", ErrUnsupportedFormat, c.N)
		}
		if c.R <= 0 || c.P <= 0 {
			return fmt.Errorf("%w: scrypt r and p must be positive", ErrUnsupportedFormat)
		}
	case KDFPBKDF2:
		if c.C <= 0 {
			return fmt.Errorf("%w: pbkdf2 iteration count must be positive", ErrUnsupportedFormat)
		}
	default:
		return fmt.Errorf("%w: kdf %q", ErrUnsupportedFormat, c.KDF)
	}
	return nil
}

func (c KDFConfig) params(salt []byte) KDFParams {
	p := KDFParams{DKLen: c.DKLen, Salt: salt}
	if c.KDF == KDFScrypt {
		p.N, p.R, p.P = c.N, c.R, c.P
	} else {
		p.C, p.PRF = c.C, PRFSHA256
	}
	return p
}

// deriveKey runs the kdf named in a record.
func deriveKey(kdf string, p KDFParams, password []byte) ([]byte, error) {
	if p.DKLen < defaultDKLen {
		return nil, fmt.Errorf("%w: dklen %d", ErrUnsupportedFormat, p.DKLen)
	}
	if len(p.Salt) == 0 {
		return nil, fmt.Errorf("%w: empty salt", ErrMalformedRecord)
	}

	switch kdf {
	case KDFScrypt:
		dk, err := scrypt.Key(password, p.Salt, p.N, p.R, p.P, p.DKLen)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
		}
		return dk, nil
	case KDFPBKDF2:
		if p.PRF != PRFSHA256 {
			return nil, fmt.Errorf("%w: prf %q", ErrUnsupportedFormat, p.PRF)
		}
		if p.C <= 0 {
			return nil, fmt.Errorf("%w: pbkdf2 iteration count %d", ErrUnsupportedFormat, p.C)
		}
		return pbkdf2.Key(password, p.Salt, p.C, p.DKLen, sha256.New), nil
	default:
		return nil, fmt.Errorf("%w: kdf %q", ErrUnsupportedFormat, kdf)
	}
}
