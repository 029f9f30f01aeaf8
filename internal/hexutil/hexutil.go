// Package hexutil holds the hex and integer parsing shared by the key,
// address, signature and transaction packages.
package hexutil

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var ErrOddLength = errors.New("hex string has odd length")

// Has0xPrefix reports whether s starts with 0x or 0X.
func Has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// Strip0x removes a leading 0x or 0X.
func Strip0x(s string) string {
	if Has0xPrefix(s) {
		return s[2:]
	}
	return s
}

// Decode decodes a hex string with or without the 0x prefix.
func Decode(s string) ([]byte, error) {
	s = Strip0x(strings.TrimSpace(s))
	if len(s)%2 != 0 {
		return nil, ErrOddLength
	}
	return hex.DecodeString(s)
}

// Encode returns the 0x-prefixed lower-case hex form of b.
func Encode(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// EncodeBig returns the 0x-prefixed hex quantity form of v ("0x0" for zero).
func EncodeBig(v *big.Int) string {
	if v == nil || v.Sign() == 0 {
		return "0x0"
	}
	return "0x" + v.Text(16)
}

// ParseBigInt parses an integer from a 0x-prefixed hex string, a decimal
// string, a JSON number or a Go integer.
func ParseBigInt(val interface{}) (*big.Int, error) {
	switch v := val.(type) {
	case string:
		s := strings.TrimSpace(v)
		if Has0xPrefix(s) {
			digits := s[2:]
			if digits == "" {
				return nil, fmt.Errorf("invalid number format: %s", v)
			}
			z, ok := new(big.Int).SetString(digits, 16)
			if !ok {
				return nil, fmt.Errorf("invalid number format: %s", v)
			}
			return z, nil
		}
		z, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("invalid number format: %s", v)
		}
		return z, nil

	case json.Number:
		z, ok := new(big.Int).SetString(string(v), 10)
		if !ok {
			return nil, fmt.Errorf("invalid number format: %s", v)
		}
		return z, nil

	case float64:
		s := fmt.Sprintf("%.0f", v)
		z, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("invalid number format: %v", v)
		}
		return z, nil

	case int64:
		return big.NewInt(v), nil

	case int:
		return big.NewInt(int64(v)), nil

	case uint64:
		return new(big.Int).SetUint64(v), nil

	default:
		return nil, fmt.Errorf("unsupported type: %T", val)
	}
}
