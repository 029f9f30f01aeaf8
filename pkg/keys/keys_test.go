package keys

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	curveOrderHex = "fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141"
	testKeyHex    = "c3a4349f6e57cfd2cbba275e3b3d15a2e4cf00c89e067f6e05bfee25208f9cbb"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("device gone")
}

func TestGenerate(t *testing.T) {
	t.Run("generates distinct keys", func(t *testing.T) {
		k1, err := Generate()
		require.NoError(t, err)
		k2, err := Generate()
		require.NoError(t, err)

		assert.NotEqual(t, k1.PrivateHex(), k2.PrivateHex())
		assert.NotEqual(t, k1.PublicHex(), k2.PublicHex())
	})

	t.Run("regenerates from exported private hex", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			k1, err := Generate()
			require.NoError(t, err)

			k2, err := FromPrivateHex(k1.PrivateHex())
			require.NoError(t, err)

			assert.Equal(t, k1.PrivateHex(), k2.PrivateHex())
			assert.Equal(t, k1.PublicHex(), k2.PublicHex())
			assert.True(t, k1.Equal(k2))
		}
	})

	t.Run("resamples out of range candidates", func(t *testing.T) {
		order, _ := hex.DecodeString(curveOrderHex)
		valid, _ := hex.DecodeString(testKeyHex)

		var stream []byte
		stream = append(stream, make([]byte, 32)...) // zero
		stream = append(stream, order...)            // N
		stream = append(stream, valid...)

		k, err := GenerateFrom(bytes.NewReader(stream))
		require.NoError(t, err)
		assert.Equal(t, testKeyHex, k.PrivateHex())
	})

	t.Run("entropy failure is reported", func(t *testing.T) {
		_, err := GenerateFrom(failingReader{})
		assert.ErrorIs(t, err, ErrEntropy)

		_, err = GenerateFrom(bytes.NewReader(make([]byte, 10)))
		assert.ErrorIs(t, err, ErrEntropy)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})
}

func TestFromPrivate(t *testing.T) {
	t.Run("accepts 0x prefix", func(t *testing.T) {
		k, err := FromPrivateHex("0x" + testKeyHex)
		require.NoError(t, err)
		assert.Equal(t, testKeyHex, k.PrivateHex())
		assert.Len(t, k.PublicBytes(), PublicKeyLength)
		assert.Len(t, k.PublicHex(), 130)
		assert.True(t, strings.HasPrefix(k.PublicHex(), "04"))
		assert.Len(t, k.CompressedPublicBytes(), CompressedPublicKeyLength)
	})

	tests := []struct {
		name string
		hex  string
	}{
		{"zero", strings.Repeat("00", 32)},
		{"curve order", curveOrderHex},
		{"above order", strings.Repeat("ff", 32)},
		{"short", "abcd"},
		{"long", testKeyHex + "00"},
		{"not hex", strings.Repeat("zz", 32)},
		{"odd length", testKeyHex[1:]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromPrivateHex(tt.hex)
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}

	t.Run("order minus one is valid", func(t *testing.T) {
		b, _ := hex.DecodeString(curveOrderHex)
		b[31]--
		_, err := FromPrivate(b)
		assert.NoError(t, err)
	})
}

func TestFromPublic(t *testing.T) {
	full, err := FromPrivateHex(testKeyHex)
	require.NoError(t, err)

	encodings := map[string][]byte{
		"uncompressed": full.PublicBytes(),
		"raw":          full.PublicBytes()[1:],
		"compressed":   full.CompressedPublicBytes(),
	}
	for name, enc := range encodings {
		t.Run(name, func(t *testing.T) {
			k, err := FromPublic(enc)
			require.NoError(t, err)
			assert.False(t, k.HasPrivate())
			assert.Equal(t, full.PublicHex(), k.PublicHex())
			assert.Empty(t, k.PrivateHex())
			assert.True(t, k.Equal(full.Public()))
			assert.False(t, k.Equal(full))
		})
	}

	t.Run("rejects bad input", func(t *testing.T) {
		_, err := FromPublic([]byte{1, 2, 3})
		assert.ErrorIs(t, err, ErrInvalidKey)

		offCurve := full.PublicBytes()
		offCurve[64] ^= 0x01
		_, err = FromPublic(offCurve)
		assert.ErrorIs(t, err, ErrInvalidKey)

		_, err = FromPublicHex("0xnothex")
		assert.ErrorIs(t, err, ErrInvalidKey)

		_, err = FromPublicKey(nil)
		assert.ErrorIs(t, err, ErrInvalidKey)
	})
}

func TestPrivateBytes(t *testing.T) {
	k, err := FromPrivateHex(testKeyHex)
	require.NoError(t, err)

	b, err := k.PrivateBytes()
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, hex.EncodeToString(b))

	_, err = k.Public().PrivateBytes()
	assert.ErrorIs(t, err, ErrMissingPrivateKey)
}

func TestZero(t *testing.T) {
	k, err := Generate()
	require.NoError(t, err)
	pub := k.PublicHex()
	priv := k.PrivateKey()

	k.Zero()

	assert.False(t, k.HasPrivate())
	assert.Nil(t, k.PrivateKey())
	assert.True(t, priv.Key.IsZero())
	assert.Equal(t, pub, k.PublicHex())
}
