package keystore

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahdiidarabi/chainkey/pkg/address"
	"github.com/mahdiidarabi/chainkey/pkg/keys"
)

const (
	vectorPassword = "testpassword"
	vectorKeyHex   = "7a28b5ba57c53603b0b07b56bba752f7784bf506fa95edc395f5cf6c7514fe9d"
)

func fastScrypt() KDFConfig {
	return KDFConfig{KDF: KDFScrypt, N: 1 << 10, R: 8, P: 1, DKLen: 32, SaltLen: 32}
}

func fastPBKDF2() KDFConfig {
	return KDFConfig{KDF: KDFPBKDF2, C: 1024, DKLen: 32, SaltLen: 32}
}

// loadRecord reads a keystore record from the fixtures directory.
func loadRecord(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("../../fixtures/" + name)
	require.NoError(t, err)
	return data
}

func TestDecryptVectors(t *testing.T) {
	if testing.Short() {
		t.Skip("standard cost KDF vectors are slow")
	}

	for _, name := range []string{"keystore_v3_pbkdf2.json", "keystore_v3_scrypt.json"} {
		t.Run(name, func(t *testing.T) {
			data := loadRecord(t, name)

			kp, err := DecryptJSON(data, vectorPassword)
			require.NoError(t, err)
			assert.Equal(t, vectorKeyHex, kp.PrivateHex())

			_, err = DecryptJSON(data, "wrong")
			assert.ErrorIs(t, err, ErrInvalidPassword)
		})
	}
}

func TestEncryptDecrypt(t *testing.T) {
	for name, cfg := range map[string]KDFConfig{"scrypt": fastScrypt(), "pbkdf2": fastPBKDF2()} {
		t.Run(name, func(t *testing.T) {
			kp, err := keys.Generate()
			require.NoError(t, err)

			data, err := EncryptJSON(kp, "secret", cfg)
			require.NoError(t, err)
			assert.NotContains(t, string(data), kp.PrivateHex())

			back, err := DecryptJSON(data, "secret")
			require.NoError(t, err)
			assert.True(t, kp.Equal(back))

			_, err = DecryptJSON(data, "Secret")
			assert.ErrorIs(t, err, ErrInvalidPassword)
		})
	}

	t.Run("fresh salt and iv", func(t *testing.T) {
		kp, err := keys.Generate()
		require.NoError(t, err)

		r1, err := Encrypt(kp, "pw", fastScrypt())
		require.NoError(t, err)
		r2, err := Encrypt(kp, "pw", fastScrypt())
		require.NoError(t, err)

		assert.NotEqual(t, r1.Crypto.KDFParams.Salt, r2.Crypto.KDFParams.Salt)
		assert.NotEqual(t, r1.Crypto.CipherParams.IV, r2.Crypto.CipherParams.IV)
		assert.NotEqual(t, r1.Crypto.CipherText, r2.Crypto.CipherText)
		assert.NotEqual(t, r1.ID, r2.ID)
	})

	t.Run("public only pair", func(t *testing.T) {
		kp, err := keys.Generate()
		require.NoError(t, err)
		_, err = Encrypt(kp.Public(), "pw", fastScrypt())
		assert.ErrorIs(t, err, keys.ErrMissingPrivateKey)
	})
}

func TestRecordFormat(t *testing.T) {
	kp, err := keys.FromPrivateHex(vectorKeyHex)
	require.NoError(t, err)

	data, err := EncryptJSON(kp, vectorPassword, fastScrypt())
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.EqualValues(t, 3, raw["version"])

	addr := raw["address"].(string)
	assert.Equal(t, strings.ToLower(strings.TrimPrefix(address.FromKeyPair(kp).Hex(), "0x")), addr)

	id, err := uuid.Parse(raw["id"].(string))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), id.Version())

	c := raw["crypto"].(map[string]interface{})
	assert.Equal(t, "aes-128-ctr", c["cipher"])
	assert.Equal(t, "scrypt", c["kdf"])
	assert.Len(t, c["mac"], 64)
	assert.Len(t, c["ciphertext"], 64)

	params := c["kdfparams"].(map[string]interface{})
	assert.EqualValues(t, 1024, params["n"])
	assert.EqualValues(t, 32, params["dklen"])
	assert.NotContains(t, params, "c")
	assert.NotContains(t, params, "prf")
}

func TestDecryptRejects(t *testing.T) {
	kp, err := keys.Generate()
	require.NoError(t, err)
	good, err := Encrypt(kp, "pw", fastPBKDF2())
	require.NoError(t, err)

	other, err := keys.Generate()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(r *Record)
		want   error
	}{
		{"version", func(r *Record) { r.Version = 1 }, ErrUnsupportedFormat},
		{"cipher", func(r *Record) { r.Crypto.Cipher = "aes-128-cbc" }, ErrUnsupportedFormat},
		{"kdf", func(r *Record) { r.Crypto.KDF = "argon2id" }, ErrUnsupportedFormat},
		{"prf", func(r *Record) { r.Crypto.KDFParams.PRF = "hmac-sha512" }, ErrUnsupportedFormat},
		{"short dklen", func(r *Record) { r.Crypto.KDFParams.DKLen = 16 }, ErrUnsupportedFormat},
		{"iv length", func(r *Record) { r.Crypto.CipherParams.IV = r.Crypto.CipherParams.IV[:8] }, ErrMalformedRecord},
		{"tampered ciphertext", func(r *Record) { r.Crypto.CipherText[0] ^= 0xff }, ErrInvalidPassword},
		{"tampered mac", func(r *Record) { r.Crypto.MAC[31] ^= 0x01 }, ErrInvalidPassword},
		{"address", func(r *Record) {
			a := address.FromKeyPair(other)
			r.Address = strings.TrimPrefix(a.Hex(), "0x")
		}, ErrAddressMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(good)
			require.NoError(t, err)
			rec, err := ParseRecord(data)
			require.NoError(t, err)

			tt.mutate(rec)
			_, err = Decrypt(rec, "pw")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("record without address", func(t *testing.T) {
		rec := *good
		rec.Address = ""
		back, err := Decrypt(&rec, "pw")
		require.NoError(t, err)
		assert.True(t, kp.Equal(back))
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := DecryptJSON([]byte(`{"crypto":{"ciphertext":"zz"}}`), "pw")
		assert.ErrorIs(t, err, ErrMalformedRecord)

		_, err = DecryptJSON([]byte(`not json`), "pw")
		assert.ErrorIs(t, err, ErrMalformedRecord)
	})
}

func TestKDFConfigValidate(t *testing.T) {
	for _, cfg := range []KDFConfig{StandardScrypt(), LightScrypt(), StandardPBKDF2(), fastScrypt(), fastPBKDF2()} {
		assert.NoError(t, cfg.Validate(), cfg.KDF)
	}

	bad := []KDFConfig{
		{KDF: KDFScrypt, N: 1000, R: 8, P: 1, DKLen: 32, SaltLen: 32},
		{KDF: KDFScrypt, N: 1024, R: 0, P: 1, DKLen: 32, SaltLen: 32},
		{KDF: KDFScrypt, N: 1024, R: 8, P: 1, DKLen: 16, SaltLen: 32},
		{KDF: KDFPBKDF2, C: 0, DKLen: 32, SaltLen: 32},
		{KDF: KDFPBKDF2, C: 10, DKLen: 32, SaltLen: 0},
		{KDF: "bcrypt", DKLen: 32, SaltLen: 32},
	}
	for _, cfg := range bad {
		assert.ErrorIs(t, cfg.Validate(), ErrUnsupportedFormat)
	}

	assert.Equal(t, 1<<18, StandardScrypt().N)
	assert.Equal(t, 8, StandardScrypt().R)
	assert.Equal(t, 1, StandardScrypt().P)
}
