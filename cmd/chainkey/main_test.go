package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	momKeyHex   = "5a37533acfa3ff9386aed01e16c0e7a79038ce05cc383e290d360b8ce9cd6fdf"
	chain42Sig  = "0x778bb9158ca2b1d64f97355839efef7564e8a960f2d8429c3001f3ecf6404fa0e83659a62ceb7f137d495d3f71dac967b6aab84ad3c06e50990df25c3caf202854"
	eip155Key   = "4646464646464646464646464646464646464646464646464646464646464646"
	eip155Raw   = "0xf86c098504a817c800825208943535353535353535353535353535353535353535880de0b6b3a76400008025a028ef61340bd939bc2195fe537567866003e1a15d3c71ff63e1590620aa636276a067cbe9d8997f761aecb703304b3800ccf555c9f3dc64214b297fb1966a3b6d83"
	eip155Hash  = "0x33469b22e9f636356c4160a87eb19df52b7412e8eac32a4a55ffe88ea8350788"
	eip155From  = "0x9d8A62f656a8d1615C1294fd71e9CFb3E4855A4F"
	testPass    = "testpassword"
	eip55Sample = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
)

// setupEnv isolates the CLI from the host config and keeps scrypt cheap.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "keystore")
	t.Setenv("CHAINKEY_CONFIG", "")
	t.Setenv("CHAINKEY_CHAIN", "legacy")
	t.Setenv("CHAINKEY_KEYSTORE_DIR", dir)
	t.Setenv("CHAINKEY_KDF", "scrypt")
	t.Setenv("CHAINKEY_SCRYPT_N", "1024")
	t.Setenv("CHAINKEY_SCRYPT_P", "1")
	t.Setenv("CHAINKEY_WORKERS", "2")
	t.Setenv("CHAINKEY_LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(strings.NewReader(""), &out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func runJSON(t *testing.T, v interface{}, args ...string) {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, out)
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

func TestKeyCommands(t *testing.T) {
	setupEnv(t)

	var generated keyInfo
	runJSON(t, &generated, "key", "new", "--show-private")
	assert.Len(t, generated.PrivateKey, 64)
	assert.True(t, strings.HasPrefix(generated.Address, "0x"))

	var inspected keyInfo
	runJSON(t, &inspected, "key", "inspect", generated.PrivateKey)
	assert.Equal(t, generated.Address, inspected.Address)
	assert.Empty(t, inspected.PrivateKey)

	var fromPublic keyInfo
	runJSON(t, &fromPublic, "key", "inspect", inspected.PublicKey)
	assert.Equal(t, generated.Address, fromPublic.Address)

	_, err := run(t, "key", "inspect", "0x1234")
	assert.Error(t, err)
}

func TestAddressChecksum(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "address", "checksum", strings.ToLower(eip55Sample))
	require.NoError(t, err)
	assert.Equal(t, eip55Sample+"\n", out)

	_, err = run(t, "address", "checksum", "--strict", "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	assert.Error(t, err)

	_, err = run(t, "address", "checksum", "0x1234")
	assert.Error(t, err)
}

func TestSignAndVerify(t *testing.T) {
	setupEnv(t)

	var key keyInfo
	runJSON(t, &key, "key", "inspect", momKeyHex)

	for _, chainName := range []string{"legacy", "mainnet", "42"} {
		t.Run(chainName, func(t *testing.T) {
			var signed signOutput
			runJSON(t, &signed, "sign", "message", "Hi Mom!", "--key", momKeyHex, "--chain", chainName)
			assert.Equal(t, key.Address, signed.Address)

			var res verifyOutput
			runJSON(t, &res, "verify", "Hi Mom!", signed.Signature, "--address", key.Address, "--chain", chainName)
			assert.True(t, res.Valid)
			assert.Equal(t, key.Address, res.Signer)

			runJSON(t, &res, "verify", signed.Digest, signed.Signature, "--digest", "--public-key", key.PublicKey, "--chain", chainName)
			assert.True(t, res.Valid)

			out, err := run(t, "verify", "Hi Mom?", signed.Signature, "--address", key.Address, "--chain", chainName)
			assert.ErrorIs(t, err, errVerificationFailed)
			assert.Contains(t, out, `"valid": false`)
		})
	}

	var res verifyOutput
	runJSON(t, &res, "verify", "Hi Mom!", chain42Sig, "--address", key.Address, "--chain", "42")
	assert.True(t, res.Valid)

	_, err := run(t, "verify", "Hi Mom!", chain42Sig, "--address", key.Address, "--chain", "3")
	assert.Error(t, err)

	_, err = run(t, "verify", "Hi Mom!", chain42Sig)
	assert.Error(t, err)

	_, err = run(t, "sign", "message", "Hi Mom!")
	assert.Error(t, err)

	_, err = run(t, "sign", "digest", "0xabcd", "--key", momKeyHex)
	assert.Error(t, err)
}

func TestVerifyBatch(t *testing.T) {
	setupEnv(t)

	for _, file := range []string{"signed_messages.json", "signed_messages.csv"} {
		t.Run(file, func(t *testing.T) {
			out, err := run(t, "verify", "batch", filepath.Join("..", "..", "fixtures", file), "--chain", "mainnet")
			assert.ErrorIs(t, err, errVerificationFailed)

			var results []batchOutput
			require.NoError(t, json.Unmarshal([]byte(out), &results))
			require.NotEmpty(t, results)
			assert.True(t, results[0].Valid)
			assert.Equal(t, eip155From, results[0].Signer)
			assert.False(t, results[1].Valid)
		})
	}

	_, err := run(t, "verify", "batch", "signatures.txt")
	assert.Error(t, err)
}

func TestTxCommands(t *testing.T) {
	setupEnv(t)

	var signed txOutput
	runJSON(t, &signed,
		"tx", "sign",
		"--chain", "mainnet",
		"--key", eip155Key,
		"--nonce", "9",
		"--to", "0x3535353535353535353535353535353535353535",
		"--value", "1000000000000000000",
		"--gas", "21000",
		"--gas-price", "20000000000",
	)
	assert.Equal(t, eip155Raw, signed.Raw)
	assert.Equal(t, eip155Hash, signed.Hash)
	assert.Equal(t, eip155From, signed.Sender)
	assert.Equal(t, "1", signed.ChainID)

	var decoded txOutput
	runJSON(t, &decoded, "tx", "decode", eip155Raw)
	assert.Equal(t, eip155Hash, decoded.Hash)
	assert.Equal(t, eip155From, decoded.Sender)
	require.NotNil(t, decoded.Transaction)
	assert.Equal(t, uint64(9), decoded.Transaction.Nonce)

	out, err := run(t, "tx", "sender", eip155Raw)
	require.NoError(t, err)
	assert.Equal(t, eip155From+"\n", out)

	_, err = run(t, "tx", "decode", eip155Raw[:len(eip155Raw)-2])
	assert.Error(t, err)

	_, err = run(t, "tx", "sign", "--key", eip155Key, "--gas", "20000", "--to", eip155From)
	assert.Error(t, err)

	var creation txOutput
	runJSON(t, &creation, "tx", "sign", "--key", eip155Key, "--gas", "100000", "--data", "0x6000")
	assert.Nil(t, creation.Transaction.To)
	assert.Empty(t, creation.ChainID)
}

func TestKeystoreCommands(t *testing.T) {
	dir := setupEnv(t)

	var created accountOutput
	runJSON(t, &created, "keystore", "new", "--password", testPass)
	assert.Equal(t, dir, filepath.Dir(created.Path))

	var imported accountOutput
	runJSON(t, &imported, "keystore", "import", momKeyHex, "--password", testPass)

	var key keyInfo
	runJSON(t, &key, "key", "inspect", momKeyHex)
	assert.Equal(t, key.Address, imported.Address)

	var accounts []accountOutput
	runJSON(t, &accounts, "keystore", "list")
	assert.Len(t, accounts, 2)

	var signed signOutput
	runJSON(t, &signed, "sign", "message", "Hi Mom!", "--from", key.Address, "--password", testPass)
	assert.Equal(t, key.Address, signed.Address)

	runJSON(t, &signed, "sign", "message", "Hi Mom!", "--keyfile", imported.Path, "--password", testPass)
	assert.Equal(t, key.Address, signed.Address)

	_, err := run(t, "sign", "message", "Hi Mom!", "--from", key.Address, "--password", "wrong")
	assert.Error(t, err)

	var decrypted []decryptOutput
	runJSON(t, &decrypted, "keystore", "decrypt", created.Path, imported.Path, "--password", testPass, "--show-private")
	require.Len(t, decrypted, 2)
	assert.Equal(t, created.Address, decrypted[0].Address)
	assert.Equal(t, momKeyHex, decrypted[1].PrivateKey)

	missing := filepath.Join(t.TempDir(), "missing.json")
	out, err := run(t, "keystore", "decrypt", imported.Path, missing, "--password", testPass)
	assert.Error(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &decrypted))
	assert.Empty(t, decrypted[0].Error)
	assert.NotEmpty(t, decrypted[1].Error)

	data, err := os.ReadFile(imported.Path)
	require.NoError(t, err)
	other := filepath.Join(t.TempDir(), "copy.json")
	require.NoError(t, os.WriteFile(other, data, 0o600))
	t.Setenv("CHAINKEY_KEYSTORE_DIR", filepath.Join(t.TempDir(), "second"))
	runJSON(t, &imported, "keystore", "import", other, "--password", testPass)
	assert.Equal(t, key.Address, imported.Address)
}

func TestPasswordRequired(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "keystore", "new")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--password")
}
