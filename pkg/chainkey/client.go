package chainkey

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mahdiidarabi/chainkey/internal/keccak"
	"github.com/mahdiidarabi/chainkey/pkg/address"
	"github.com/mahdiidarabi/chainkey/pkg/chain"
	"github.com/mahdiidarabi/chainkey/pkg/keys"
	"github.com/mahdiidarabi/chainkey/pkg/keystore"
	"github.com/mahdiidarabi/chainkey/pkg/signature"
	"github.com/mahdiidarabi/chainkey/pkg/transaction"
)

// ErrNoSigner is reported for records that name neither an address nor a
// public key to check against.
var ErrNoSigner = errors.New("record has no address or public key")

// Client ties key, signature, keystore and transaction handling to one set of
// chain parameters.
type Client struct {
	params chain.Params
	kdf    keystore.KDFConfig
	parser SignatureParser
	logger *zap.Logger
}

// NewClient creates a client with default settings: legacy (replayable)
// signatures, standard scrypt keystores and the JSON parser.
func NewClient() *Client {
	return &Client{
		params: chain.Legacy,
		kdf:    keystore.StandardScrypt(),
		parser: &JSONParser{},
		logger: zap.NewNop(),
	}
}

// WithChain sets the chain parameters used for signing and verification.
func (c *Client) WithChain(params chain.Params) *Client {
	c.params = params
	return c
}

// WithKDF sets the key derivation used for new keystore records.
func (c *Client) WithKDF(cfg keystore.KDFConfig) *Client {
	c.kdf = cfg
	return c
}

// WithParser sets the parser used by VerifyBatch.
func (c *Client) WithParser(parser SignatureParser) *Client {
	c.parser = parser
	return c
}

// WithLogger sets the client's logger.
func (c *Client) WithLogger(logger *zap.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Chain returns the client's chain parameters.
func (c *Client) Chain() chain.Params {
	return c.params
}

// KDF returns the client's key derivation settings.
func (c *Client) KDF() keystore.KDFConfig {
	return c.kdf
}

// NewKey generates a fresh key pair.
func (c *Client) NewKey() (*keys.KeyPair, error) {
	kp, err := keys.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	c.logger.Debug("generated key", zap.String("address", address.FromKeyPair(kp).Checksum()))
	return kp, nil
}

// SignDigest signs a 32-byte digest and returns the wire signature.
func (c *Client) SignDigest(kp *keys.KeyPair, digest []byte) ([]byte, error) {
	sig, err := signature.Sign(kp, digest)
	if err != nil {
		return nil, err
	}
	return signature.Encode(sig, c.params)
}

// SignMessage hashes msg with Keccak-256 and signs the digest.
func (c *Client) SignMessage(kp *keys.KeyPair, msg []byte) ([]byte, error) {
	return c.SignDigest(kp, keccak.Hash(msg))
}

// VerifyMessage reports whether wire is kp's signature over msg.
func (c *Client) VerifyMessage(kp *keys.KeyPair, msg, wire []byte) bool {
	if kp == nil {
		return false
	}
	return signature.VerifyEncoded(kp.PublicKey(), keccak.Hash(msg), wire, c.params)
}

// RecoverSigner returns the address behind a wire signature over digest.
func (c *Client) RecoverSigner(digest, wire []byte) (address.Address, error) {
	pub, err := signature.RecoverEncoded(digest, wire, c.params)
	if err != nil {
		return address.Address{}, err
	}
	return address.FromPublicKey(pub), nil
}

// SignTransaction returns a signed copy of tx for the client's chain.
func (c *Client) SignTransaction(tx *transaction.Transaction, kp *keys.KeyPair) (*transaction.Transaction, error) {
	signed, err := transaction.Sign(tx, kp, c.params)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("signed transaction",
		zap.Uint64("nonce", signed.Nonce),
		zap.Stringer("chain", c.params),
		zap.Bool("protected", signed.Protected()))
	return signed, nil
}

// EncryptKey seals kp into a keystore record under password.
func (c *Client) EncryptKey(kp *keys.KeyPair, password string) ([]byte, error) {
	return keystore.EncryptJSON(kp, password, c.kdf)
}

// DecryptKey opens a serialized keystore record.
func (c *Client) DecryptKey(data []byte, password string) (*keys.KeyPair, error) {
	return keystore.DecryptJSON(data, password)
}

// Store opens a directory keystore using the client's KDF and logger.
func (c *Client) Store(dir string) *keystore.Store {
	return keystore.NewStore(dir, c.kdf).WithLogger(c.logger)
}

// VerificationResult is the outcome for one record of a batch.
type VerificationResult struct {
	Index  int
	Valid  bool
	Signer address.Address
	Err    error
}

// VerifyBatch parses source with the client's parser and verifies every
// record.
func (c *Client) VerifyBatch(ctx context.Context, source string) ([]VerificationResult, error) {
	records, err := c.parser.ParseSignatures(source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signatures: %w", err)
	}
	return c.VerifyRecords(ctx, records)
}

// VerifyRecords verifies in-memory records. Use this when the records come
// from your own parser or API.
func (c *Client) VerifyRecords(ctx context.Context, records []*SignedMessage) ([]VerificationResult, error) {
	results := make([]VerificationResult, 0, len(records))
	valid := 0
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := c.verifyRecord(rec)
		res.Index = i
		if res.Valid {
			valid++
		}
		results = append(results, res)
	}
	c.logger.Info("verified signatures", zap.Int("total", len(records)), zap.Int("valid", valid))
	return results, nil
}

func (c *Client) verifyRecord(rec *SignedMessage) VerificationResult {
	digest := rec.Digest
	if digest == nil {
		digest = keccak.Hash(rec.Message)
	}

	pub, err := signature.RecoverEncoded(digest, rec.Signature, c.params)
	if err != nil {
		return VerificationResult{Err: err}
	}
	signer := address.FromPublicKey(pub)
	res := VerificationResult{Signer: signer}

	switch {
	case rec.PublicKey != nil:
		want, err := keys.FromPublic(rec.PublicKey)
		if err != nil {
			res.Err = err
			return res
		}
		res.Valid = signature.VerifyEncoded(want.PublicKey(), digest, rec.Signature, c.params)
	case rec.Address != nil:
		res.Valid = signer == *rec.Address
	default:
		res.Err = ErrNoSigner
	}
	return res
}
