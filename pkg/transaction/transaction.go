// Package transaction encodes, signs and decodes legacy value-transfer
// transactions, with optional EIP-155 replay protection.
package transaction

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/mahdiidarabi/chainkey/internal/keccak"
	"github.com/mahdiidarabi/chainkey/pkg/address"
	"github.com/mahdiidarabi/chainkey/pkg/chain"
	"github.com/mahdiidarabi/chainkey/pkg/keys"
	"github.com/mahdiidarabi/chainkey/pkg/signature"
)

var (
	ErrMalformedEncoding  = errors.New("malformed transaction encoding")
	ErrInvalidSignature   = errors.New("invalid transaction signature")
	ErrInvalidTransaction = errors.New("invalid transaction")
)

// Intrinsic gas schedule.
const (
	TxGas            = 21000
	TxDataZeroGas    = 4
	TxDataNonZeroGas = 68
)

// Quantities are unsigned 256-bit integers.
const maxQuantityBitLen = 256

// Transaction is a legacy transaction. To is nil for contract creation. V, R
// and S are nil until the transaction is signed.
type Transaction struct {
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	To       *address.Address
	Value    *big.Int
	Data     []byte

	V *big.Int
	R *big.Int
	S *big.Int
}

type unsignedRLP struct {
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	To       *address.Address `rlp:"nil"`
	Value    *big.Int
	Data     []byte
}

type protectedRLP struct {
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	To       *address.Address `rlp:"nil"`
	Value    *big.Int
	Data     []byte
	ChainID  *big.Int
	Zero1    uint
	Zero2    uint
}

type signedRLP struct {
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	To       *address.Address `rlp:"nil"`
	Value    *big.Int
	Data     []byte
	V        *big.Int
	R        *big.Int
	S        *big.Int
}

// New creates an unsigned value transfer.
func New(nonce uint64, to address.Address, value *big.Int, gasLimit uint64, gasPrice *big.Int, data []byte) *Transaction {
	return &Transaction{
		Nonce:    nonce,
		GasPrice: bigOrZero(gasPrice),
		GasLimit: gasLimit,
		To:       &to,
		Value:    bigOrZero(value),
		Data:     append([]byte(nil), data...),
	}
}

// NewContractCreation creates an unsigned transaction with no recipient.
func NewContractCreation(nonce uint64, value *big.Int, gasLimit uint64, gasPrice *big.Int, data []byte) *Transaction {
	return &Transaction{
		Nonce:    nonce,
		GasPrice: bigOrZero(gasPrice),
		GasLimit: gasLimit,
		Value:    bigOrZero(value),
		Data:     append([]byte(nil), data...),
	}
}

// Copy returns a deep copy of tx.
func (tx *Transaction) Copy() *Transaction {
	cpy := &Transaction{
		Nonce:    tx.Nonce,
		GasPrice: copyBig(tx.GasPrice),
		GasLimit: tx.GasLimit,
		Value:    copyBig(tx.Value),
		Data:     append([]byte(nil), tx.Data...),
		V:        copyBig(tx.V),
		R:        copyBig(tx.R),
		S:        copyBig(tx.S),
	}
	if tx.To != nil {
		to := *tx.To
		cpy.To = &to
	}
	return cpy
}

// IsSigned reports whether V, R and S are all set.
func (tx *Transaction) IsSigned() bool {
	return tx.V != nil && tx.R != nil && tx.S != nil
}

// Protected reports whether the signature binds the transaction to a chain.
func (tx *Transaction) Protected() bool {
	return tx.V != nil && !chain.IsReplayableV(tx.V)
}

// ChainID returns the chain id encoded in V, or nil for unsigned and
// replayable transactions.
func (tx *Transaction) ChainID() *big.Int {
	if !tx.Protected() {
		return nil
	}
	params, err := chain.FromV(tx.V)
	if err != nil {
		return nil
	}
	return params.ChainID()
}

// IntrinsicGas is the minimum gas the transaction's payload requires.
func (tx *Transaction) IntrinsicGas() uint64 {
	gas := uint64(TxGas)
	for _, b := range tx.Data {
		if b == 0 {
			gas += TxDataZeroGas
		} else {
			gas += TxDataNonZeroGas
		}
	}
	return gas
}

// Validate checks quantity ranges and the gas limit against IntrinsicGas.
func (tx *Transaction) Validate() error {
	for name, v := range map[string]*big.Int{"gas price": tx.GasPrice, "value": tx.Value, "r": tx.R, "s": tx.S, "v": tx.V} {
		if v == nil {
			continue
		}
		if v.Sign() < 0 || v.BitLen() > maxQuantityBitLen {
			return fmt.Errorf("%w: %s out of range", ErrInvalidTransaction, name)
		}
	}
	if need := tx.IntrinsicGas(); tx.GasLimit < need {
		return fmt.Errorf("%w: gas limit %d below intrinsic gas %d", ErrInvalidTransaction, tx.GasLimit, need)
	}
	return nil
}

// EncodeUnsigned returns the RLP payload that is hashed for signing. With a
// chain id present the list is extended with chainID, 0, 0.
func EncodeUnsigned(tx *Transaction, params chain.Params) ([]byte, error) {
	if params.IsReplayProtected() {
		return rlp.EncodeToBytes(&protectedRLP{
			Nonce:    tx.Nonce,
			GasPrice: tx.GasPrice,
			GasLimit: tx.GasLimit,
			To:       tx.To,
			Value:    tx.Value,
			Data:     tx.Data,
			ChainID:  params.ChainID(),
		})
	}
	return rlp.EncodeToBytes(&unsignedRLP{
		Nonce:    tx.Nonce,
		GasPrice: tx.GasPrice,
		GasLimit: tx.GasLimit,
		To:       tx.To,
		Value:    tx.Value,
		Data:     tx.Data,
	})
}

// SigningDigest is the Keccak-256 hash of EncodeUnsigned.
func SigningDigest(tx *Transaction, params chain.Params) ([keccak.Size]byte, error) {
	enc, err := EncodeUnsigned(tx, params)
	if err != nil {
		return [keccak.Size]byte{}, fmt.Errorf("failed to encode transaction: %w", err)
	}
	return keccak.Sum256(enc), nil
}

// Sign returns a signed copy of tx. tx itself is left untouched.
func Sign(tx *Transaction, kp *keys.KeyPair, params chain.Params) (*Transaction, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	digest, err := SigningDigest(tx, params)
	if err != nil {
		return nil, err
	}
	sig, err := signature.Sign(kp, digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	signed := tx.Copy()
	signed.V = params.EncodeV(sig.RecoveryID)
	signed.R = sig.R
	signed.S = sig.S
	return signed, nil
}

// EncodeSigned returns the nine-field RLP encoding of a signed transaction.
func EncodeSigned(tx *Transaction) ([]byte, error) {
	if !tx.IsSigned() {
		return nil, fmt.Errorf("%w: transaction is not signed", ErrInvalidSignature)
	}
	return rlp.EncodeToBytes(&signedRLP{
		Nonce:    tx.Nonce,
		GasPrice: tx.GasPrice,
		GasLimit: tx.GasLimit,
		To:       tx.To,
		Value:    tx.Value,
		Data:     tx.Data,
		V:        tx.V,
		R:        tx.R,
		S:        tx.S,
	})
}

// DecodeSigned parses a signed encoding. Extra or missing fields, trailing
// bytes and non-canonical integers are rejected.
func DecodeSigned(b []byte) (*Transaction, error) {
	var dec signedRLP
	if err := rlp.DecodeBytes(b, &dec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEncoding, err)
	}
	if dec.Data == nil {
		dec.Data = []byte{}
	}
	return &Transaction{
		Nonce:    dec.Nonce,
		GasPrice: dec.GasPrice,
		GasLimit: dec.GasLimit,
		To:       dec.To,
		Value:    dec.Value,
		Data:     dec.Data,
		V:        dec.V,
		R:        dec.R,
		S:        dec.S,
	}, nil
}

// RecoverSender returns the address that signed tx. The chain is read from V.
func RecoverSender(tx *Transaction) (address.Address, error) {
	if !tx.IsSigned() {
		return address.Address{}, fmt.Errorf("%w: transaction is not signed", ErrInvalidSignature)
	}
	params, err := chain.FromV(tx.V)
	if err != nil {
		return address.Address{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	recid, err := params.DecodeV(tx.V)
	if err != nil {
		return address.Address{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	digest, err := SigningDigest(tx, params)
	if err != nil {
		return address.Address{}, err
	}

	pub, err := signature.RecoverPublicKey(digest[:], &signature.Signature{R: tx.R, S: tx.S, RecoveryID: recid})
	if err != nil {
		return address.Address{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return address.FromPublicKey(pub), nil
}

// Hash is the Keccak-256 hash of the signed encoding.
func Hash(tx *Transaction) ([keccak.Size]byte, error) {
	enc, err := EncodeSigned(tx)
	if err != nil {
		return [keccak.Size]byte{}, err
	}
	return keccak.Sum256(enc), nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
