package transaction

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/mahdiidarabi/chainkey/internal/hexutil"
	"github.com/mahdiidarabi/chainkey/pkg/address"
)

// txJSON is the presentation form: quantities as 0x hex and the payload as
// 0x-prefixed hex.
type txJSON struct {
	Nonce    string           `json:"nonce"`
	GasPrice string           `json:"gasPrice"`
	Gas      string           `json:"gas"`
	To       *address.Address `json:"to"`
	Value    string           `json:"value"`
	Input    string           `json:"input"`
	V        string           `json:"v,omitempty"`
	R        string           `json:"r,omitempty"`
	S        string           `json:"s,omitempty"`
	Hash     string           `json:"hash,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (tx *Transaction) MarshalJSON() ([]byte, error) {
	enc := txJSON{
		Nonce:    hexutil.EncodeBig(new(big.Int).SetUint64(tx.Nonce)),
		GasPrice: hexutil.EncodeBig(tx.GasPrice),
		Gas:      hexutil.EncodeBig(new(big.Int).SetUint64(tx.GasLimit)),
		To:       tx.To,
		Value:    hexutil.EncodeBig(tx.Value),
		Input:    hexutil.Encode(tx.Data),
	}
	if tx.IsSigned() {
		enc.V = hexutil.EncodeBig(tx.V)
		enc.R = hexutil.EncodeBig(tx.R)
		enc.S = hexutil.EncodeBig(tx.S)
		h, err := Hash(tx)
		if err != nil {
			return nil, err
		}
		enc.Hash = hexutil.Encode(h[:])
	}
	return json.Marshal(&enc)
}

// UnmarshalJSON implements json.Unmarshaler. Quantities may be 0x hex or
// decimal strings.
func (tx *Transaction) UnmarshalJSON(data []byte) error {
	var dec txJSON
	if err := json.Unmarshal(data, &dec); err != nil {
		return err
	}

	nonce, err := parseUint64("nonce", dec.Nonce)
	if err != nil {
		return err
	}
	gas, err := parseUint64("gas", dec.Gas)
	if err != nil {
		return err
	}
	gasPrice, err := parseQuantity("gasPrice", dec.GasPrice)
	if err != nil {
		return err
	}
	value, err := parseQuantity("value", dec.Value)
	if err != nil {
		return err
	}
	input, err := hexutil.Decode(dec.Input)
	if err != nil {
		return fmt.Errorf("%w: input: %w", ErrInvalidTransaction, err)
	}

	out := Transaction{
		Nonce:    nonce,
		GasPrice: gasPrice,
		GasLimit: gas,
		To:       dec.To,
		Value:    value,
		Data:     input,
	}
	if dec.V != "" || dec.R != "" || dec.S != "" {
		if out.V, err = parseQuantity("v", dec.V); err != nil {
			return err
		}
		if out.R, err = parseQuantity("r", dec.R); err != nil {
			return err
		}
		if out.S, err = parseQuantity("s", dec.S); err != nil {
			return err
		}
	}
	*tx = out
	return nil
}

func parseQuantity(field, s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidTransaction, field)
	}
	v, err := hexutil.ParseBigInt(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidTransaction, field, err)
	}
	if v.Sign() < 0 || v.BitLen() > maxQuantityBitLen {
		return nil, fmt.Errorf("%w: %s out of range", ErrInvalidTransaction, field)
	}
	return v, nil
}

func parseUint64(field, s string) (uint64, error) {
	v, err := parseQuantity(field, s)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s does not fit in 64 bits", ErrInvalidTransaction, field)
	}
	return v.Uint64(), nil
}
