// Package chain describes the network a signature is bound to.
//
// A Params value either carries a chain identifier, in which case signatures
// encode their recovery id as chainID*2 + 35 + recid and are valid on that
// chain only, or carries none (Legacy), in which case the recovery value is
// 27 + recid and the signature is replayable on any chain.
package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// ErrChainMismatch is returned when an encoded v value does not belong to the
// chain it is checked against.
var ErrChainMismatch = errors.New("v value does not match chain")

// ReplayableVBase is the v base of signatures without replay protection.
const ReplayableVBase = 27

var (
	big2  = big.NewInt(2)
	big27 = big.NewInt(ReplayableVBase)
	big28 = big.NewInt(ReplayableVBase + 1)
	big35 = big.NewInt(35)
)

// Params are immutable per-network signing settings. The zero value is Legacy.
type Params struct {
	id *big.Int
}

// Legacy signs without replay protection.
var Legacy = Params{}

// Named presets.
var (
	Mainnet     = New(1)
	MoacMainnet = New(99)
	MoacTestnet = New(101)
)

// New returns replay-protected params for the given chain id.
func New(id uint64) Params {
	return Params{id: new(big.Int).SetUint64(id)}
}

// NewBig is New for identifiers that do not fit in 64 bits. A nil id yields
// Legacy.
func NewBig(id *big.Int) (Params, error) {
	if id == nil {
		return Legacy, nil
	}
	if id.Sign() < 0 {
		return Params{}, fmt.Errorf("chain id must not be negative: %s", id)
	}
	return Params{id: new(big.Int).Set(id)}, nil
}

// Preset resolves a preset name or a decimal chain id.
func Preset(name string) (Params, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "legacy", "none", "replayable":
		return Legacy, nil
	case "mainnet", "ethereum", "eth":
		return Mainnet, nil
	case "moac", "moac-mainnet":
		return MoacMainnet, nil
	case "moac-testnet":
		return MoacTestnet, nil
	}
	id, err := strconv.ParseUint(strings.TrimSpace(name), 10, 64)
	if err != nil {
		return Params{}, fmt.Errorf("unknown chain %q", name)
	}
	return New(id), nil
}

// ChainID returns a copy of the chain identifier, or nil for Legacy.
func (p Params) ChainID() *big.Int {
	if p.id == nil {
		return nil
	}
	return new(big.Int).Set(p.id)
}

// IsReplayProtected reports whether the params carry a chain id.
func (p Params) IsReplayProtected() bool {
	return p.id != nil
}

// VBase is 27 for Legacy and chainID*2 + 35 otherwise.
func (p Params) VBase() *big.Int {
	if p.id == nil {
		return new(big.Int).Set(big27)
	}
	v := new(big.Int).Mul(p.id, big2)
	return v.Add(v, big35)
}

// EncodeV turns a raw recovery id into the wire-level v value.
func (p Params) EncodeV(recoveryID byte) *big.Int {
	v := p.VBase()
	return v.Add(v, big.NewInt(int64(recoveryID)))
}

// DecodeV inverts EncodeV. Replayable values (27, 28) are accepted whatever
// the params; any other value must have been produced with these params.
func (p Params) DecodeV(v *big.Int) (byte, error) {
	if v == nil {
		return 0, fmt.Errorf("%w: missing v", ErrChainMismatch)
	}
	if IsReplayableV(v) {
		return byte(v.Int64() - ReplayableVBase), nil
	}
	if p.id == nil {
		return 0, fmt.Errorf("%w: v %s is replay protected, params are legacy", ErrChainMismatch, v)
	}
	recid := new(big.Int).Sub(v, p.VBase())
	if recid.Sign() < 0 || recid.Cmp(big.NewInt(1)) > 0 {
		return 0, fmt.Errorf("%w: v %s is not valid for chain %s", ErrChainMismatch, v, p.id)
	}
	return byte(recid.Int64()), nil
}

// IsReplayableV reports whether v is 27 or 28.
func (p Params) IsReplayableV(v *big.Int) bool {
	return IsReplayableV(v)
}

// Equal reports whether both params describe the same chain.
func (p Params) Equal(o Params) bool {
	if p.id == nil || o.id == nil {
		return p.id == nil && o.id == nil
	}
	return p.id.Cmp(o.id) == 0
}

func (p Params) String() string {
	if p.id == nil {
		return "legacy"
	}
	return "chain " + p.id.String()
}

// IsReplayableV reports whether v is 27 or 28.
func IsReplayableV(v *big.Int) bool {
	return v != nil && (v.Cmp(big27) == 0 || v.Cmp(big28) == 0)
}

// FromV derives the params a v value was encoded with.
func FromV(v *big.Int) (Params, error) {
	if v == nil {
		return Params{}, fmt.Errorf("%w: missing v", ErrChainMismatch)
	}
	if IsReplayableV(v) {
		return Legacy, nil
	}
	if v.Cmp(big35) < 0 {
		return Params{}, fmt.Errorf("%w: invalid v %s", ErrChainMismatch, v)
	}
	id := new(big.Int).Sub(v, big35)
	return Params{id: id.Rsh(id, 1)}, nil
}
