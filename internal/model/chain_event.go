package model

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ChainEvent is a decoded contract event with its block and transaction metadata.
// Args values are *big.Int, common.Address, common.Hash, bool, string, or []byte
// depending on the declared field type. Numeric fields are always *big.Int; 256-bit
// values never pass through a native float.
type ChainEvent struct {
	Contract    common.Address
	Name        string
	Args        map[string]interface{}
	BlockNumber uint64
	BlockHash   common.Hash
	TxHash      common.Hash
	LogIndex    uint
	ObservedAt  time.Time
}

// ID returns the deduplication identity of the event: (txHash, logIndex).
func (e *ChainEvent) ID() string {
	return fmt.Sprintf("%s:%d", e.TxHash.Hex(), e.LogIndex)
}

// Big returns the named argument as a *big.Int, or zero if absent or mistyped.
// ABI decoding yields native integers for widths of 64 bits and below; those
// are widened here so callers see one numeric type.
func (e *ChainEvent) Big(name string) *big.Int {
	switch v := e.Args[name].(type) {
	case *big.Int:
		if v != nil {
			return v
		}
	case uint8:
		return new(big.Int).SetUint64(uint64(v))
	case uint16:
		return new(big.Int).SetUint64(uint64(v))
	case uint32:
		return new(big.Int).SetUint64(uint64(v))
	case uint64:
		return new(big.Int).SetUint64(v)
	case int8:
		return big.NewInt(int64(v))
	case int16:
		return big.NewInt(int64(v))
	case int32:
		return big.NewInt(int64(v))
	case int64:
		return big.NewInt(v)
	}
	return new(big.Int)
}

// Address returns the named argument as an address, or the zero address.
func (e *ChainEvent) Address(name string) common.Address {
	if v, ok := e.Args[name].(common.Address); ok {
		return v
	}
	return common.Address{}
}

// String returns the named argument as a string, or "".
func (e *ChainEvent) String(name string) string {
	if v, ok := e.Args[name].(string); ok {
		return v
	}
	return ""
}

// Hash returns the named argument as a 32-byte value, or the zero hash.
// Indexed arguments decode to common.Hash, non-indexed bytes32 to [32]byte.
func (e *ChainEvent) Hash(name string) common.Hash {
	switch v := e.Args[name].(type) {
	case common.Hash:
		return v
	case [32]byte:
		return common.Hash(v)
	}
	return common.Hash{}
}

// Bool returns the named argument as a bool, or false.
func (e *ChainEvent) Bool(name string) bool {
	if v, ok := e.Args[name].(bool); ok {
		return v
	}
	return false
}
