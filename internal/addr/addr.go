// Package addr defines the 32-byte account address shared by the store,
// chain client, and RPC layers, plus its base58 wire encoding.
package addr

import (
	"encoding/hex"

	"github.com/mr-tron/base58"
)

// Address is a 32-byte on-chain account identifier (tape or miner).
type Address [32]byte

// Zero is the all-zero address, used as the miner address when no keypair
// path is configured.
var Zero Address

// String renders the address as base58, the wire format this node's RPC surface requires
// for getTapeAddress results.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// Hex renders the address as hex, used in log lines and error messages.
func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

// Parse decodes a base58-encoded address string.
func Parse(s string) (Address, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return Address{}, ErrBadLength
	}
	var a Address
	if len(b) != len(a) {
		return Address{}, ErrBadLength
	}
	copy(a[:], b)
	return a, nil
}

// ErrBadLength is returned by Parse when the string is not valid base58 or
// its decoded payload isn't 32 bytes.
var ErrBadLength = errLen{}

type errLen struct{}

func (errLen) Error() string { return "addr: not a base58-encoded 32-byte address" }
