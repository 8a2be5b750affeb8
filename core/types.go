// Package core provides the fundamental types and shared errors for the
// smart-account execution engine.
package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Address represents a 20-byte account identifier on the ledger.
type Address [20]byte

// Hash represents a 32-byte hash or storage word.
type Hash [32]byte

// AddressLength is the byte width of an Address.
const AddressLength = 20

// WordLength is the byte width of a Hash / 256-bit storage word.
const WordLength = 32

// NativeAsset is the sentinel address that denotes the ledger's base
// currency in places where an asset address is expected.
var NativeAsset = Address{
	0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee,
	0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee,
}

// ZeroAddress is the all-zero address.
var ZeroAddress = Address{}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Bytes returns the address as a byte slice.
func (a Address) Bytes() []byte {
	return a[:]
}

// IsZero reports whether the address is the zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// IsNative reports whether the address is the native-asset sentinel.
func (a Address) IsNative() bool {
	return a == NativeAsset
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// Bytes returns the hash as a byte slice.
func (h Hash) Bytes() []byte {
	return h[:]
}

// IsZero reports whether the hash is all zeroes.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// BytesToAddress copies b into an Address, truncating from the left if b is
// longer than 20 bytes.
func BytesToAddress(b []byte) Address {
	var addr Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(addr[AddressLength-len(b):], b)
	return addr
}

// BytesToHash copies b into a Hash, truncating from the left if b is longer
// than 32 bytes.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > WordLength {
		b = b[len(b)-WordLength:]
	}
	copy(h[WordLength-len(b):], b)
	return h
}

// AddressFromString converts a hex string (with or without 0x prefix) to an
// Address.
func AddressFromString(s string) (Address, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != AddressLength*2 {
		return Address{}, ErrInvalidArgument
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, err
	}
	var addr Address
	copy(addr[:], b)
	return addr, nil
}

// HashFromString converts a hex string (with or without 0x prefix) to a Hash.
func HashFromString(s string) (Hash, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != WordLength*2 {
		return Hash{}, ErrInvalidArgument
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, err
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// GetHash calculates the SHA-256 hash of data.
func GetHash(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}
