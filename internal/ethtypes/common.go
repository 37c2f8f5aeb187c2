// Package ethtypes defines the small set of fixed-size primitives shared by
// every engine in the module: 32-byte roots, 20-byte addresses, and the
// BLS12-381 key/signature sizes used by the sync-committee verifier.
package ethtypes

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	HashLength         = 32
	AddressLength      = 20
	BLSPubkeyLength    = 48
	BLSSignatureLength = 96
)

// Hash is a 32-byte hash-tree-root or Keccak-256 digest.
type Hash [HashLength]byte

// Address is a 20-byte execution-layer account address.
type Address [AddressLength]byte

// BLSPubkey is a compressed G1 point (48 bytes).
type BLSPubkey [BLSPubkeyLength]byte

// BLSSignature is a compressed G2 point (96 bytes).
type BLSSignature [BLSSignatureLength]byte

func BytesToHash(b []byte) (h Hash) {
	h.SetBytes(b)
	return h
}

func HexToHash(s string) Hash { return BytesToHash(fromHex(s)) }

func (h Hash) Bytes() []byte { return h[:] }
func (h Hash) Hex() string   { return "0x" + hex.EncodeToString(h[:]) }
func (h Hash) String() string { return h.Hex() }
func (h Hash) IsZero() bool  { return h == Hash{} }

func (h *Hash) SetBytes(b []byte) {
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

func BytesToAddress(b []byte) (a Address) {
	a.SetBytes(b)
	return a
}

func HexToAddress(s string) Address { return BytesToAddress(fromHex(s)) }

func (a Address) Bytes() []byte  { return a[:] }
func (a Address) Hex() string    { return "0x" + hex.EncodeToString(a[:]) }
func (a Address) String() string { return a.Hex() }
func (a Address) IsZero() bool   { return a == Address{} }

func (a *Address) SetBytes(b []byte) {
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
}

func BytesToBLSPubkey(b []byte) (p BLSPubkey) {
	copy(p[:], b)
	return p
}

func (p BLSPubkey) Bytes() []byte { return p[:] }
func (p BLSPubkey) Hex() string   { return "0x" + hex.EncodeToString(p[:]) }

func BytesToBLSSignature(b []byte) (s BLSSignature) {
	copy(s[:], b)
	return s
}

func (s BLSSignature) Bytes() []byte { return s[:] }
func (s BLSSignature) Hex() string   { return "0x" + hex.EncodeToString(s[:]) }

func fromHex(s string) []byte {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

// FormatQuantity renders n as a 0x-prefixed minimal hex quantity, matching
// the JSON-RPC "quantity" encoding used throughout the eth_* API surface.
func FormatQuantity(n uint64) string {
	return fmt.Sprintf("0x%x", n)
}
