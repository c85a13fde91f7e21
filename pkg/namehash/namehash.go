// Package namehash implements the hierarchical name hashing scheme used to
// address registry nodes without storing full path strings.
//
// A node identity is built recursively: the root is 32 zero bytes, and each
// child is keccak256(parent || keccak256(label)). A labelhash addresses a
// single segment and doubles as the lease token identifier.
package namehash

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"

	dErrors "selns/pkg/domain-errors"
)

// Hash is a 32-byte keccak-256 digest.
type Hash [32]byte

// Root is the identity of the registry root node.
var Root = Hash{}

// Hex returns the 0x-prefixed lowercase hex form.
func (h Hash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

// IsZero reports whether the hash is all zero bytes.
func (h Hash) IsZero() bool { return h == Hash{} }

// ParseHex parses a 0x-prefixed 32-byte hex string.
func ParseHex(s string) (Hash, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return Hash{}, dErrors.New(dErrors.CodeBadRequest, "hash must be 0x-prefixed")
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil || len(raw) != 32 {
		return Hash{}, dErrors.New(dErrors.CodeBadRequest, "hash must be 32 hex-encoded bytes")
	}
	var h Hash
	copy(h[:], raw)
	return h, nil
}

// Keccak256 hashes arbitrary byte slices with legacy keccak-256.
func Keccak256(data ...[]byte) Hash {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	var h Hash
	d.Sum(h[:0])
	return h
}

// LabelHash hashes a single name segment (no dots).
func LabelHash(label string) Hash {
	return Keccak256([]byte(label))
}

// Combine derives a child node identity from its parent and labelhash.
func Combine(parent, label Hash) Hash {
	return Keccak256(parent[:], label[:])
}

// NameHash computes the node identity for a dotted name, most-specific label
// first ("alice.sel"). The empty name maps to the root.
func NameHash(name string) Hash {
	node := Root
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		node = Combine(node, LabelHash(labels[i]))
	}
	return node
}
