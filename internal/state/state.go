// Package state is the durable registry state: node records, leases,
// reservations, resolver records, reverse bindings, and payment balances.
//
// All mutating entry points of the system run inside Store.RunInTx so that a
// lease mutation and its matching registry subnode write land in one
// transaction. Partial application is structurally impossible: the in-memory
// store stages writes in an overlay published only on commit, and the
// PostgreSQL store uses a single sql.Tx.
//
// Commitments are deliberately NOT part of this store — consuming a
// commitment must survive a failed registration, so they live in their own
// store (see internal/registration/commitstore).
package state

import (
	"context"
	"time"

	"selns/pkg/domain"
	"selns/pkg/namehash"
)

// Node is a registry tree record. A node exists iff its owner is non-zero.
type Node struct {
	Owner    domain.Principal
	Resolver domain.Principal
	TTL      uint64
}

// Lease is the exclusive claim on a leaf label. The lease doubles as the
// transferable ownership token whose token id equals the labelhash.
type Lease struct {
	Holder    domain.Principal
	ExpiresAt time.Time
}

// RecordKind enumerates the fixed resolver record schema. The registry is
// not a general-purpose key-value store; only these kinds exist.
type RecordKind string

const (
	RecordAddr      RecordKind = "addr"
	RecordText      RecordKind = "text"
	RecordMultiAddr RecordKind = "multiaddr"
)

// ValidRecordKind reports whether k names a supported record kind.
func ValidRecordKind(k RecordKind) bool {
	switch k {
	case RecordAddr, RecordText, RecordMultiAddr:
		return true
	}
	return false
}

// Record is one resolver record bound to a node.
type Record struct {
	Kind  RecordKind `json:"kind"`
	Key   string     `json:"key"`
	Value string     `json:"value"`
}

// Tx is one transaction's view of the state. Reads see earlier writes made
// in the same transaction.
type Tx interface {
	// Registry nodes.
	GetNode(id namehash.Hash) (Node, bool, error)
	PutNode(id namehash.Hash, n Node) error

	// Leases and lease-token approvals.
	GetLease(label namehash.Hash) (Lease, bool, error)
	PutLease(label namehash.Hash, l Lease) error
	GetApproval(label namehash.Hash) (domain.Principal, bool, error)
	PutApproval(label namehash.Hash, delegate domain.Principal) error
	DeleteApproval(label namehash.Hash) error

	// Administrative reservation overlay.
	Reserved(label namehash.Hash) (bool, error)
	PutReservation(label namehash.Hash) error
	DeleteReservation(label namehash.Hash) error

	// Resolver records.
	GetRecord(node namehash.Hash, kind RecordKind, key string) (string, bool, error)
	PutRecord(node namehash.Hash, rec Record) error
	ListRecords(node namehash.Hash) ([]Record, error)

	// Reverse bindings.
	GetReverse(p domain.Principal) (string, bool, error)
	PutReverse(p domain.Principal, name string) error
	DeleteReverse(p domain.Principal) error

	// Payment balances, in microcredits.
	Balance(p domain.Principal) (uint64, error)
	SetBalance(p domain.Principal, amount uint64) error
}

// Store provides transactional access to the registry state.
type Store interface {
	// RunInTx executes fn in an all-or-nothing transaction. Any error from
	// fn aborts the transaction with no partial writes.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
	// View executes fn against a read-only snapshot.
	View(ctx context.Context, fn func(tx Tx) error) error
}
