// Package registry implements the hierarchical ownership tree. Nodes are
// addressed by namehash; each carries an owner, an optional resolver
// reference, and a TTL. Mutations are owner-gated: a call by anyone else
// fails with an authorization error, never a silent no-op.
package registry

import (
	"selns/internal/state"
	"selns/pkg/domain"
	dErrors "selns/pkg/domain-errors"
	"selns/pkg/namehash"
)

// Tx-level operations. They run inside a caller-supplied state transaction
// so a lease mutation and its subnode-owner update commit together; the
// Service wraps them for direct API access.

// SetSubnodeOwnerTx creates or reassigns ownership of parent's child node.
// Only the current owner of parent may call it. The child identity is
// derived deterministically from (parent, label).
func SetSubnodeOwnerTx(tx state.Tx, caller domain.Principal, parent, label namehash.Hash, owner domain.Principal) (namehash.Hash, error) {
	if err := requireOwner(tx, caller, parent); err != nil {
		return namehash.Hash{}, err
	}
	child := namehash.Combine(parent, label)
	node, _, err := tx.GetNode(child)
	if err != nil {
		return namehash.Hash{}, err
	}
	node.Owner = owner
	if err := tx.PutNode(child, node); err != nil {
		return namehash.Hash{}, err
	}
	return child, nil
}

// SetOwnerTx reassigns a node to a new owner; current-owner only.
func SetOwnerTx(tx state.Tx, caller domain.Principal, node namehash.Hash, owner domain.Principal) error {
	if err := requireOwner(tx, caller, node); err != nil {
		return err
	}
	n, _, err := tx.GetNode(node)
	if err != nil {
		return err
	}
	n.Owner = owner
	return tx.PutNode(node, n)
}

// SetResolverTx rebinds a node's resolver reference; current-owner only.
func SetResolverTx(tx state.Tx, caller domain.Principal, node namehash.Hash, resolver domain.Principal) error {
	if err := requireOwner(tx, caller, node); err != nil {
		return err
	}
	n, _, err := tx.GetNode(node)
	if err != nil {
		return err
	}
	n.Resolver = resolver
	return tx.PutNode(node, n)
}

// SetTTLTx updates a node's time-to-live; current-owner only.
func SetTTLTx(tx state.Tx, caller domain.Principal, node namehash.Hash, ttl uint64) error {
	if err := requireOwner(tx, caller, node); err != nil {
		return err
	}
	n, _, err := tx.GetNode(node)
	if err != nil {
		return err
	}
	n.TTL = ttl
	return tx.PutNode(node, n)
}

func requireOwner(tx state.Tx, caller domain.Principal, node namehash.Hash) error {
	n, ok, err := tx.GetNode(node)
	if err != nil {
		return err
	}
	if !ok || n.Owner.IsZero() || n.Owner != caller || caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller does not own the node")
	}
	return nil
}
