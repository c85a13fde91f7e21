package state

import (
	"context"
	"sync"
	"time"

	"selns/pkg/domain"
	dErrors "selns/pkg/domain-errors"
	"selns/pkg/namehash"
)

// defaultTxTimeout bounds a single state transaction.
const defaultTxTimeout = 5 * time.Second

type recordKey struct {
	node namehash.Hash
	kind RecordKind
	key  string
}

// Memory is the in-memory store. A single mutex serializes transactions,
// matching the strictly-ordered ledger model: one mutation applied at a
// time. Writes are staged in an overlay and published only on commit, which
// intentionally favors clarity over performance.
type Memory struct {
	mu           sync.RWMutex
	nodes        map[namehash.Hash]Node
	leases       map[namehash.Hash]Lease
	approvals    map[namehash.Hash]domain.Principal
	reservations map[namehash.Hash]struct{}
	records      map[recordKey]string
	reverse      map[domain.Principal]string
	balances     map[domain.Principal]uint64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		nodes:        make(map[namehash.Hash]Node),
		leases:       make(map[namehash.Hash]Lease),
		approvals:    make(map[namehash.Hash]domain.Principal),
		reservations: make(map[namehash.Hash]struct{}),
		records:      make(map[recordKey]string),
		reverse:      make(map[domain.Principal]string),
		balances:     make(map[domain.Principal]uint64),
	}
}

func (m *Memory) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	tx := newMemTx(m)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *Memory) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "view aborted: context cancelled")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(newMemTx(m))
}

// memTx stages writes in overlay maps. A nil-able tombstone marker handles
// deletes so reads inside the transaction observe them.
type memTx struct {
	base *Memory

	nodes        map[namehash.Hash]Node
	leases       map[namehash.Hash]Lease
	approvals    map[namehash.Hash]*domain.Principal
	reservations map[namehash.Hash]bool
	records      map[recordKey]string
	reverse      map[domain.Principal]*string
	balances     map[domain.Principal]uint64
}

func newMemTx(m *Memory) *memTx {
	return &memTx{
		base:         m,
		nodes:        make(map[namehash.Hash]Node),
		leases:       make(map[namehash.Hash]Lease),
		approvals:    make(map[namehash.Hash]*domain.Principal),
		reservations: make(map[namehash.Hash]bool),
		records:      make(map[recordKey]string),
		reverse:      make(map[domain.Principal]*string),
		balances:     make(map[domain.Principal]uint64),
	}
}

func (t *memTx) commit() {
	for id, n := range t.nodes {
		t.base.nodes[id] = n
	}
	for label, l := range t.leases {
		t.base.leases[label] = l
	}
	for label, delegate := range t.approvals {
		if delegate == nil {
			delete(t.base.approvals, label)
		} else {
			t.base.approvals[label] = *delegate
		}
	}
	for label, reserved := range t.reservations {
		if reserved {
			t.base.reservations[label] = struct{}{}
		} else {
			delete(t.base.reservations, label)
		}
	}
	for k, v := range t.records {
		t.base.records[k] = v
	}
	for p, name := range t.reverse {
		if name == nil {
			delete(t.base.reverse, p)
		} else {
			t.base.reverse[p] = *name
		}
	}
	for p, amount := range t.balances {
		t.base.balances[p] = amount
	}
}

func (t *memTx) GetNode(id namehash.Hash) (Node, bool, error) {
	if n, ok := t.nodes[id]; ok {
		return n, true, nil
	}
	n, ok := t.base.nodes[id]
	return n, ok, nil
}

func (t *memTx) PutNode(id namehash.Hash, n Node) error {
	t.nodes[id] = n
	return nil
}

func (t *memTx) GetLease(label namehash.Hash) (Lease, bool, error) {
	if l, ok := t.leases[label]; ok {
		return l, true, nil
	}
	l, ok := t.base.leases[label]
	return l, ok, nil
}

func (t *memTx) PutLease(label namehash.Hash, l Lease) error {
	t.leases[label] = l
	return nil
}

func (t *memTx) GetApproval(label namehash.Hash) (domain.Principal, bool, error) {
	if d, ok := t.approvals[label]; ok {
		if d == nil {
			return domain.Zero, false, nil
		}
		return *d, true, nil
	}
	d, ok := t.base.approvals[label]
	return d, ok, nil
}

func (t *memTx) PutApproval(label namehash.Hash, delegate domain.Principal) error {
	t.approvals[label] = &delegate
	return nil
}

func (t *memTx) DeleteApproval(label namehash.Hash) error {
	t.approvals[label] = nil
	return nil
}

func (t *memTx) Reserved(label namehash.Hash) (bool, error) {
	if reserved, ok := t.reservations[label]; ok {
		return reserved, nil
	}
	_, ok := t.base.reservations[label]
	return ok, nil
}

func (t *memTx) PutReservation(label namehash.Hash) error {
	t.reservations[label] = true
	return nil
}

func (t *memTx) DeleteReservation(label namehash.Hash) error {
	t.reservations[label] = false
	return nil
}

func (t *memTx) GetRecord(node namehash.Hash, kind RecordKind, key string) (string, bool, error) {
	k := recordKey{node: node, kind: kind, key: key}
	if v, ok := t.records[k]; ok {
		return v, true, nil
	}
	v, ok := t.base.records[k]
	return v, ok, nil
}

func (t *memTx) PutRecord(node namehash.Hash, rec Record) error {
	t.records[recordKey{node: node, kind: rec.Kind, key: rec.Key}] = rec.Value
	return nil
}

func (t *memTx) ListRecords(node namehash.Hash) ([]Record, error) {
	merged := make(map[recordKey]string)
	for k, v := range t.base.records {
		if k.node == node {
			merged[k] = v
		}
	}
	for k, v := range t.records {
		if k.node == node {
			merged[k] = v
		}
	}
	out := make([]Record, 0, len(merged))
	for k, v := range merged {
		out = append(out, Record{Kind: k.kind, Key: k.key, Value: v})
	}
	return out, nil
}

func (t *memTx) GetReverse(p domain.Principal) (string, bool, error) {
	if name, ok := t.reverse[p]; ok {
		if name == nil {
			return "", false, nil
		}
		return *name, true, nil
	}
	name, ok := t.base.reverse[p]
	return name, ok, nil
}

func (t *memTx) PutReverse(p domain.Principal, name string) error {
	t.reverse[p] = &name
	return nil
}

func (t *memTx) DeleteReverse(p domain.Principal) error {
	t.reverse[p] = nil
	return nil
}

func (t *memTx) Balance(p domain.Principal) (uint64, error) {
	if amount, ok := t.balances[p]; ok {
		return amount, nil
	}
	return t.base.balances[p], nil
}

func (t *memTx) SetBalance(p domain.Principal, amount uint64) error {
	t.balances[p] = amount
	return nil
}
