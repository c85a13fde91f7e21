package registry

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"selns/internal/events"
	"selns/internal/state"
	"selns/pkg/clock"
	"selns/pkg/domain"
	"selns/pkg/namehash"
)

// Service exposes the ownership tree as transactional entry points and
// emits change notifications once a mutation commits.
type Service struct {
	store  state.Store
	clock  clock.Clock
	events events.Publisher
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithEvents(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// New constructs a Service.
func New(store state.Store, clk clock.Clock, opts ...Option) *Service {
	s := &Service{store: store, clock: clk, events: events.Discard{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NodeRecord is the read view of one node.
type NodeRecord struct {
	Node     namehash.Hash
	Owner    domain.Principal
	Resolver domain.Principal
	TTL      uint64
	Exists   bool
}

// SetSubnodeOwner creates or reassigns a child node under parent.
func (s *Service) SetSubnodeOwner(ctx context.Context, caller domain.Principal, parent, label namehash.Hash, owner domain.Principal) (namehash.Hash, error) {
	var child namehash.Hash
	err := s.store.RunInTx(ctx, func(tx state.Tx) error {
		var err error
		child, err = SetSubnodeOwnerTx(tx, caller, parent, label, owner)
		return err
	})
	if err != nil {
		return namehash.Hash{}, err
	}
	s.emit(ctx, events.Event{
		Kind:  events.KindNodeOwnerChanged,
		Node:  child.Hex(),
		Label: label.Hex(),
		Owner: owner,
	})
	return child, nil
}

// SetOwner reassigns a node to a new owner.
func (s *Service) SetOwner(ctx context.Context, caller domain.Principal, node namehash.Hash, owner domain.Principal) error {
	err := s.store.RunInTx(ctx, func(tx state.Tx) error {
		return SetOwnerTx(tx, caller, node, owner)
	})
	if err != nil {
		return err
	}
	s.emit(ctx, events.Event{Kind: events.KindNodeOwnerChanged, Node: node.Hex(), Owner: owner})
	return nil
}

// SetResolver rebinds a node's resolver reference.
func (s *Service) SetResolver(ctx context.Context, caller domain.Principal, node namehash.Hash, resolver domain.Principal) error {
	err := s.store.RunInTx(ctx, func(tx state.Tx) error {
		return SetResolverTx(tx, caller, node, resolver)
	})
	if err != nil {
		return err
	}
	s.emit(ctx, events.Event{Kind: events.KindResolverChanged, Node: node.Hex(), Resolver: resolver})
	return nil
}

// SetTTL updates a node's time-to-live.
func (s *Service) SetTTL(ctx context.Context, caller domain.Principal, node namehash.Hash, ttl uint64) error {
	return s.store.RunInTx(ctx, func(tx state.Tx) error {
		return SetTTLTx(tx, caller, node, ttl)
	})
}

// Lookup returns the node record; Exists is false for untouched nodes.
func (s *Service) Lookup(ctx context.Context, node namehash.Hash) (NodeRecord, error) {
	rec := NodeRecord{Node: node}
	err := s.store.View(ctx, func(tx state.Tx) error {
		n, ok, err := tx.GetNode(node)
		if err != nil {
			return err
		}
		rec.Owner = n.Owner
		rec.Resolver = n.Resolver
		rec.TTL = n.TTL
		rec.Exists = ok && !n.Owner.IsZero()
		return nil
	})
	return rec, err
}

// Owner returns the node owner, zero for nonexistent nodes.
func (s *Service) Owner(ctx context.Context, node namehash.Hash) (domain.Principal, error) {
	rec, err := s.Lookup(ctx, node)
	return rec.Owner, err
}

// RecordExists reports whether the node has ever been owned.
func (s *Service) RecordExists(ctx context.Context, node namehash.Hash) (bool, error) {
	rec, err := s.Lookup(ctx, node)
	return rec.Exists, err
}

func (s *Service) emit(ctx context.Context, e events.Event) {
	e.ID = uuid.NewString()
	if e.Timestamp.IsZero() {
		e.Timestamp = s.clock.Now().UTC()
	}
	s.events.Publish(ctx, e)
}
