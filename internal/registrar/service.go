package registrar

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"selns/internal/events"
	"selns/internal/registry"
	"selns/internal/state"
	"selns/pkg/clock"
	"selns/pkg/domain"
	dErrors "selns/pkg/domain-errors"
	"selns/pkg/namehash"
)

// Service is the lease ledger entry-point layer. The commit-reveal
// registration service drives RegisterTx/RenewTx inside its own
// transaction; Transfer and Approve are direct holder operations.
type Service struct {
	store     state.Store
	clock     clock.Clock
	principal domain.Principal
	grace     time.Duration
	policy    RenewPolicy
	events    events.Publisher
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithEvents(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithGracePeriod(d time.Duration) Option {
	return func(s *Service) { s.grace = d }
}

func WithRenewPolicy(p RenewPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// New constructs a Service. principal is the system identity that owns the
// TLD node in the registry tree.
func New(store state.Store, clk clock.Clock, principal domain.Principal, opts ...Option) *Service {
	s := &Service{
		store:     store,
		clock:     clk,
		principal: principal,
		grace:     DefaultGracePeriod,
		policy:    RenewAnyoneWhileNotAvailable,
		events:    events.Discard{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Principal returns the registrar's system identity.
func (s *Service) Principal() domain.Principal { return s.principal }

// GracePeriod returns the configured grace window.
func (s *Service) GracePeriod() time.Duration { return s.grace }

// Policy returns the configured grace-period renewal policy.
func (s *Service) Policy() RenewPolicy { return s.policy }

// Available reports lease-level availability for a labelhash.
func (s *Service) Available(ctx context.Context, label namehash.Hash) (bool, error) {
	now := s.clock.Now()
	var available bool
	err := s.store.View(ctx, func(tx state.Tx) error {
		var err error
		available, err = AvailableTx(tx, label, now, s.grace)
		return err
	})
	return available, err
}

// NameExpires returns the lease expiry, or the zero time when no lease
// exists.
func (s *Service) NameExpires(ctx context.Context, label namehash.Hash) (time.Time, error) {
	var expires time.Time
	err := s.store.View(ctx, func(tx state.Tx) error {
		lease, ok, err := tx.GetLease(label)
		if err != nil {
			return err
		}
		if ok {
			expires = lease.ExpiresAt
		}
		return nil
	})
	return expires, err
}

// Holder returns the current lease holder, zero when no lease exists.
func (s *Service) Holder(ctx context.Context, label namehash.Hash) (domain.Principal, error) {
	var holder domain.Principal
	err := s.store.View(ctx, func(tx state.Tx) error {
		lease, ok, err := tx.GetLease(label)
		if err != nil {
			return err
		}
		if ok {
			holder = lease.Holder
		}
		return nil
	})
	return holder, err
}

// Approve lets the current holder delegate transfer rights for one lease
// token to another principal.
func (s *Service) Approve(ctx context.Context, caller domain.Principal, label namehash.Hash, delegate domain.Principal) error {
	now := s.clock.Now()
	return s.store.RunInTx(ctx, func(tx state.Tx) error {
		lease, ok, err := tx.GetLease(label)
		if err != nil {
			return err
		}
		if !ok || now.After(lease.ExpiresAt.Add(s.grace)) {
			return dErrors.New(dErrors.CodeNotFound, "no active lease for label")
		}
		if lease.Holder != caller {
			return dErrors.New(dErrors.CodeUnauthorized, "only the holder may approve a delegate")
		}
		if delegate.IsZero() {
			return tx.DeleteApproval(label)
		}
		return tx.PutApproval(label, delegate)
	})
}

// Transfer moves the lease token from the current holder to another
// principal. The caller must be the holder or its approved delegate. Expiry
// is untouched; the registry subnode owner follows the new holder in the
// same transaction.
func (s *Service) Transfer(ctx context.Context, caller domain.Principal, label namehash.Hash, from, to domain.Principal) error {
	if to.IsZero() {
		return dErrors.New(dErrors.CodeBadRequest, "transfer target is required")
	}
	now := s.clock.Now()
	err := s.store.RunInTx(ctx, func(tx state.Tx) error {
		lease, ok, err := tx.GetLease(label)
		if err != nil {
			return err
		}
		if !ok || now.After(lease.ExpiresAt.Add(s.grace)) {
			return dErrors.New(dErrors.CodeNotFound, "no active lease for label")
		}
		if lease.Holder != from {
			return dErrors.New(dErrors.CodeConflict, "from principal does not hold the lease")
		}
		if caller != from {
			delegate, approved, err := tx.GetApproval(label)
			if err != nil {
				return err
			}
			if !approved || delegate != caller {
				return dErrors.New(dErrors.CodeUnauthorized, "caller is neither holder nor approved delegate")
			}
		}

		lease.Holder = to
		if err := tx.PutLease(label, lease); err != nil {
			return err
		}
		if err := tx.DeleteApproval(label); err != nil {
			return err
		}
		_, err = registry.SetSubnodeOwnerTx(tx, s.principal, BaseNode(), label, to)
		return err
	})
	if err != nil {
		return err
	}

	s.events.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Kind:      events.KindOwnershipTransferred,
		Timestamp: now.UTC(),
		Label:     label.Hex(),
		From:      from,
		To:        to,
	})
	return nil
}
