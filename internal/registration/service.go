// Package registration is the commit-reveal registration controller. It
// validates names and durations, consults the pricing policy, drives the
// lease ledger, moves payment, and exposes the administrative reservation
// and batch surfaces.
package registration

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"selns/internal/events"
	"selns/internal/funds"
	"selns/internal/names"
	"selns/internal/pricing"
	"selns/internal/registrar"
	"selns/internal/registration/commitstore"
	regmetrics "selns/internal/registration/metrics"
	"selns/internal/state"
	"selns/pkg/clock"
	"selns/pkg/domain"
	dErrors "selns/pkg/domain-errors"
	"selns/pkg/namehash"
	"selns/pkg/platform/sentinel"
)

// Config sets the protocol windows.
type Config struct {
	// MinCommitmentAge is the mandatory delay between commit and reveal.
	// Observers of a fresh commit see only the opaque hash and cannot
	// front-run the reveal.
	MinCommitmentAge time.Duration
	// MaxCommitmentAge bounds how long a commitment stays revealable, so
	// hashes cannot be hoarded indefinitely.
	MaxCommitmentAge time.Duration
	// MinRegistrationDuration is the shortest purchasable lease.
	MinRegistrationDuration time.Duration
}

// DefaultConfig mirrors the production protocol windows.
func DefaultConfig() Config {
	return Config{
		MinCommitmentAge:        time.Minute,
		MaxCommitmentAge:        24 * time.Hour,
		MinRegistrationDuration: 28 * 24 * time.Hour,
	}
}

// Service orchestrates the registration protocol.
type Service struct {
	cfg       Config
	store     state.Store
	commits   commitstore.Store
	registrar *registrar.Service
	clock     clock.Clock

	// admin may run the reservation and withdraw surfaces; treasury is the
	// account registration revenue accumulates on.
	admin    domain.Principal
	treasury domain.Principal

	pmu    sync.RWMutex
	policy pricing.Policy

	events  events.Publisher
	logger  *slog.Logger
	metrics *regmetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithEvents(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithMetrics(m *regmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

func WithPolicy(p pricing.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// New constructs the controller.
func New(store state.Store, commits commitstore.Store, reg *registrar.Service, clk clock.Clock, admin, treasury domain.Principal, opts ...Option) *Service {
	s := &Service{
		cfg:       DefaultConfig(),
		store:     store,
		commits:   commits,
		registrar: reg,
		clock:     clk,
		admin:     admin,
		treasury:  treasury,
		policy:    pricing.NewTierPolicy(),
		events:    events.Discard{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Valid reports whether name passes syntax validation.
func (s *Service) Valid(name string) bool {
	return names.Valid(name)
}

// Available composes syntax validity, the reservation overlay, and
// lease-ledger availability.
func (s *Service) Available(ctx context.Context, name string) (bool, error) {
	if !names.Valid(name) {
		return false, nil
	}
	now := s.clock.Now()
	label := namehash.LabelHash(name)
	var available bool
	err := s.store.View(ctx, func(tx state.Tx) error {
		var err error
		available, err = s.availableTx(tx, label, now)
		return err
	})
	return available, err
}

func (s *Service) availableTx(tx state.Tx, label namehash.Hash, now time.Time) (bool, error) {
	reserved, err := tx.Reserved(label)
	if err != nil {
		return false, err
	}
	if reserved {
		return false, nil
	}
	return registrar.AvailableTx(tx, label, now, s.registrar.GracePeriod())
}

// RentPrice quotes a registration. The same computation prices the actual
// charge, so quote and charge cannot diverge.
func (s *Service) RentPrice(name string, duration time.Duration) pricing.Quote {
	s.pmu.RLock()
	defer s.pmu.RUnlock()
	return s.policy.Price(name, duration)
}

// MakeCommitment derives the commitment hash for the given parameters.
func (s *Service) MakeCommitment(p Params) namehash.Hash {
	return MakeCommitment(p)
}

// Commit records an opaque commitment hash. Re-submitting a hash that is
// still pending fails with CommitmentExists rather than refreshing its
// timestamp, or the anti-front-running property breaks.
func (s *Service) Commit(ctx context.Context, hash namehash.Hash) error {
	now := s.clock.Now()
	err := s.commits.Put(ctx, commitstore.Commitment{Hash: hash, SubmittedAt: now})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeCommitmentExists, "an identical commitment is already pending")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record commitment")
	}
	s.emit(ctx, events.Event{Kind: events.KindCommitmentCreated, Hash: hash.Hex()})
	if s.metrics != nil {
		s.metrics.CommitmentsCreated.Inc()
	}
	return nil
}

// Result reports the outcome of a successful registration or renewal.
type Result struct {
	Name      string           `json:"name"`
	Label     string           `json:"label"`
	Owner     domain.Principal `json:"owner,omitempty"`
	Base      uint64           `json:"base"`
	Premium   uint64           `json:"premium"`
	Refund    uint64           `json:"refund"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Register reveals a commitment and, when everything checks out, creates
// the lease, binds ownership and resolver records, and settles payment.
//
// The commitment is consumed before availability, duration, and payment are
// validated: a failed attempt burns it and costs the caller a fresh
// commit-and-wait cycle. That ordering is deliberate anti-grief behavior; a
// reveal must never be retryable verbatim.
func (s *Service) Register(ctx context.Context, caller domain.Principal, p Params, payment uint64) (Result, error) {
	now := s.clock.Now()
	hash := MakeCommitment(p)

	pending, err := s.commits.Get(ctx, hash)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Result{}, s.registerFailed(dErrors.New(dErrors.CodeCommitmentNotFound, "no pending commitment matches the revealed parameters"))
		}
		return Result{}, s.registerFailed(dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up commitment"))
	}
	if now.Before(pending.SubmittedAt.Add(s.cfg.MinCommitmentAge)) {
		return Result{}, s.registerFailed(dErrors.New(dErrors.CodeCommitmentTooNew, "commitment has not aged past the minimum reveal delay"))
	}
	if now.After(pending.SubmittedAt.Add(s.cfg.MaxCommitmentAge)) {
		return Result{}, s.registerFailed(dErrors.New(dErrors.CodeCommitmentExpired, "commitment aged past the maximum reveal window"))
	}

	// Consume before any further validation; see the function comment.
	if _, err := s.commits.Consume(ctx, hash); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Result{}, s.registerFailed(dErrors.New(dErrors.CodeCommitmentNotFound, "commitment was already consumed"))
		}
		return Result{}, s.registerFailed(dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume commitment"))
	}

	quote, result, err := s.settleRegistration(ctx, caller, p, payment, now)
	if err != nil {
		return Result{}, s.registerFailed(err)
	}

	s.emit(ctx, events.Event{
		Kind:      events.KindNameRegistered,
		Name:      p.Name,
		Label:     namehash.LabelHash(p.Name).Hex(),
		Owner:     p.Owner,
		Cost:      quote.Total(),
		ExpiresAt: result.ExpiresAt,
	})
	if s.metrics != nil {
		s.metrics.NamesRegistered.Inc()
		s.metrics.RevenueCollected.Add(float64(quote.Total()))
	}
	s.logger.InfoContext(ctx, "name registered",
		"name", p.Name,
		"owner", p.Owner,
		"cost", quote.Total(),
		"expires_at", result.ExpiresAt,
	)
	return result, nil
}

func (s *Service) settleRegistration(ctx context.Context, caller domain.Principal, p Params, payment uint64, now time.Time) (pricing.Quote, Result, error) {
	var quote pricing.Quote
	var result Result

	err := s.store.RunInTx(ctx, func(tx state.Tx) error {
		if err := names.Check(p.Name); err != nil {
			return err
		}
		if p.Owner.IsZero() {
			return dErrors.New(dErrors.CodeBadRequest, "owner is required")
		}
		label := namehash.LabelHash(p.Name)

		available, err := s.availableTx(tx, label, now)
		if err != nil {
			return err
		}
		if !available {
			return dErrors.New(dErrors.CodeNameNotAvailable, "name is reserved or already leased")
		}
		if p.Duration < s.cfg.MinRegistrationDuration {
			return dErrors.New(dErrors.CodeDurationTooShort, "registration duration below the minimum")
		}

		quote = s.RentPrice(p.Name, p.Duration)
		if payment < quote.Total() {
			return dErrors.New(dErrors.CodeInsufficientPayment, "attached payment below the quoted price")
		}
		if err := funds.DebitTx(tx, caller, payment); err != nil {
			return err
		}
		if err := funds.CreditTx(tx, s.treasury, quote.Total()); err != nil {
			return err
		}

		expires, err := registrar.RegisterTx(tx, s.registrar.Principal(), label, p.Owner, p.Duration, p.Resolver, now, s.registrar.GracePeriod())
		if err != nil {
			return err
		}

		node := namehash.Combine(registrar.BaseNode(), label)
		for _, rec := range p.Records {
			if err := applyRecordTx(tx, node, rec); err != nil {
				return err
			}
		}
		if p.ReverseRecord {
			if err := tx.PutReverse(p.Owner, p.Name+"."+registrar.TLD); err != nil {
				return err
			}
		}

		if err := funds.RefundTx(tx, caller, payment-quote.Total()); err != nil {
			return err
		}

		result = Result{
			Name:      p.Name,
			Label:     label.Hex(),
			Owner:     p.Owner,
			Base:      quote.Base,
			Premium:   quote.Premium,
			Refund:    payment - quote.Total(),
			ExpiresAt: expires,
		}
		return nil
	})
	return quote, result, err
}

// applyRecordTx validates and writes one resolver record against the new
// leaf node. Any failure aborts the surrounding registration.
func applyRecordTx(tx state.Tx, node namehash.Hash, rec state.Record) error {
	if !state.ValidRecordKind(rec.Kind) {
		return dErrors.Newf(dErrors.CodeBadRequest, "unsupported record kind %q", rec.Kind)
	}
	if rec.Kind == state.RecordAddr {
		if _, err := domain.ParsePrincipal(rec.Value); err != nil {
			return dErrors.New(dErrors.CodeBadRequest, "addr record value must be a principal address")
		}
	}
	if rec.Kind != state.RecordAddr && rec.Key == "" {
		return dErrors.Newf(dErrors.CodeBadRequest, "%s record requires a key", rec.Kind)
	}
	return tx.PutRecord(node, rec)
}

// Renew extends an existing lease. Renewal charges base price only; no
// premium applies. The label must not be available — still held or within
// its grace window — under the registrar's configured renew policy.
func (s *Service) Renew(ctx context.Context, caller domain.Principal, name string, duration time.Duration, payment uint64) (Result, error) {
	now := s.clock.Now()
	if err := names.Check(name); err != nil {
		return Result{}, err
	}
	if duration <= 0 {
		return Result{}, dErrors.New(dErrors.CodeDurationTooShort, "renewal duration must be positive")
	}
	label := namehash.LabelHash(name)

	var result Result
	err := s.store.RunInTx(ctx, func(tx state.Tx) error {
		quote := s.RentPrice(name, duration)
		if payment < quote.Base {
			return dErrors.New(dErrors.CodeInsufficientPayment, "attached payment below the renewal price")
		}
		if err := funds.DebitTx(tx, caller, payment); err != nil {
			return err
		}
		if err := funds.CreditTx(tx, s.treasury, quote.Base); err != nil {
			return err
		}

		expires, err := registrar.RenewTx(tx, label, caller, duration, now, s.registrar.GracePeriod(), s.registrar.Policy())
		if err != nil {
			return err
		}
		if err := funds.RefundTx(tx, caller, payment-quote.Base); err != nil {
			return err
		}

		result = Result{
			Name:      name,
			Label:     label.Hex(),
			Base:      quote.Base,
			Refund:    payment - quote.Base,
			ExpiresAt: expires,
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.emit(ctx, events.Event{
		Kind:      events.KindNameRenewed,
		Name:      name,
		Label:     label.Hex(),
		Cost:      result.Base,
		ExpiresAt: result.ExpiresAt,
	})
	if s.metrics != nil {
		s.metrics.NamesRenewed.Inc()
		s.metrics.RevenueCollected.Add(float64(result.Base))
	}
	return result, nil
}

func (s *Service) registerFailed(err error) error {
	if s.metrics != nil {
		s.metrics.RegisterFailures.WithLabelValues(string(dErrors.CodeOf(err))).Inc()
	}
	return err
}

func (s *Service) emit(ctx context.Context, e events.Event) {
	e.ID = uuid.NewString()
	e.Timestamp = s.clock.Now().UTC()
	s.events.Publish(ctx, e)
}
