package registration

import (
	"context"
	"time"

	"selns/internal/events"
	"selns/internal/funds"
	"selns/internal/names"
	"selns/internal/pricing"
	"selns/internal/registrar"
	"selns/internal/state"
	"selns/pkg/domain"
	dErrors "selns/pkg/domain-errors"
	"selns/pkg/namehash"
)

func (s *Service) requireAdmin(caller domain.Principal) error {
	if caller != s.admin {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the registration admin")
	}
	return nil
}

// ReserveName blocks a name from public registration. Reserving a name
// that is currently leased is allowed: the reservation takes effect once
// the lease and its grace window lapse.
func (s *Service) ReserveName(ctx context.Context, caller domain.Principal, name string) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	if err := names.Check(name); err != nil {
		return err
	}
	label := namehash.LabelHash(name)
	err := s.store.RunInTx(ctx, func(tx state.Tx) error {
		return tx.PutReservation(label)
	})
	if err != nil {
		return err
	}
	s.emit(ctx, events.Event{Kind: events.KindNameReserved, Name: name, Label: label.Hex()})
	return nil
}

// UnreserveName lifts a reservation.
func (s *Service) UnreserveName(ctx context.Context, caller domain.Principal, name string) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	label := namehash.LabelHash(name)
	err := s.store.RunInTx(ctx, func(tx state.Tx) error {
		reserved, err := tx.Reserved(label)
		if err != nil {
			return err
		}
		if !reserved {
			return dErrors.New(dErrors.CodeNameNotReserved, "name is not reserved")
		}
		return tx.DeleteReservation(label)
	})
	if err != nil {
		return err
	}
	s.emit(ctx, events.Event{Kind: events.KindNameUnreserved, Name: name, Label: label.Hex()})
	return nil
}

// RegisterReserved assigns a reserved name directly, skipping commit-reveal
// and payment. The reservation is cleared in the same transaction, and the
// lease ledger must agree the label is free.
func (s *Service) RegisterReserved(ctx context.Context, caller domain.Principal, name string, owner domain.Principal, duration time.Duration) (Result, error) {
	if err := s.requireAdmin(caller); err != nil {
		return Result{}, err
	}
	if err := names.Check(name); err != nil {
		return Result{}, err
	}
	if owner.IsZero() {
		return Result{}, dErrors.New(dErrors.CodeBadRequest, "owner is required")
	}
	if duration < s.cfg.MinRegistrationDuration {
		return Result{}, dErrors.New(dErrors.CodeDurationTooShort, "registration duration below the minimum")
	}

	now := s.clock.Now()
	label := namehash.LabelHash(name)
	var result Result
	err := s.store.RunInTx(ctx, func(tx state.Tx) error {
		reserved, err := tx.Reserved(label)
		if err != nil {
			return err
		}
		if !reserved {
			return dErrors.New(dErrors.CodeNameNotReserved, "name is not reserved")
		}
		available, err := registrar.AvailableTx(tx, label, now, s.registrar.GracePeriod())
		if err != nil {
			return err
		}
		if !available {
			return dErrors.New(dErrors.CodeNameNotAvailable, "name is still leased or within its grace window")
		}
		if err := tx.DeleteReservation(label); err != nil {
			return err
		}
		expires, err := registrar.RegisterTx(tx, s.registrar.Principal(), label, owner, duration, domain.Zero, now, s.registrar.GracePeriod())
		if err != nil {
			return err
		}
		result = Result{
			Name:      name,
			Label:     label.Hex(),
			Owner:     owner,
			ExpiresAt: expires,
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.emit(ctx, events.Event{
		Kind:      events.KindNameRegistered,
		Name:      name,
		Label:     label.Hex(),
		Owner:     owner,
		ExpiresAt: result.ExpiresAt,
	})
	if s.metrics != nil {
		s.metrics.NamesRegistered.Inc()
	}
	s.logger.InfoContext(ctx, "reserved name assigned", "name", name, "owner", owner)
	return result, nil
}

// SetPricing swaps the pricing policy. In-flight quotes are unaffected;
// later quotes and charges use the new policy.
func (s *Service) SetPricing(ctx context.Context, caller domain.Principal, policy pricing.Policy) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	if policy == nil {
		return dErrors.New(dErrors.CodeBadRequest, "pricing policy is required")
	}
	s.pmu.Lock()
	s.policy = policy
	s.pmu.Unlock()
	s.logger.InfoContext(ctx, "pricing policy replaced")
	return nil
}

// Withdraw sweeps the accumulated treasury balance to the given account.
func (s *Service) Withdraw(ctx context.Context, caller domain.Principal, to domain.Principal) (uint64, error) {
	if err := s.requireAdmin(caller); err != nil {
		return 0, err
	}
	if to.IsZero() {
		return 0, dErrors.New(dErrors.CodeBadRequest, "destination account is required")
	}
	var swept uint64
	err := s.store.RunInTx(ctx, func(tx state.Tx) error {
		balance, err := tx.Balance(s.treasury)
		if err != nil {
			return err
		}
		swept = balance
		if balance == 0 {
			return nil
		}
		if err := funds.DebitTx(tx, s.treasury, balance); err != nil {
			return err
		}
		return funds.CreditTx(tx, to, balance)
	})
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "treasury swept", "to", to, "amount", swept)
	return swept, nil
}
