package registrar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"selns/internal/state"
	"selns/pkg/clock"
	"selns/pkg/domain"
	dErrors "selns/pkg/domain-errors"
	"selns/pkg/namehash"
)

const (
	admin     domain.Principal = "0x00000000000000000000000000000000000000a0"
	registrar domain.Principal = "0x0000000000000000000000000000000000000001"
	alice     domain.Principal = "0x00000000000000000000000000000000000000aa"
	bob       domain.Principal = "0x00000000000000000000000000000000000000bb"
	carol     domain.Principal = "0x00000000000000000000000000000000000000cc"
)

const year = 365 * 24 * time.Hour

type RegistrarSuite struct {
	suite.Suite
	store *state.Memory
	clk   *clock.Fake
	svc   *Service
	ctx   context.Context
	label namehash.Hash
}

func (s *RegistrarSuite) SetupTest() {
	s.store = state.NewMemory()
	s.clk = clock.NewFake(time.Unix(1_700_000_000, 0))
	s.svc = New(s.store, s.clk, registrar)
	s.ctx = context.Background()
	s.label = namehash.LabelHash("alice")

	s.Require().NoError(state.SeedRoots(s.ctx, s.store, TLD, admin, registrar))
}

func TestRegistrarSuite(t *testing.T) {
	suite.Run(t, new(RegistrarSuite))
}

func (s *RegistrarSuite) register(holder domain.Principal, duration time.Duration) time.Time {
	var expires time.Time
	err := s.store.RunInTx(s.ctx, func(tx state.Tx) error {
		var err error
		expires, err = RegisterTx(tx, registrar, s.label, holder, duration, domain.Zero, s.clk.Now(), s.svc.GracePeriod())
		return err
	})
	s.Require().NoError(err)
	return expires
}

func (s *RegistrarSuite) TestRegisterBindsLeaseAndSubnode() {
	expires := s.register(alice, year)
	s.Equal(s.clk.Now().Add(year).UTC(), expires)

	available, err := s.svc.Available(s.ctx, s.label)
	s.Require().NoError(err)
	s.False(available)

	holder, err := s.svc.Holder(s.ctx, s.label)
	s.Require().NoError(err)
	s.Equal(alice, holder)

	// Dual write: the registry subnode owner follows the lease holder.
	err = s.store.View(s.ctx, func(tx state.Tx) error {
		node, ok, err := tx.GetNode(namehash.Combine(BaseNode(), s.label))
		s.Require().NoError(err)
		s.True(ok)
		s.Equal(alice, node.Owner)
		return nil
	})
	s.Require().NoError(err)
}

func (s *RegistrarSuite) TestRegisterWithResolver() {
	err := s.store.RunInTx(s.ctx, func(tx state.Tx) error {
		_, err := RegisterTx(tx, registrar, s.label, alice, year, carol, s.clk.Now(), s.svc.GracePeriod())
		return err
	})
	s.Require().NoError(err)

	err = s.store.View(s.ctx, func(tx state.Tx) error {
		node, _, err := tx.GetNode(namehash.Combine(BaseNode(), s.label))
		s.Require().NoError(err)
		s.Equal(carol, node.Resolver)
		return nil
	})
	s.Require().NoError(err)
}

func (s *RegistrarSuite) TestAvailabilityWindows() {
	s.register(alice, year)

	s.Run("held", func() {
		available, err := s.svc.Available(s.ctx, s.label)
		s.Require().NoError(err)
		s.False(available)
	})

	s.Run("expired but in grace", func() {
		s.clk.Advance(year + time.Hour)
		available, err := s.svc.Available(s.ctx, s.label)
		s.Require().NoError(err)
		s.False(available, "grace period keeps the label unavailable")
	})

	s.Run("past grace", func() {
		s.clk.Advance(s.svc.GracePeriod())
		available, err := s.svc.Available(s.ctx, s.label)
		s.Require().NoError(err)
		s.True(available)
	})
}

func (s *RegistrarSuite) TestRegisterWhileHeldFails() {
	s.register(alice, year)

	err := s.store.RunInTx(s.ctx, func(tx state.Tx) error {
		_, err := RegisterTx(tx, registrar, s.label, bob, year, domain.Zero, s.clk.Now(), s.svc.GracePeriod())
		return err
	})
	s.True(dErrors.HasCode(err, dErrors.CodeNameNotAvailable))
}

func (s *RegistrarSuite) TestRenewExtendsFromOldExpiry() {
	first := s.register(alice, year)

	// Renewing in grace extends from the old expiry, not from now.
	s.clk.Advance(year + 24*time.Hour)
	var renewed time.Time
	err := s.store.RunInTx(s.ctx, func(tx state.Tx) error {
		var err error
		renewed, err = RenewTx(tx, s.label, bob, year, s.clk.Now(), s.svc.GracePeriod(), RenewAnyoneWhileNotAvailable)
		return err
	})
	s.Require().NoError(err)
	s.Equal(first.Add(year), renewed)
}

func (s *RegistrarSuite) TestRenewAvailableLabelFails() {
	err := s.store.RunInTx(s.ctx, func(tx state.Tx) error {
		_, err := RenewTx(tx, s.label, alice, year, s.clk.Now(), s.svc.GracePeriod(), RenewAnyoneWhileNotAvailable)
		return err
	})
	s.True(dErrors.HasCode(err, dErrors.CodeNameNotAvailable), "no lease to renew")

	s.register(alice, year)
	s.clk.Advance(year + s.svc.GracePeriod() + time.Hour)

	err = s.store.RunInTx(s.ctx, func(tx state.Tx) error {
		_, err := RenewTx(tx, s.label, alice, year, s.clk.Now(), s.svc.GracePeriod(), RenewAnyoneWhileNotAvailable)
		return err
	})
	s.True(dErrors.HasCode(err, dErrors.CodeNameNotAvailable), "past grace the label must be re-registered")
}

func (s *RegistrarSuite) TestStrictRenewPolicy() {
	s.register(alice, year)

	s.Run("anyone renews while active", func() {
		err := s.store.RunInTx(s.ctx, func(tx state.Tx) error {
			_, err := RenewTx(tx, s.label, bob, year, s.clk.Now(), s.svc.GracePeriod(), RenewHolderOnlyDuringGrace)
			return err
		})
		s.Require().NoError(err)
	})

	s.Run("only holder renews in grace", func() {
		s.clk.Advance(2*year + time.Hour)

		err := s.store.RunInTx(s.ctx, func(tx state.Tx) error {
			_, err := RenewTx(tx, s.label, bob, year, s.clk.Now(), s.svc.GracePeriod(), RenewHolderOnlyDuringGrace)
			return err
		})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		err = s.store.RunInTx(s.ctx, func(tx state.Tx) error {
			_, err := RenewTx(tx, s.label, alice, year, s.clk.Now(), s.svc.GracePeriod(), RenewHolderOnlyDuringGrace)
			return err
		})
		s.Require().NoError(err)
	})
}

func (s *RegistrarSuite) TestTransfer() {
	s.register(alice, year)

	s.Run("holder transfers", func() {
		s.Require().NoError(s.svc.Transfer(s.ctx, alice, s.label, alice, bob))

		holder, err := s.svc.Holder(s.ctx, s.label)
		s.Require().NoError(err)
		s.Equal(bob, holder)

		// Subnode owner follows.
		err = s.store.View(s.ctx, func(tx state.Tx) error {
			node, _, err := tx.GetNode(namehash.Combine(BaseNode(), s.label))
			s.Require().NoError(err)
			s.Equal(bob, node.Owner)
			return nil
		})
		s.Require().NoError(err)
	})

	s.Run("stranger cannot transfer", func() {
		err := s.svc.Transfer(s.ctx, carol, s.label, bob, carol)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("wrong from is a conflict", func() {
		err := s.svc.Transfer(s.ctx, bob, s.label, alice, carol)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *RegistrarSuite) TestApproveDelegates() {
	s.register(alice, year)

	s.Run("only holder approves", func() {
		err := s.svc.Approve(s.ctx, bob, s.label, carol)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("delegate transfers on behalf of holder", func() {
		s.Require().NoError(s.svc.Approve(s.ctx, alice, s.label, carol))
		s.Require().NoError(s.svc.Transfer(s.ctx, carol, s.label, alice, bob))

		holder, err := s.svc.Holder(s.ctx, s.label)
		s.Require().NoError(err)
		s.Equal(bob, holder)
	})

	s.Run("approval cleared by transfer", func() {
		err := s.svc.Transfer(s.ctx, carol, s.label, bob, carol)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "approval must not survive a transfer")
	})

	s.Run("zero delegate revokes", func() {
		s.Require().NoError(s.svc.Approve(s.ctx, bob, s.label, carol))
		s.Require().NoError(s.svc.Approve(s.ctx, bob, s.label, domain.Zero))

		err := s.svc.Transfer(s.ctx, carol, s.label, bob, carol)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *RegistrarSuite) TestReRegistrationAfterGraceResetsApproval() {
	s.register(alice, year)
	s.Require().NoError(s.svc.Approve(s.ctx, alice, s.label, carol))

	s.clk.Advance(year + s.svc.GracePeriod() + time.Hour)
	s.register(bob, year)

	err := s.svc.Transfer(s.ctx, carol, s.label, bob, carol)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "stale approval must not carry into the new lease")
}
