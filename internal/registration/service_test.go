package registration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"selns/internal/events"
	"selns/internal/funds"
	"selns/internal/pricing"
	"selns/internal/registrar"
	"selns/internal/registration/commitstore"
	"selns/internal/state"
	"selns/pkg/clock"
	"selns/pkg/domain"
	dErrors "selns/pkg/domain-errors"
	"selns/pkg/namehash"
)

const (
	admin      domain.Principal = "0x00000000000000000000000000000000000000a0"
	treasury   domain.Principal = "0x00000000000000000000000000000000000000fe"
	registrarP domain.Principal = "0x0000000000000000000000000000000000000001"
	alice      domain.Principal = "0x00000000000000000000000000000000000000aa"
	bob        domain.Principal = "0x00000000000000000000000000000000000000bb"
)

const year = 365 * 24 * time.Hour

type RegistrationSuite struct {
	suite.Suite
	store   *state.Memory
	commits *commitstore.Memory
	clk     *clock.Fake
	sink    *events.Memory
	funds   *funds.Service
	reg     *registrar.Service
	svc     *Service
	ctx     context.Context
}

func (s *RegistrationSuite) SetupTest() {
	s.store = state.NewMemory()
	s.commits = commitstore.NewMemory()
	s.clk = clock.NewFake(time.Unix(1_700_000_000, 0))
	s.sink = events.NewMemory()
	s.ctx = context.Background()

	s.Require().NoError(state.SeedRoots(s.ctx, s.store, registrar.TLD, admin, registrarP))

	s.reg = registrar.New(s.store, s.clk, registrarP)
	s.funds = funds.New(s.store, nil)
	s.svc = New(s.store, s.commits, s.reg, s.clk, admin, treasury,
		WithEvents(s.sink),
	)
}

func TestRegistrationSuite(t *testing.T) {
	suite.Run(t, new(RegistrationSuite))
}

func (s *RegistrationSuite) deposit(p domain.Principal, amount uint64) {
	_, err := s.funds.Deposit(s.ctx, p, amount)
	s.Require().NoError(err)
}

func (s *RegistrationSuite) balance(p domain.Principal) uint64 {
	b, err := s.funds.Balance(s.ctx, p)
	s.Require().NoError(err)
	return b
}

func (s *RegistrationSuite) params(name string, owner domain.Principal) Params {
	return Params{
		Name:     name,
		Owner:    owner,
		Duration: year,
		Secret:   namehash.LabelHash("secret-" + name),
	}
}

// commitAndWait commits the parameters and advances past the minimum age.
func (s *RegistrationSuite) commitAndWait(p Params) {
	s.Require().NoError(s.svc.Commit(s.ctx, MakeCommitment(p)))
	s.clk.Advance(s.svc.cfg.MinCommitmentAge)
}

func (s *RegistrationSuite) TestFullLifecycle() {
	p := s.params("alice", alice)
	p.ReverseRecord = true
	p.Records = []state.Record{
		{Kind: state.RecordAddr, Value: alice.String()},
		{Kind: state.RecordText, Key: "url", Value: "https://alice.example"},
	}
	quote := s.svc.RentPrice(p.Name, p.Duration)
	s.deposit(alice, quote.Total()+1_000)

	s.commitAndWait(p)
	result, err := s.svc.Register(s.ctx, alice, p, quote.Total()+500)
	s.Require().NoError(err)

	s.Equal("alice", result.Name)
	s.Equal(quote.Base, result.Base)
	s.Equal(uint64(500), result.Refund)
	s.Equal(s.clk.Now().Add(year).UTC(), result.ExpiresAt)

	s.Run("lease and funds settle together", func() {
		holder, err := s.reg.Holder(s.ctx, namehash.LabelHash("alice"))
		s.Require().NoError(err)
		s.Equal(alice, holder)

		s.Equal(uint64(1_000), s.balance(alice), "payment minus refund leaves the price")
		s.Equal(quote.Total(), s.balance(treasury))
	})

	s.Run("records and reverse binding written", func() {
		node := namehash.Combine(registrar.BaseNode(), namehash.LabelHash("alice"))
		err := s.store.View(s.ctx, func(tx state.Tx) error {
			v, ok, err := tx.GetRecord(node, state.RecordText, "url")
			s.Require().NoError(err)
			s.True(ok)
			s.Equal("https://alice.example", v)

			name, ok, err := tx.GetReverse(alice)
			s.Require().NoError(err)
			s.True(ok)
			s.Equal("alice.sel", name)
			return nil
		})
		s.Require().NoError(err)
	})

	s.Run("name no longer available", func() {
		available, err := s.svc.Available(s.ctx, "alice")
		s.Require().NoError(err)
		s.False(available)
	})

	s.Run("event emitted", func() {
		var found bool
		for _, e := range s.sink.Events() {
			if e.Kind == events.KindNameRegistered && e.Name == "alice" {
				found = true
				s.Equal(quote.Total(), e.Cost)
			}
		}
		s.True(found)
	})
}

func (s *RegistrationSuite) TestDuplicateCommit() {
	p := s.params("alice", alice)
	s.Require().NoError(s.svc.Commit(s.ctx, MakeCommitment(p)))

	err := s.svc.Commit(s.ctx, MakeCommitment(p))
	s.True(dErrors.HasCode(err, dErrors.CodeCommitmentExists))
}

func (s *RegistrationSuite) TestRevealWindow() {
	p := s.params("alice", alice)
	quote := s.svc.RentPrice(p.Name, p.Duration)
	s.deposit(alice, 10*quote.Total())

	s.Run("without commit", func() {
		_, err := s.svc.Register(s.ctx, alice, p, quote.Total())
		s.True(dErrors.HasCode(err, dErrors.CodeCommitmentNotFound))
	})

	s.Require().NoError(s.svc.Commit(s.ctx, MakeCommitment(p)))

	s.Run("too new strictly before min age", func() {
		s.clk.Advance(s.svc.cfg.MinCommitmentAge - time.Second)
		_, err := s.svc.Register(s.ctx, alice, p, quote.Total())
		s.True(dErrors.HasCode(err, dErrors.CodeCommitmentTooNew))
	})

	s.Run("valid at exactly min age", func() {
		s.clk.Advance(time.Second)
		_, err := s.svc.Register(s.ctx, alice, p, quote.Total())
		s.Require().NoError(err)
	})
}

func (s *RegistrationSuite) TestCommitmentExpires() {
	p := s.params("alice", alice)
	quote := s.svc.RentPrice(p.Name, p.Duration)
	s.deposit(alice, quote.Total())

	s.Require().NoError(s.svc.Commit(s.ctx, MakeCommitment(p)))
	s.clk.Advance(s.svc.cfg.MaxCommitmentAge + time.Second)

	_, err := s.svc.Register(s.ctx, alice, p, quote.Total())
	s.True(dErrors.HasCode(err, dErrors.CodeCommitmentExpired))
}

func (s *RegistrationSuite) TestFailedRevealBurnsCommitment() {
	p := s.params("alice", alice)
	quote := s.svc.RentPrice(p.Name, p.Duration)
	s.deposit(alice, quote.Total())

	s.commitAndWait(p)

	// Underpay: the attempt fails but consumes the commitment.
	_, err := s.svc.Register(s.ctx, alice, p, quote.Total()-1)
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientPayment))

	s.Run("no partial state", func() {
		s.Equal(quote.Total(), s.balance(alice), "payment must be returned on abort")
		s.Zero(s.balance(treasury))

		available, err := s.svc.Available(s.ctx, "alice")
		s.Require().NoError(err)
		s.True(available)
	})

	s.Run("retry needs a fresh commit", func() {
		_, err := s.svc.Register(s.ctx, alice, p, quote.Total())
		s.True(dErrors.HasCode(err, dErrors.CodeCommitmentNotFound))

		s.commitAndWait(p)
		_, err = s.svc.Register(s.ctx, alice, p, quote.Total())
		s.Require().NoError(err)
	})
}

func (s *RegistrationSuite) TestTakenNameRejected() {
	first := s.params("alice", alice)
	quote := s.svc.RentPrice(first.Name, first.Duration)
	s.deposit(alice, quote.Total())
	s.commitAndWait(first)
	_, err := s.svc.Register(s.ctx, alice, first, quote.Total())
	s.Require().NoError(err)

	second := s.params("alice", bob)
	s.deposit(bob, quote.Total())
	s.commitAndWait(second)
	_, err = s.svc.Register(s.ctx, bob, second, quote.Total())
	s.True(dErrors.HasCode(err, dErrors.CodeNameNotAvailable))
	s.Equal(quote.Total(), s.balance(bob), "loser keeps funds")
}

func (s *RegistrationSuite) TestInvalidNameAndShortDuration() {
	s.deposit(alice, 1_000_000_000)

	s.Run("invalid name burns the commitment", func() {
		p := s.params("Alice!", alice)
		s.commitAndWait(p)
		_, err := s.svc.Register(s.ctx, alice, p, 1_000_000)
		s.True(dErrors.HasCode(err, dErrors.CodeNameInvalid))
	})

	s.Run("short duration", func() {
		p := s.params("alice", alice)
		p.Duration = s.svc.cfg.MinRegistrationDuration - time.Second
		s.commitAndWait(p)
		_, err := s.svc.Register(s.ctx, alice, p, 1_000_000)
		s.True(dErrors.HasCode(err, dErrors.CodeDurationTooShort))
	})
}

func (s *RegistrationSuite) TestReservationPrecedence() {
	s.Require().NoError(s.svc.ReserveName(s.ctx, admin, "vault"))

	s.Run("reserved reports unavailable", func() {
		available, err := s.svc.Available(s.ctx, "vault")
		s.Require().NoError(err)
		s.False(available, "reserved names are unavailable even with no lease")
	})

	s.Run("public registration blocked", func() {
		p := s.params("vault", alice)
		quote := s.svc.RentPrice(p.Name, p.Duration)
		s.deposit(alice, quote.Total())
		s.commitAndWait(p)
		_, err := s.svc.Register(s.ctx, alice, p, quote.Total())
		s.True(dErrors.HasCode(err, dErrors.CodeNameNotAvailable))
	})

	s.Run("non-admin cannot reserve", func() {
		s.True(dErrors.HasCode(s.svc.ReserveName(s.ctx, alice, "other"), dErrors.CodeUnauthorized))
	})

	s.Run("unreserve restores availability", func() {
		s.Require().NoError(s.svc.UnreserveName(s.ctx, admin, "vault"))
		available, err := s.svc.Available(s.ctx, "vault")
		s.Require().NoError(err)
		s.True(available)
	})

	s.Run("unreserving a free name fails", func() {
		err := s.svc.UnreserveName(s.ctx, admin, "vault")
		s.True(dErrors.HasCode(err, dErrors.CodeNameNotReserved))
	})
}

func (s *RegistrationSuite) TestRegisterReserved() {
	s.Require().NoError(s.svc.ReserveName(s.ctx, admin, "vault"))

	s.Run("assigns without payment", func() {
		result, err := s.svc.RegisterReserved(s.ctx, admin, "vault", alice, year)
		s.Require().NoError(err)
		s.Equal(alice, result.Owner)
		s.Zero(s.balance(treasury))

		holder, err := s.reg.Holder(s.ctx, namehash.LabelHash("vault"))
		s.Require().NoError(err)
		s.Equal(alice, holder)
	})

	s.Run("reservation consumed", func() {
		_, err := s.svc.RegisterReserved(s.ctx, admin, "vault", bob, year)
		s.True(dErrors.HasCode(err, dErrors.CodeNameNotReserved))
	})

	s.Run("requires reserved name", func() {
		_, err := s.svc.RegisterReserved(s.ctx, admin, "free", bob, year)
		s.True(dErrors.HasCode(err, dErrors.CodeNameNotReserved))
	})

	s.Run("non-admin rejected", func() {
		_, err := s.svc.RegisterReserved(s.ctx, alice, "free", alice, year)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *RegistrationSuite) registerName(name string, owner domain.Principal) Result {
	p := s.params(name, owner)
	quote := s.svc.RentPrice(name, year)
	s.deposit(owner, quote.Total())
	s.commitAndWait(p)
	result, err := s.svc.Register(s.ctx, owner, p, quote.Total())
	s.Require().NoError(err)
	return result
}

func (s *RegistrationSuite) TestRenewChargesBaseOnly() {
	// A premium policy proves renewal never charges premium.
	s.Require().NoError(s.svc.SetPricing(s.ctx, admin, &pricing.TierPolicy{
		Rates:     pricing.DefaultRates,
		PremiumFn: func(string) uint64 { return 777 },
	}))

	p := s.params("alice", alice)
	quote := s.svc.RentPrice("alice", year)
	s.Require().Equal(uint64(777), quote.Premium)
	s.deposit(alice, quote.Total())
	s.commitAndWait(p)
	first, err := s.svc.Register(s.ctx, alice, p, quote.Total())
	s.Require().NoError(err)

	s.deposit(bob, quote.Base+50)
	result, err := s.svc.Renew(s.ctx, bob, "alice", year, quote.Base+50)
	s.Require().NoError(err)

	s.Equal(quote.Base, result.Base)
	s.Equal(uint64(50), result.Refund)
	s.Equal(first.ExpiresAt.Add(year), result.ExpiresAt, "extends from the old expiry")
	s.Equal(uint64(50), s.balance(bob))
}

func (s *RegistrationSuite) TestRenewExpiredPastGrace() {
	s.registerName("alice", alice)
	s.clk.Advance(year + s.reg.GracePeriod() + time.Hour)

	s.deposit(bob, 100_000_000)
	_, err := s.svc.Renew(s.ctx, bob, "alice", year, 100_000_000)
	s.True(dErrors.HasCode(err, dErrors.CodeNameNotAvailable))
	s.Equal(uint64(100_000_000), s.balance(bob), "failed renewal returns funds")
}

func (s *RegistrationSuite) TestBatchAvailable() {
	s.registerName("alice", alice)
	s.Require().NoError(s.svc.ReserveName(s.ctx, admin, "vault"))

	got, err := s.svc.BatchAvailable(s.ctx, []string{"alice", "vault", "free", "ab"})
	s.Require().NoError(err)
	s.Equal([]bool{false, false, true, false}, got)
}

func (s *RegistrationSuite) TestBatchCommitAllOrNothing() {
	h1 := namehash.LabelHash("one")
	h2 := namehash.LabelHash("two")
	s.Require().NoError(s.svc.Commit(s.ctx, h2))

	err := s.svc.BatchCommit(s.ctx, []namehash.Hash{h1, h2})
	s.True(dErrors.HasCode(err, dErrors.CodeCommitmentExists))

	// h1 must have been rolled back, so committing it now succeeds.
	s.Require().NoError(s.svc.Commit(s.ctx, h1))

	s.Run("duplicate inside batch", func() {
		h3 := namehash.LabelHash("three")
		err := s.svc.BatchCommit(s.ctx, []namehash.Hash{h3, h3})
		s.True(dErrors.HasCode(err, dErrors.CodeCommitmentExists))
		s.Require().NoError(s.svc.Commit(s.ctx, h3))
	})
}

func (s *RegistrationSuite) TestBatchRenewAtomic() {
	s.registerName("alice", alice)
	s.registerName("bobby", bob)

	aliceExpiry, err := s.reg.NameExpires(s.ctx, namehash.LabelHash("alice"))
	s.Require().NoError(err)

	s.deposit(alice, 1_000_000_000)
	items := []RenewalItem{
		{Name: "alice", Duration: year},
		{Name: "never-registered", Duration: year},
	}
	_, err = s.svc.BatchRenew(s.ctx, alice, items, 1_000_000_000)
	s.Require().Error(err)

	s.Run("invalid name rejected up front", func() {
		_, err := s.svc.BatchRenew(s.ctx, alice, []RenewalItem{
			{Name: "Bad!", Duration: year},
		}, 1_000_000_000)
		s.True(dErrors.HasCode(err, dErrors.CodeNameInvalid))
	})

	s.Run("nothing applied", func() {
		expiry, err := s.reg.NameExpires(s.ctx, namehash.LabelHash("alice"))
		s.Require().NoError(err)
		s.Equal(aliceExpiry, expiry, "first renewal must roll back with the batch")
		s.Equal(uint64(1_000_000_000), s.balance(alice))
	})

	s.Run("valid batch settles once", func() {
		quote := s.svc.RentPrice("alice", year)
		bobQuote := s.svc.RentPrice("bobby", year)
		total := quote.Base + bobQuote.Base

		result, err := s.svc.BatchRenew(s.ctx, alice, []RenewalItem{
			{Name: "alice", Duration: year},
			{Name: "bobby", Duration: year},
		}, total+10)
		s.Require().NoError(err)
		s.Len(result.Items, 2)
		s.Equal(aliceExpiry.Add(year), result.Items[0].ExpiresAt)
		s.Equal(uint64(10), result.Refund, "overpayment comes back on the batch, not per item")
		s.Equal(uint64(1_000_000_000)-total, s.balance(alice))
	})
}

func (s *RegistrationSuite) TestWithdraw() {
	s.registerName("alice", alice)
	collected := s.balance(treasury)
	s.Require().NotZero(collected)

	s.Run("non-admin rejected", func() {
		_, err := s.svc.Withdraw(s.ctx, alice, bob)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("sweeps to destination", func() {
		swept, err := s.svc.Withdraw(s.ctx, admin, bob)
		s.Require().NoError(err)
		s.Equal(collected, swept)
		s.Equal(collected, s.balance(bob))
		s.Zero(s.balance(treasury))
	})

	s.Run("empty treasury sweeps zero", func() {
		swept, err := s.svc.Withdraw(s.ctx, admin, bob)
		s.Require().NoError(err)
		s.Zero(swept)
	})
}

func (s *RegistrationSuite) TestSetPricingSwapsQuotes() {
	before := s.svc.RentPrice("abcde", year)

	err := s.svc.SetPricing(s.ctx, alice, pricing.NewTierPolicy())
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	s.Require().NoError(s.svc.SetPricing(s.ctx, admin, &pricing.TierPolicy{
		Rates: pricing.TierRates{ThreeChar: 1, FourChar: 1, Longer: 1},
	}))
	after := s.svc.RentPrice("abcde", year)
	s.NotEqual(before.Base, after.Base)
	s.Equal(uint64(1), after.Base)
}

func (s *RegistrationSuite) TestPaymentConservation() {
	const start uint64 = 1_000_000_000
	s.deposit(alice, start)

	p := s.params("alice", alice)
	quote := s.svc.RentPrice("alice", year)
	s.commitAndWait(p)
	_, err := s.svc.Register(s.ctx, alice, p, start)
	s.Require().NoError(err)

	s.Equal(start, s.balance(alice)+s.balance(treasury), "credits are neither minted nor destroyed")
	s.Equal(start-quote.Total(), s.balance(alice))
}
