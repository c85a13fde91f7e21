package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"selns/pkg/domain"
	"selns/pkg/namehash"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *Memory
	ctx   context.Context
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.ctx = context.Background()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

const (
	alice domain.Principal = "0x00000000000000000000000000000000000000aa"
	bob   domain.Principal = "0x00000000000000000000000000000000000000bb"
)

func (s *MemoryStoreSuite) TestCommitPublishesWrites() {
	node := namehash.LabelHash("alice")

	err := s.store.RunInTx(s.ctx, func(tx Tx) error {
		s.Require().NoError(tx.PutNode(node, Node{Owner: alice}))
		s.Require().NoError(tx.PutLease(node, Lease{Holder: alice, ExpiresAt: time.Unix(100, 0)}))
		s.Require().NoError(tx.SetBalance(alice, 500))
		return nil
	})
	s.Require().NoError(err)

	err = s.store.View(s.ctx, func(tx Tx) error {
		n, ok, err := tx.GetNode(node)
		s.Require().NoError(err)
		s.True(ok)
		s.Equal(alice, n.Owner)

		balance, err := tx.Balance(alice)
		s.Require().NoError(err)
		s.Equal(uint64(500), balance)
		return nil
	})
	s.Require().NoError(err)
}

func (s *MemoryStoreSuite) TestRollbackDiscardsEverything() {
	node := namehash.LabelHash("alice")
	boom := errors.New("boom")

	err := s.store.RunInTx(s.ctx, func(tx Tx) error {
		s.Require().NoError(tx.PutNode(node, Node{Owner: alice}))
		s.Require().NoError(tx.PutLease(node, Lease{Holder: alice}))
		s.Require().NoError(tx.SetBalance(alice, 500))
		s.Require().NoError(tx.PutReservation(node))
		s.Require().NoError(tx.PutReverse(alice, "alice.sel"))
		return boom
	})
	s.Require().ErrorIs(err, boom)

	err = s.store.View(s.ctx, func(tx Tx) error {
		_, ok, err := tx.GetNode(node)
		s.Require().NoError(err)
		s.False(ok, "node write must not survive rollback")

		_, ok, err = tx.GetLease(node)
		s.Require().NoError(err)
		s.False(ok, "lease write must not survive rollback")

		balance, err := tx.Balance(alice)
		s.Require().NoError(err)
		s.Zero(balance, "balance write must not survive rollback")

		reserved, err := tx.Reserved(node)
		s.Require().NoError(err)
		s.False(reserved, "reservation must not survive rollback")

		_, ok, err = tx.GetReverse(alice)
		s.Require().NoError(err)
		s.False(ok, "reverse binding must not survive rollback")
		return nil
	})
	s.Require().NoError(err)
}

func (s *MemoryStoreSuite) TestReadsSeeEarlierWritesInSameTx() {
	node := namehash.LabelHash("alice")

	err := s.store.RunInTx(s.ctx, func(tx Tx) error {
		s.Require().NoError(tx.PutNode(node, Node{Owner: alice}))

		n, ok, err := tx.GetNode(node)
		s.Require().NoError(err)
		s.True(ok)
		s.Equal(alice, n.Owner)
		return nil
	})
	s.Require().NoError(err)
}

func (s *MemoryStoreSuite) TestDeletesObservedInTx() {
	label := namehash.LabelHash("alice")

	err := s.store.RunInTx(s.ctx, func(tx Tx) error {
		s.Require().NoError(tx.PutApproval(label, bob))
		return nil
	})
	s.Require().NoError(err)

	err = s.store.RunInTx(s.ctx, func(tx Tx) error {
		s.Require().NoError(tx.DeleteApproval(label))

		_, ok, err := tx.GetApproval(label)
		s.Require().NoError(err)
		s.False(ok, "delete must be visible inside the same tx")
		return nil
	})
	s.Require().NoError(err)

	err = s.store.View(s.ctx, func(tx Tx) error {
		_, ok, err := tx.GetApproval(label)
		s.Require().NoError(err)
		s.False(ok)
		return nil
	})
	s.Require().NoError(err)
}

func (s *MemoryStoreSuite) TestRecords() {
	node := namehash.LabelHash("alice")

	err := s.store.RunInTx(s.ctx, func(tx Tx) error {
		s.Require().NoError(tx.PutRecord(node, Record{Kind: RecordAddr, Value: alice.String()}))
		s.Require().NoError(tx.PutRecord(node, Record{Kind: RecordText, Key: "url", Value: "https://alice.example"}))
		s.Require().NoError(tx.PutRecord(node, Record{Kind: RecordText, Key: "url", Value: "https://alice.example/v2"}))
		return nil
	})
	s.Require().NoError(err)

	err = s.store.View(s.ctx, func(tx Tx) error {
		v, ok, err := tx.GetRecord(node, RecordText, "url")
		s.Require().NoError(err)
		s.True(ok)
		s.Equal("https://alice.example/v2", v, "same kind+key upserts")

		records, err := tx.ListRecords(node)
		s.Require().NoError(err)
		s.Len(records, 2)
		return nil
	})
	s.Require().NoError(err)
}

func (s *MemoryStoreSuite) TestCancelledContextRejected() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	err := s.store.RunInTx(ctx, func(tx Tx) error { return nil })
	s.Require().Error(err)
}

func TestValidRecordKind(t *testing.T) {
	for _, k := range []RecordKind{RecordAddr, RecordText, RecordMultiAddr} {
		if !ValidRecordKind(k) {
			t.Errorf("expected %q to be valid", k)
		}
	}
	if ValidRecordKind("dns") {
		t.Error("unknown kind must be invalid")
	}
}
