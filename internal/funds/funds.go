// Package funds keeps the payment accounts backing registrations and
// renewals. Amounts are microcredits. Debits, charges, and refunds happen
// inside the caller's state transaction so payment movement is atomic with
// the lease mutation it pays for.
package funds

import (
	"context"
	"log/slog"

	"selns/internal/state"
	"selns/pkg/domain"
	dErrors "selns/pkg/domain-errors"
)

// DebitTx removes amount from p's balance. Fails with InsufficientPayment
// when the balance cannot cover it.
func DebitTx(tx state.Tx, p domain.Principal, amount uint64) error {
	balance, err := tx.Balance(p)
	if err != nil {
		return err
	}
	if balance < amount {
		return dErrors.New(dErrors.CodeInsufficientPayment, "account balance below attached payment")
	}
	return tx.SetBalance(p, balance-amount)
}

// CreditTx adds amount to p's balance.
func CreditTx(tx state.Tx, p domain.Principal, amount uint64) error {
	balance, err := tx.Balance(p)
	if err != nil {
		return err
	}
	return tx.SetBalance(p, balance+amount)
}

// RefundTx returns excess payment to p. A failure here must abort the whole
// call, so store errors are promoted to RefundFailed.
func RefundTx(tx state.Tx, p domain.Principal, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := CreditTx(tx, p, amount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeRefundFailed, "excess payment could not be returned")
	}
	return nil
}

// Service exposes deposit and balance lookups over the account table.
type Service struct {
	store  state.Store
	logger *slog.Logger
}

func New(store state.Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Deposit credits the caller's own account.
func (s *Service) Deposit(ctx context.Context, p domain.Principal, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "deposit amount must be positive")
	}
	var balance uint64
	err := s.store.RunInTx(ctx, func(tx state.Tx) error {
		if err := CreditTx(tx, p, amount); err != nil {
			return err
		}
		var err error
		balance, err = tx.Balance(p)
		return err
	})
	if err == nil && s.logger != nil {
		s.logger.InfoContext(ctx, "deposit credited", "principal", p, "amount", amount, "balance", balance)
	}
	return balance, err
}

// Balance reads the current balance for p.
func (s *Service) Balance(ctx context.Context, p domain.Principal) (uint64, error) {
	var balance uint64
	err := s.store.View(ctx, func(tx state.Tx) error {
		var err error
		balance, err = tx.Balance(p)
		return err
	})
	return balance, err
}
