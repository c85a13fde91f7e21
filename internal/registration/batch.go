package registration

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"selns/internal/events"
	"selns/internal/funds"
	"selns/internal/names"
	"selns/internal/pricing"
	"selns/internal/registrar"
	"selns/internal/registration/commitstore"
	"selns/internal/state"
	"selns/pkg/domain"
	dErrors "selns/pkg/domain-errors"
	"selns/pkg/namehash"
	"selns/pkg/platform/sentinel"
)

const batchReadConcurrency = 8

// BatchAvailable checks availability for many names concurrently. The
// result slice is positional with the input.
func (s *Service) BatchAvailable(ctx context.Context, nameList []string) ([]bool, error) {
	out := make([]bool, len(nameList))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchReadConcurrency)
	for i, name := range nameList {
		g.Go(func() error {
			available, err := s.Available(ctx, name)
			if err != nil {
				return err
			}
			out[i] = available
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// BatchRentPrice quotes many names against one duration under a single
// policy snapshot, so a concurrent SetPricing cannot split the quotes.
func (s *Service) BatchRentPrice(nameList []string, duration time.Duration) []pricing.Quote {
	s.pmu.RLock()
	defer s.pmu.RUnlock()
	out := make([]pricing.Quote, len(nameList))
	for i, name := range nameList {
		out[i] = s.policy.Price(name, duration)
	}
	return out
}

// BatchCommit records several commitments atomically: either every hash is
// accepted or none is. Duplicates within the batch and hashes that are
// already pending reject the whole batch.
func (s *Service) BatchCommit(ctx context.Context, hashes []namehash.Hash) error {
	seen := make(map[namehash.Hash]struct{}, len(hashes))
	for _, h := range hashes {
		if _, dup := seen[h]; dup {
			return dErrors.New(dErrors.CodeCommitmentExists, "duplicate commitment hash within batch")
		}
		seen[h] = struct{}{}
	}

	now := s.clock.Now()
	inserted := make([]namehash.Hash, 0, len(hashes))
	for _, h := range hashes {
		err := s.commits.Put(ctx, commitstore.Commitment{Hash: h, SubmittedAt: now})
		if err != nil {
			// Roll back what this batch inserted so a rejected batch
			// leaves no pending commitments behind.
			for _, prev := range inserted {
				if delErr := s.commits.Delete(ctx, prev); delErr != nil {
					s.logger.ErrorContext(ctx, "failed to roll back batch commitment",
						"hash", prev.Hex(), "error", delErr)
				}
			}
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Newf(dErrors.CodeCommitmentExists, "commitment %s is already pending", h.Hex())
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record commitment")
		}
		inserted = append(inserted, h)
	}

	for _, h := range hashes {
		s.emit(ctx, events.Event{Kind: events.KindCommitmentCreated, Hash: h.Hex()})
	}
	if s.metrics != nil {
		s.metrics.CommitmentsCreated.Add(float64(len(hashes)))
	}
	return nil
}

// RenewalItem is one entry of a batch renewal.
type RenewalItem struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// BatchRenewResult is the outcome of a batch renewal. Items is positional
// with the request; the refund applies to the batch payment as a whole, so
// it lives here rather than on any single item.
type BatchRenewResult struct {
	Items  []Result `json:"items"`
	Refund uint64   `json:"refund"`
}

// BatchRenew renews several names inside one transaction. Total payment is
// checked against the summed base price up front, and any individual
// failure rolls back every renewal in the batch.
func (s *Service) BatchRenew(ctx context.Context, caller domain.Principal, items []RenewalItem, payment uint64) (BatchRenewResult, error) {
	if len(items) == 0 {
		return BatchRenewResult{}, dErrors.New(dErrors.CodeBadRequest, "empty renewal batch")
	}
	for _, item := range items {
		if err := names.Check(item.Name); err != nil {
			return BatchRenewResult{}, err
		}
		if item.Duration <= 0 {
			return BatchRenewResult{}, dErrors.Newf(dErrors.CodeDurationTooShort, "renewal duration for %q must be positive", item.Name)
		}
	}

	now := s.clock.Now()
	var total uint64
	quotes := make([]pricing.Quote, len(items))
	func() {
		s.pmu.RLock()
		defer s.pmu.RUnlock()
		for i, item := range items {
			quotes[i] = s.policy.Price(item.Name, item.Duration)
			total += quotes[i].Base
		}
	}()
	if payment < total {
		return BatchRenewResult{}, dErrors.New(dErrors.CodeInsufficientPayment, "attached payment below the summed renewal price")
	}

	results := make([]Result, len(items))
	err := s.store.RunInTx(ctx, func(tx state.Tx) error {
		if err := funds.DebitTx(tx, caller, payment); err != nil {
			return err
		}
		if err := funds.CreditTx(tx, s.treasury, total); err != nil {
			return err
		}
		for i, item := range items {
			label := namehash.LabelHash(item.Name)
			expires, err := registrar.RenewTx(tx, label, caller, item.Duration, now, s.registrar.GracePeriod(), s.registrar.Policy())
			if err != nil {
				return dErrors.Wrapf(err, dErrors.CodeOf(err), "renew %q", item.Name)
			}
			results[i] = Result{
				Name:      item.Name,
				Label:     label.Hex(),
				Base:      quotes[i].Base,
				ExpiresAt: expires,
			}
		}
		return funds.RefundTx(tx, caller, payment-total)
	})
	if err != nil {
		return BatchRenewResult{}, err
	}

	for _, r := range results {
		s.emit(ctx, events.Event{
			Kind:      events.KindNameRenewed,
			Name:      r.Name,
			Label:     r.Label,
			Cost:      r.Base,
			ExpiresAt: r.ExpiresAt,
		})
	}
	if s.metrics != nil {
		s.metrics.NamesRenewed.Add(float64(len(items)))
		s.metrics.RevenueCollected.Add(float64(total))
	}
	return BatchRenewResult{Items: results, Refund: payment - total}, nil
}
