// Package commitstore persists pending commitments. Commitments live
// outside the main state store on purpose: consuming one must survive a
// failed registration, otherwise a failed attempt could be replayed
// verbatim by an attacker racing the same hash.
package commitstore

import (
	"context"
	"time"

	"selns/pkg/namehash"
)

// Commitment is a pending, opaque registration intent.
type Commitment struct {
	Hash        namehash.Hash
	SubmittedAt time.Time
}

// Store holds pending commitments keyed by hash.
//
// Implementations return sentinel.ErrConflict from Put when a pending
// commitment with the same hash exists, and sentinel.ErrNotFound from Get
// and Consume when none does.
type Store interface {
	// Put records a new pending commitment.
	Put(ctx context.Context, c Commitment) error
	// Get reads a pending commitment without consuming it.
	Get(ctx context.Context, hash namehash.Hash) (Commitment, error)
	// Consume atomically reads and removes a pending commitment, so two
	// racing reveals can consume it at most once.
	Consume(ctx context.Context, hash namehash.Hash) (Commitment, error)
	// Delete removes a pending commitment if present.
	Delete(ctx context.Context, hash namehash.Hash) error
}
