// Package events defines the append-only event stream observed by indexers
// and SDKs. Domain services record events only after their state transaction
// commits; sinks fan out (in-process for tests, Kafka for deployments).
package events

import (
	"context"
	"sync"
	"time"

	"selns/pkg/domain"
)

// Kind names an event type on the stream.
type Kind string

const (
	KindCommitmentCreated    Kind = "commitment_created"
	KindNameRegistered       Kind = "name_registered"
	KindNameRenewed          Kind = "name_renewed"
	KindNameReserved         Kind = "name_reserved"
	KindNameUnreserved       Kind = "name_unreserved"
	KindOwnershipTransferred Kind = "ownership_transferred"
	KindNodeOwnerChanged     Kind = "node_owner_changed"
	KindResolverChanged      Kind = "resolver_changed"
)

// Event is one entry on the stream. Fields are sparse: each kind fills only
// what it carries.
type Event struct {
	ID        string           `json:"id"`
	Kind      Kind             `json:"kind"`
	Timestamp time.Time        `json:"timestamp"`
	Name      string           `json:"name,omitempty"`
	Label     string           `json:"label,omitempty"`
	Node      string           `json:"node,omitempty"`
	Owner     domain.Principal `json:"owner,omitempty"`
	Resolver  domain.Principal `json:"resolver,omitempty"`
	From      domain.Principal `json:"from,omitempty"`
	To        domain.Principal `json:"to,omitempty"`
	Cost      uint64           `json:"cost,omitempty"`
	ExpiresAt time.Time        `json:"expires_at,omitzero"`
	Hash      string           `json:"hash,omitempty"`
}

// Publisher appends events to the stream. Publishing is best-effort from the
// core's perspective: a sink failure must not abort an already-committed
// state transition.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Memory collects events in order; the default sink and the test observer.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Publish(_ context.Context, e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

// Events returns a copy of everything published so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event{}, m.events...)
}

// Discard drops every event; useful where no observer is wired.
type Discard struct{}

func (Discard) Publish(context.Context, Event) {}
