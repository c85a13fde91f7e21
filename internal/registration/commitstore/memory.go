package commitstore

import (
	"context"
	"sync"

	"selns/pkg/namehash"
	"selns/pkg/platform/sentinel"
)

// Memory is the in-process commitment store.
type Memory struct {
	mu      sync.Mutex
	pending map[namehash.Hash]Commitment
}

func NewMemory() *Memory {
	return &Memory{pending: make(map[namehash.Hash]Commitment)}
}

func (m *Memory) Put(_ context.Context, c Commitment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.pending[c.Hash]; exists {
		return sentinel.ErrConflict
	}
	m.pending[c.Hash] = c
	return nil
}

func (m *Memory) Get(_ context.Context, hash namehash.Hash) (Commitment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.pending[hash]
	if !ok {
		return Commitment{}, sentinel.ErrNotFound
	}
	return c, nil
}

func (m *Memory) Consume(_ context.Context, hash namehash.Hash) (Commitment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.pending[hash]
	if !ok {
		return Commitment{}, sentinel.ErrNotFound
	}
	delete(m.pending, hash)
	return c, nil
}

func (m *Memory) Delete(_ context.Context, hash namehash.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, hash)
	return nil
}
