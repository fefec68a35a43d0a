// Package memstore is an in-memory implementation of expression.Storage,
// grounded on the teacher's MemoryStore (a mutex-guarded map keyed by id).
package memstore

import (
	"context"
	"sync"

	"github.com/smilemakc/flowexpr/internal/application/expression"
	"github.com/smilemakc/flowexpr/internal/domain"
)

// Store is an in-memory, FEI-keyed expression.Storage. Suitable for a
// single-process engine and used by every test in this module.
type Store struct {
	mu   sync.RWMutex
	data map[domain.FEI]*expression.Snapshot
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[domain.FEI]*expression.Snapshot)}
}

func (s *Store) Get(ctx context.Context, fei domain.FEI) (*expression.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.data[fei]
	if !ok {
		return nil, domain.NewError(domain.ErrCodeNotFound, "expression not found", nil)
	}
	return snap, nil
}

func (s *Store) Put(ctx context.Context, fei domain.FEI, snap *expression.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[fei] = snap
	return nil
}

func (s *Store) Delete(ctx context.Context, fei domain.FEI) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, fei)
	return nil
}
