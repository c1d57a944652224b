// Package memory is a process-local platform.Storage. It is what the
// coordinator uses when no durable driver is configured, and what tests use.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bryanwahyu/caniclickit/internal/domain/platform"
)

type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Get(_ context.Context, key string, dst any) error {
	s.mu.RLock()
	raw, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return platform.ErrNotFound
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) Set(_ context.Context, values map[string]any) error {
	encoded := make(map[string][]byte, len(values))
	for k, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", k, err)
		}
		encoded[k] = b
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, b := range encoded {
		s.data[k] = b
	}
	return nil
}

// Check implements the health checker used by /health.
func (s *Store) Check(context.Context) error { return nil }
