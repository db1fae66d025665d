// Package state holds the StateStore implementations: in-memory for tests and
// single-process runs, PostgreSQL and Redis for durable deployments.
package state

import (
	"context"
	"fmt"
	"sync"

	"mintgate/internal/sale/models"
	"mintgate/pkg/platform/sentinel"
)

type InMemoryStateStore struct {
	mu    sync.RWMutex
	state *models.State
}

func NewInMemory() *InMemoryStateStore {
	return &InMemoryStateStore{}
}

func (s *InMemoryStateStore) Load(_ context.Context) (*models.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return nil, sentinel.ErrNotFound
	}
	return s.state.Clone(), nil
}

func (s *InMemoryStateStore) ApplyClaim(_ context.Context, delta models.ClaimDelta) (models.ClaimResult, error) {
	if err := claimable(delta); err != nil {
		return models.ClaimResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.state
	if current == nil {
		current = models.NewState()
	}
	if err := current.Check(delta); err != nil {
		return models.ClaimResult{}, err
	}
	s.state = current
	s.state.Apply(delta)
	return s.state.Result(delta.Address), nil
}

func (s *InMemoryStateStore) SetPhase(_ context.Context, phase models.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensure()
	s.state.Phase = phase
	return nil
}

// claimable rejects deltas no phase check could ever accept.
func claimable(delta models.ClaimDelta) error {
	if delta.Phase != models.PhaseEarly && delta.Phase != models.PhaseOpen {
		return fmt.Errorf("apply claim in phase %s: %w", delta.Phase, sentinel.ErrInvalidState)
	}
	return nil
}

func (s *InMemoryStateStore) ensure() {
	if s.state == nil {
		s.state = models.NewState()
	}
}
