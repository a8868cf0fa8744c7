package checkout

import (
	"sync"

	"github.com/google/uuid"

	"storefront/pkg/errors"
)

// Sessions keeps checkout states in memory, keyed by cart ID.
type Sessions struct {
	mu sync.RWMutex
	m  map[uuid.UUID]State
}

// NewSessions creates an empty session store.
func NewSessions() *Sessions {
	return &Sessions{m: make(map[uuid.UUID]State)}
}

// Start opens a checkout for cart.
func (s *Sessions) Start(cart Cart) (State, error) {
	st, err := Reduce(State{}, Start{Cart: cart})
	if err != nil {
		return State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.m[cart.ID]; exists {
		return State{}, errors.NewInvalidTransitionError("checkout already started for cart %s", cart.ID)
	}
	s.m[cart.ID] = st
	return st, nil
}

// Get returns the state of a checkout.
func (s *Sessions) Get(id uuid.UUID) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.m[id]
	return st, ok
}

// Apply reduces action onto the stored state of cart id. Rejected actions leave it unchanged.
func (s *Sessions) Apply(id uuid.UUID, action Action) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[id]
	if !ok {
		return State{}, &errors.StoreError{
			Code:       errors.CodeInvalidTransition,
			Message:    "no checkout for cart",
			Severity:   errors.SeverityWarning,
			ResourceID: id.String(),
		}
	}
	next, err := Reduce(st, action)
	if err != nil {
		return st, err
	}
	s.m[id] = next
	return next, nil
}

// Len returns the number of open sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
