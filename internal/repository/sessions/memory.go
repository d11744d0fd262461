// Package sessions keeps per-session shipment state (cart, dialog flag,
// selection generation) outside of any request.
package sessions

import (
	"context"
	"sync"

	"github.com/mamadbah2/warehouse/internal/domain/models"
)

// MemoryStore keeps sessions in process memory. It suits single-instance
// deployments; state is lost on restart.
type MemoryStore struct {
	sessions map[models.SessionKey]models.ShipmentSession
	mu       sync.RWMutex
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[models.SessionKey]models.ShipmentSession),
	}
}

// Load returns the stored session or a fresh one.
func (s *MemoryStore) Load(_ context.Context, key models.SessionKey) (models.ShipmentSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if session, exists := s.sessions[key]; exists {
		// Copy the cart so callers never share the stored map.
		session.Cart = models.NewCart(session.Cart.IDs()...)
		return session, nil
	}
	return models.ShipmentSession{}, nil
}

// Save replaces the stored session.
func (s *MemoryStore) Save(_ context.Context, key models.SessionKey, session models.ShipmentSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.Cart = models.NewCart(session.Cart.IDs()...)
	s.sessions[key] = session
	return nil
}

// Delete removes a session.
func (s *MemoryStore) Delete(_ context.Context, key models.SessionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}
