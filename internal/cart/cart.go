package cart

import (
	"context"
	"sync"
	"time"

	"apotekku/backend/internal/domain"
)

// Store holds session carts. Carts are a working set, not an order: they
// expire with the session and are cleared after a successful checkout.
type Store interface {
	Get(ctx context.Context, sessionID string) (*domain.Cart, bool, error)
	Save(ctx context.Context, cart domain.Cart) error
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore is the fallback cart store used when Redis is not
// configured. Entries older than the TTL are dropped lazily on read.
type MemoryStore struct {
	mu    sync.RWMutex
	ttl   time.Duration
	carts map[string]domain.Cart
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &MemoryStore{ttl: ttl, carts: make(map[string]domain.Cart)}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*domain.Cart, bool, error) {
	s.mu.RLock()
	cart, ok := s.carts[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if time.Since(cart.UpdatedAt) > s.ttl {
		s.mu.Lock()
		delete(s.carts, sessionID)
		s.mu.Unlock()
		return nil, false, nil
	}
	copied := cart
	copied.Items = append([]domain.CartItem(nil), cart.Items...)
	return &copied, true, nil
}

func (s *MemoryStore) Save(_ context.Context, cart domain.Cart) error {
	cart.Items = append([]domain.CartItem(nil), cart.Items...)
	cart.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[cart.SessionID] = cart
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sessionID)
	return nil
}
