package preauth

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dbeloglazov/fraudgate/internal/pagination"
	"github.com/dbeloglazov/fraudgate/internal/signals"
)

// MemoryStore is an in-memory order store for demo/development.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*PreAuthOrder // by ID
}

// NewMemoryStore creates a new in-memory pre-auth order store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*PreAuthOrder)}
}

func copyOrder(o *PreAuthOrder) *PreAuthOrder {
	cp := *o
	cp.Checks = append([]signals.CheckResult(nil), o.Checks...)
	if o.ReviewedAt != nil {
		t := *o.ReviewedAt
		cp.ReviewedAt = &t
	}
	if o.MovedToPostAuthAt != nil {
		t := *o.MovedToPostAuthAt
		cp.MovedToPostAuthAt = &t
	}
	return &cp
}

func (m *MemoryStore) Create(_ context.Context, order *PreAuthOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = copyOrder(order)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*PreAuthOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (m *MemoryStore) Update(_ context.Context, order *PreAuthOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[order.ID]; !ok {
		return ErrOrderNotFound
	}
	m.orders[order.ID] = copyOrder(order)
	return nil
}

func (m *MemoryStore) list(merchantID string, filter func(*PreAuthOrder) bool, limit int) []*PreAuthOrder {
	var result []*PreAuthOrder
	for _, o := range m.orders {
		if o.MerchantID != merchantID {
			continue
		}
		if filter != nil && !filter(o) {
			continue
		}
		result = append(result, copyOrder(o))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func (m *MemoryStore) ListByMerchant(_ context.Context, merchantID string, before *pagination.Cursor, limit int) ([]*PreAuthOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.list(merchantID, func(o *PreAuthOrder) bool {
		if before == nil {
			return true
		}
		if o.CreatedAt.Equal(before.CreatedAt) {
			return o.ID < before.ID
		}
		return o.CreatedAt.Before(before.CreatedAt)
	}, limit), nil
}

func (m *MemoryStore) ListPending(_ context.Context, merchantID string, limit int) ([]*PreAuthOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.list(merchantID, func(o *PreAuthOrder) bool {
		return o.Status == StatusPendingReview
	}, limit), nil
}

func (m *MemoryStore) ListExpiredPending(_ context.Context, before time.Time, limit int) ([]*PreAuthOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*PreAuthOrder
	for _, o := range m.orders {
		if o.Status == StatusPendingReview && o.ExpiresAt.Before(before) {
			result = append(result, copyOrder(o))
		}
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *MemoryStore) CountByEmail(_ context.Context, merchantID, email string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	email = strings.ToLower(email)
	count := 0
	for _, o := range m.orders {
		if o.MerchantID == merchantID && strings.ToLower(o.CustomerEmail) == email {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) CountRecentByEmail(_ context.Context, merchantID, email string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	email = strings.ToLower(email)
	count := 0
	for _, o := range m.orders {
		if o.MerchantID == merchantID && strings.ToLower(o.CustomerEmail) == email && o.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) CountRecentByDevice(_ context.Context, merchantID, fingerprint string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if fingerprint == "" {
		return 0, nil
	}
	count := 0
	for _, o := range m.orders {
		if o.MerchantID == merchantID && o.DeviceFingerprint == fingerprint && o.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}
