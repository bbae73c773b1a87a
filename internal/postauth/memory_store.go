package postauth

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory monitoring store for demo/development.
type MemoryStore struct {
	mu        sync.RWMutex
	orders    map[string]*PostAuthOrder // by ID
	byPreAuth map[string]string         // preAuthOrderID → ID
}

// NewMemoryStore creates a new in-memory post-auth store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:    make(map[string]*PostAuthOrder),
		byPreAuth: make(map[string]string),
	}
}

func copyMonitor(o *PostAuthOrder) *PostAuthOrder {
	cp := *o
	cp.Signals = append([]string(nil), o.Signals...)
	cp.Evidence = append([]EvidenceItem(nil), o.Evidence...)
	cp.Notes = append([]Note(nil), o.Notes...)
	return &cp
}

func (m *MemoryStore) Create(_ context.Context, order *PostAuthOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = copyMonitor(order)
	m.byPreAuth[order.PreAuthOrderID] = order.ID
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*PostAuthOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return copyMonitor(o), nil
}

func (m *MemoryStore) GetByPreAuth(_ context.Context, preAuthOrderID string) (*PostAuthOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byPreAuth[preAuthOrderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return copyMonitor(m.orders[id]), nil
}

func (m *MemoryStore) Update(_ context.Context, order *PostAuthOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[order.ID]; !ok {
		return ErrOrderNotFound
	}
	m.orders[order.ID] = copyMonitor(order)
	return nil
}

func (m *MemoryStore) ListByMerchant(_ context.Context, merchantID string, limit int) ([]*PostAuthOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*PostAuthOrder
	for _, o := range m.orders {
		if o.MerchantID == merchantID {
			result = append(result, copyMonitor(o))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) ListMonitoringEnded(_ context.Context, before time.Time, limit int) ([]*PostAuthOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*PostAuthOrder
	for _, o := range m.orders {
		if o.Status == StatusUnderMonitoring && o.MonitoringEndsAt.Before(before) {
			result = append(result, copyMonitor(o))
		}
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}
