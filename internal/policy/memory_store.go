package policy

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory policy store for demo/development.
type MemoryStore struct {
	mu       sync.RWMutex
	policies map[string]*RiskPolicy // by merchant ID
}

// NewMemoryStore creates a new in-memory policy store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{policies: make(map[string]*RiskPolicy)}
}

func (m *MemoryStore) Get(_ context.Context, merchantID string) (*RiskPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.policies[merchantID]
	if !ok {
		return nil, ErrPolicyNotFound
	}
	cp := *p
	cp.HighRiskCountryCodes = append([]string(nil), p.HighRiskCountryCodes...)
	return &cp, nil
}

func (m *MemoryStore) Upsert(_ context.Context, p *RiskPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *p
	cp.HighRiskCountryCodes = append([]string(nil), p.HighRiskCountryCodes...)
	m.policies[p.MerchantID] = &cp
	return nil
}
