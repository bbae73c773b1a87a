package merchant

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory merchant store for demo/development.
type MemoryStore struct {
	mu        sync.RWMutex
	merchants map[string]*Merchant // by ID
	byEmail   map[string]string    // email → ID
	keys      map[string]*APIKey   // by hash
}

// NewMemoryStore creates a new in-memory merchant store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		merchants: make(map[string]*Merchant),
		byEmail:   make(map[string]string),
		keys:      make(map[string]*APIKey),
	}
}

func (m *MemoryStore) CreateMerchant(_ context.Context, merch *Merchant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byEmail[merch.Email]; exists {
		return ErrEmailTaken
	}
	cp := *merch
	m.merchants[merch.ID] = &cp
	m.byEmail[merch.Email] = merch.ID
	return nil
}

func (m *MemoryStore) GetMerchant(_ context.Context, id string) (*Merchant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	merch, ok := m.merchants[id]
	if !ok {
		return nil, ErrMerchantNotFound
	}
	cp := *merch
	return &cp, nil
}

func (m *MemoryStore) GetMerchantByEmail(_ context.Context, email string) (*Merchant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[email]
	if !ok {
		return nil, ErrMerchantNotFound
	}
	cp := *m.merchants[id]
	return &cp, nil
}

func (m *MemoryStore) CreateKey(_ context.Context, key *APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *key
	m.keys[key.Hash] = &cp
	return nil
}

func (m *MemoryStore) GetKeyByHash(_ context.Context, hash string) (*APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, ok := m.keys[hash]
	if !ok {
		return nil, ErrInvalidAPIKey
	}
	cp := *key
	return &cp, nil
}

func (m *MemoryStore) UpdateKey(_ context.Context, key *APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.keys[key.Hash]; !ok {
		return ErrInvalidAPIKey
	}
	cp := *key
	m.keys[key.Hash] = &cp
	return nil
}
