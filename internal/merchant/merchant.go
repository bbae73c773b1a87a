// Package merchant provides merchant accounts and API authentication.
//
// Authentication model:
// - Registration is public and issues an API key, shown exactly once.
// - Every engine operation requires a valid API key; the key resolves to a
//   MerchantID at the HTTP boundary, and all downstream calls take that
//   MerchantID explicitly.
// - Keys are stored as SHA256 hashes; the raw key is never persisted.
package merchant

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// Errors
var (
	ErrNoAPIKey         = errors.New("merchant: API key required")
	ErrInvalidAPIKey    = errors.New("merchant: invalid or revoked API key")
	ErrMerchantNotFound = errors.New("merchant: not found")
	ErrEmailTaken       = errors.New("merchant: email already registered")
)

// Status represents a merchant account's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Merchant represents a merchant account that submits orders for screening.
type Merchant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// APIKey is the stored metadata for an issued key.
type APIKey struct {
	ID         string    `json:"id"`
	Hash       string    `json:"-"` // SHA256 of the raw key
	MerchantID string    `json:"merchantId"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsed   time.Time `json:"lastUsed,omitempty"`
	Revoked    bool      `json:"revoked"`
}

// Store persists merchants and their API keys.
type Store interface {
	CreateMerchant(ctx context.Context, m *Merchant) error
	GetMerchant(ctx context.Context, id string) (*Merchant, error)
	GetMerchantByEmail(ctx context.Context, email string) (*Merchant, error)
	CreateKey(ctx context.Context, key *APIKey) error
	GetKeyByHash(ctx context.Context, hash string) (*APIKey, error)
	UpdateKey(ctx context.Context, key *APIKey) error
}

// Manager handles merchant registration and key validation.
type Manager struct {
	store Store
}

// NewManager creates a new merchant manager.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Register creates a merchant account and issues its first API key.
// The raw key is returned once and never stored.
func (m *Manager) Register(ctx context.Context, name, email string) (*Merchant, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if existing, err := m.store.GetMerchantByEmail(ctx, email); err == nil && existing != nil {
		return nil, "", ErrEmailTaken
	}

	now := time.Now()
	merch := &Merchant{
		ID:        "mer_" + randomHex(12),
		Name:      name,
		Email:     email,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.CreateMerchant(ctx, merch); err != nil {
		return nil, "", err
	}

	rawKey, err := m.IssueKey(ctx, merch.ID, "default")
	if err != nil {
		return nil, "", err
	}
	return merch, rawKey, nil
}

// IssueKey creates a new API key for a merchant and returns the raw key.
func (m *Manager) IssueKey(ctx context.Context, merchantID, name string) (string, error) {
	rawKey := "sk_" + randomHex(32)
	key := &APIKey{
		ID:         "ak_" + randomHex(8),
		Hash:       hashKey(rawKey),
		MerchantID: merchantID,
		Name:       name,
		CreatedAt:  time.Now(),
	}
	if err := m.store.CreateKey(ctx, key); err != nil {
		return "", err
	}
	return rawKey, nil
}

// ValidateKey validates a raw API key and returns its metadata.
// Accepts keys with or without a "Bearer " prefix.
func (m *Manager) ValidateKey(ctx context.Context, rawKey string) (*APIKey, error) {
	if rawKey == "" {
		return nil, ErrNoAPIKey
	}
	rawKey = strings.TrimPrefix(rawKey, "Bearer ")
	rawKey = strings.TrimSpace(rawKey)

	key, err := m.store.GetKeyByHash(ctx, hashKey(rawKey))
	if err != nil {
		return nil, ErrInvalidAPIKey
	}
	if key.Revoked {
		return nil, ErrInvalidAPIKey
	}

	// Best-effort last-used stamp
	key.LastUsed = time.Now()
	_ = m.store.UpdateKey(ctx, key)

	return key, nil
}

func hashKey(rawKey string) string {
	h := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(h[:])
}

func randomHex(numBytes int) string {
	b := make([]byte, numBytes)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}
