package merchant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore persists merchants and API keys in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed merchant store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateMerchant(ctx context.Context, m *Merchant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO merchants (id, name, email, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.Name, m.Email, string(m.Status), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create merchant: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMerchant(ctx context.Context, id string) (*Merchant, error) {
	return s.scanMerchant(s.db.QueryRowContext(ctx, `
		SELECT id, name, email, status, created_at, updated_at
		FROM merchants WHERE id = $1
	`, id))
}

func (s *PostgresStore) GetMerchantByEmail(ctx context.Context, email string) (*Merchant, error) {
	return s.scanMerchant(s.db.QueryRowContext(ctx, `
		SELECT id, name, email, status, created_at, updated_at
		FROM merchants WHERE email = $1
	`, email))
}

func (s *PostgresStore) scanMerchant(row *sql.Row) (*Merchant, error) {
	var m Merchant
	var status string
	err := row.Scan(&m.ID, &m.Name, &m.Email, &status, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMerchantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get merchant: %w", err)
	}
	m.Status = Status(status)
	return &m, nil
}

func (s *PostgresStore) CreateKey(ctx context.Context, key *APIKey) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO merchant_api_keys (id, key_hash, merchant_id, name, created_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, key.ID, key.Hash, key.MerchantID, key.Name, key.CreatedAt, key.Revoked)
	if err != nil {
		return fmt.Errorf("failed to create API key: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetKeyByHash(ctx context.Context, hash string) (*APIKey, error) {
	var key APIKey
	var lastUsed sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, key_hash, merchant_id, name, created_at, last_used, revoked
		FROM merchant_api_keys WHERE key_hash = $1
	`, hash).Scan(&key.ID, &key.Hash, &key.MerchantID, &key.Name, &key.CreatedAt, &lastUsed, &key.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidAPIKey
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get API key: %w", err)
	}
	if lastUsed.Valid {
		key.LastUsed = lastUsed.Time
	}
	return &key, nil
}

func (s *PostgresStore) UpdateKey(ctx context.Context, key *APIKey) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE merchant_api_keys SET last_used = $1, revoked = $2 WHERE id = $3
	`, key.LastUsed, key.Revoked, key.ID)
	if err != nil {
		return fmt.Errorf("failed to update API key: %w", err)
	}
	return nil
}
