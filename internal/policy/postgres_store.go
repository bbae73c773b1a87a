package policy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PostgresStore persists risk policies in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed policy store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, merchantID string) (*RiskPolicy, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT merchant_id, auto_approve_threshold, auto_decline_threshold,
		       require_review_above_amount, first_time_customer_max_amount,
		       block_high_risk_countries, block_disposable_emails, require_phone_validation,
		       max_orders_per_email_per_hour, max_orders_per_device_per_hour,
		       high_risk_country_codes, review_timeout_hours, created_at, updated_at
		FROM risk_policies
		WHERE merchant_id = $1
	`, merchantID)

	var p RiskPolicy
	var codesJSON []byte
	var createdAt, updatedAt time.Time
	err := row.Scan(
		&p.MerchantID, &p.AutoApproveThreshold, &p.AutoDeclineThreshold,
		&p.RequireReviewAboveAmount, &p.FirstTimeCustomerMaxAmount,
		&p.BlockHighRiskCountries, &p.BlockDisposableEmails, &p.RequirePhoneValidation,
		&p.MaxOrdersPerEmailPerHour, &p.MaxOrdersPerDevicePerHour,
		&codesJSON, &p.ReviewTimeoutHours, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}

	p.CreatedAt = createdAt
	p.UpdatedAt = updatedAt
	if err := json.Unmarshal(codesJSON, &p.HighRiskCountryCodes); err != nil {
		return nil, fmt.Errorf("failed to decode country codes: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, p *RiskPolicy) error {
	codesJSON, err := json.Marshal(p.HighRiskCountryCodes)
	if err != nil {
		return fmt.Errorf("failed to marshal country codes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO risk_policies (
			merchant_id, auto_approve_threshold, auto_decline_threshold,
			require_review_above_amount, first_time_customer_max_amount,
			block_high_risk_countries, block_disposable_emails, require_phone_validation,
			max_orders_per_email_per_hour, max_orders_per_device_per_hour,
			high_risk_country_codes, review_timeout_hours, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (merchant_id) DO UPDATE SET
			auto_approve_threshold = EXCLUDED.auto_approve_threshold,
			auto_decline_threshold = EXCLUDED.auto_decline_threshold,
			require_review_above_amount = EXCLUDED.require_review_above_amount,
			first_time_customer_max_amount = EXCLUDED.first_time_customer_max_amount,
			block_high_risk_countries = EXCLUDED.block_high_risk_countries,
			block_disposable_emails = EXCLUDED.block_disposable_emails,
			require_phone_validation = EXCLUDED.require_phone_validation,
			max_orders_per_email_per_hour = EXCLUDED.max_orders_per_email_per_hour,
			max_orders_per_device_per_hour = EXCLUDED.max_orders_per_device_per_hour,
			high_risk_country_codes = EXCLUDED.high_risk_country_codes,
			review_timeout_hours = EXCLUDED.review_timeout_hours,
			updated_at = EXCLUDED.updated_at
	`,
		p.MerchantID, p.AutoApproveThreshold, p.AutoDeclineThreshold,
		p.RequireReviewAboveAmount, p.FirstTimeCustomerMaxAmount,
		p.BlockHighRiskCountries, p.BlockDisposableEmails, p.RequirePhoneValidation,
		p.MaxOrdersPerEmailPerHour, p.MaxOrdersPerDevicePerHour,
		codesJSON, p.ReviewTimeoutHours, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert policy: %w", err)
	}
	return nil
}
