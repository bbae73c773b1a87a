package preauth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dbeloglazov/fraudgate/internal/pagination"
	"github.com/dbeloglazov/fraudgate/internal/scoring"
	"github.com/dbeloglazov/fraudgate/internal/signals"
)

// PostgresStore persists pre-auth orders in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed pre-auth order store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const orderColumns = `
	id, merchant_id, order_id, customer_email, customer_phone, amount,
	shipping_address, billing_address, ip_address, device_fingerprint, card_bin,
	pre_auth_score, pre_auth_risk_level, checks, auto_decision,
	status, created_at, expires_at,
	reviewed_by, reviewed_at, review_decision, review_notes,
	post_auth_scan_id, post_auth_order_id, moved_to_post_auth_at`

func (s *PostgresStore) Create(ctx context.Context, o *PreAuthOrder) error {
	checksJSON, err := json.Marshal(o.Checks)
	if err != nil {
		return fmt.Errorf("failed to marshal checks: %w", err)
	}
	decisionJSON, err := json.Marshal(o.AutoDecision)
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pre_auth_orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
	`,
		o.ID, o.MerchantID, o.OrderID, o.CustomerEmail, nullStr(o.CustomerPhone), o.Amount,
		nullStr(o.ShippingAddress), nullStr(o.BillingAddress), nullStr(o.IPAddress),
		nullStr(o.DeviceFingerprint), nullStr(o.CardBIN),
		o.PreAuthScore, string(o.PreAuthRiskLevel), checksJSON, decisionJSON,
		string(o.Status), o.CreatedAt, o.ExpiresAt,
		nullStr(o.ReviewedBy), nullTime(o.ReviewedAt), nullStr(string(o.ReviewDecision)), nullStr(o.ReviewNotes),
		nullStr(o.PostAuthScanID), nullStr(o.PostAuthOrderID), nullTime(o.MovedToPostAuthAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*PreAuthOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM pre_auth_orders WHERE id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, ErrOrderNotFound
	}
	return scanOrder(rows)
}

func (s *PostgresStore) Update(ctx context.Context, o *PreAuthOrder) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pre_auth_orders SET
			status = $1, reviewed_by = $2, reviewed_at = $3,
			review_decision = $4, review_notes = $5,
			post_auth_scan_id = $6, post_auth_order_id = $7, moved_to_post_auth_at = $8
		WHERE id = $9
	`,
		string(o.Status), nullStr(o.ReviewedBy), nullTime(o.ReviewedAt),
		nullStr(string(o.ReviewDecision)), nullStr(o.ReviewNotes),
		nullStr(o.PostAuthScanID), nullStr(o.PostAuthOrderID), nullTime(o.MovedToPostAuthAt),
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (s *PostgresStore) ListByMerchant(ctx context.Context, merchantID string, before *pagination.Cursor, limit int) ([]*PreAuthOrder, error) {
	if before != nil {
		return s.queryOrders(ctx, `
			SELECT `+orderColumns+` FROM pre_auth_orders
			WHERE merchant_id = $1 AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC
			LIMIT $4
		`, merchantID, before.CreatedAt, before.ID, limit)
	}
	return s.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM pre_auth_orders
		WHERE merchant_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, merchantID, limit)
}

func (s *PostgresStore) ListPending(ctx context.Context, merchantID string, limit int) ([]*PreAuthOrder, error) {
	return s.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM pre_auth_orders
		WHERE merchant_id = $1 AND status = 'PENDING_REVIEW'
		ORDER BY created_at DESC
		LIMIT $2
	`, merchantID, limit)
}

func (s *PostgresStore) ListExpiredPending(ctx context.Context, before time.Time, limit int) ([]*PreAuthOrder, error) {
	return s.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM pre_auth_orders
		WHERE status = 'PENDING_REVIEW' AND expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $2
	`, before, limit)
}

func (s *PostgresStore) CountByEmail(ctx context.Context, merchantID, email string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM pre_auth_orders
		WHERE merchant_id = $1 AND LOWER(customer_email) = LOWER($2)
	`, merchantID, email).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders by email: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountRecentByEmail(ctx context.Context, merchantID, email string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM pre_auth_orders
		WHERE merchant_id = $1 AND LOWER(customer_email) = LOWER($2) AND created_at > $3
	`, merchantID, email, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent orders by email: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountRecentByDevice(ctx context.Context, merchantID, fingerprint string, since time.Time) (int, error) {
	if fingerprint == "" {
		return 0, nil
	}
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM pre_auth_orders
		WHERE merchant_id = $1 AND device_fingerprint = $2 AND created_at > $3
	`, merchantID, fingerprint, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent orders by device: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) queryOrders(ctx context.Context, query string, args ...any) ([]*PreAuthOrder, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*PreAuthOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func scanOrder(rows *sql.Rows) (*PreAuthOrder, error) {
	var o PreAuthOrder
	var phone, shipping, billing, ip, device, cardBIN sql.NullString
	var riskLevel, status string
	var checksJSON, decisionJSON []byte
	var reviewedBy, reviewDecision, reviewNotes sql.NullString
	var reviewedAt, movedAt sql.NullTime
	var scanID, postAuthID sql.NullString

	err := rows.Scan(
		&o.ID, &o.MerchantID, &o.OrderID, &o.CustomerEmail, &phone, &o.Amount,
		&shipping, &billing, &ip, &device, &cardBIN,
		&o.PreAuthScore, &riskLevel, &checksJSON, &decisionJSON,
		&status, &o.CreatedAt, &o.ExpiresAt,
		&reviewedBy, &reviewedAt, &reviewDecision, &reviewNotes,
		&scanID, &postAuthID, &movedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	o.CustomerPhone = phone.String
	o.ShippingAddress = shipping.String
	o.BillingAddress = billing.String
	o.IPAddress = ip.String
	o.DeviceFingerprint = device.String
	o.CardBIN = cardBIN.String
	o.PreAuthRiskLevel = scoring.RiskLevel(riskLevel)
	o.Status = OrderStatus(status)
	o.ReviewedBy = reviewedBy.String
	o.ReviewDecision = ReviewDecision(reviewDecision.String)
	o.ReviewNotes = reviewNotes.String
	o.PostAuthScanID = scanID.String
	o.PostAuthOrderID = postAuthID.String
	if reviewedAt.Valid {
		t := reviewedAt.Time
		o.ReviewedAt = &t
	}
	if movedAt.Valid {
		t := movedAt.Time
		o.MovedToPostAuthAt = &t
	}

	if err := json.Unmarshal(checksJSON, &o.Checks); err != nil {
		o.Checks = []signals.CheckResult{}
	}
	if err := json.Unmarshal(decisionJSON, &o.AutoDecision); err != nil {
		o.AutoDecision = scoring.AutoDecision{}
	}
	return &o, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
