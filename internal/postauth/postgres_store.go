package postauth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PostgresStore persists monitoring records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed post-auth store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const monitorColumns = `
	id, merchant_id, pre_auth_order_id, scan_id, chargeback_risk,
	signals, recommendation, evidence, notes, status,
	monitoring_ends_at, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, o *PostAuthOrder) error {
	signalsJSON, evidenceJSON, notesJSON, err := marshalLists(o)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO post_auth_orders (`+monitorColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		o.ID, o.MerchantID, o.PreAuthOrderID, o.ScanID, o.ChargebackRisk,
		signalsJSON, o.Recommendation, evidenceJSON, notesJSON, string(o.Status),
		o.MonitoringEndsAt, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create monitoring record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*PostAuthOrder, error) {
	return s.queryOne(ctx, `SELECT `+monitorColumns+` FROM post_auth_orders WHERE id = $1`, id)
}

func (s *PostgresStore) GetByPreAuth(ctx context.Context, preAuthOrderID string) (*PostAuthOrder, error) {
	return s.queryOne(ctx, `SELECT `+monitorColumns+` FROM post_auth_orders WHERE pre_auth_order_id = $1`, preAuthOrderID)
}

func (s *PostgresStore) Update(ctx context.Context, o *PostAuthOrder) error {
	signalsJSON, evidenceJSON, notesJSON, err := marshalLists(o)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE post_auth_orders SET
			chargeback_risk = $1, signals = $2, recommendation = $3,
			evidence = $4, notes = $5, status = $6, updated_at = $7
		WHERE id = $8
	`,
		o.ChargebackRisk, signalsJSON, o.Recommendation,
		evidenceJSON, notesJSON, string(o.Status), o.UpdatedAt, o.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update monitoring record: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (s *PostgresStore) ListByMerchant(ctx context.Context, merchantID string, limit int) ([]*PostAuthOrder, error) {
	return s.queryMany(ctx, `
		SELECT `+monitorColumns+` FROM post_auth_orders
		WHERE merchant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, merchantID, limit)
}

func (s *PostgresStore) ListMonitoringEnded(ctx context.Context, before time.Time, limit int) ([]*PostAuthOrder, error) {
	return s.queryMany(ctx, `
		SELECT `+monitorColumns+` FROM post_auth_orders
		WHERE status = 'UNDER_MONITORING' AND monitoring_ends_at < $1
		ORDER BY monitoring_ends_at ASC
		LIMIT $2
	`, before, limit)
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, args ...any) (*PostAuthOrder, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get monitoring record: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, ErrOrderNotFound
	}
	return scanMonitor(rows)
}

func (s *PostgresStore) queryMany(ctx context.Context, query string, args ...any) ([]*PostAuthOrder, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitoring records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*PostAuthOrder
	for rows.Next() {
		o, err := scanMonitor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func scanMonitor(rows *sql.Rows) (*PostAuthOrder, error) {
	var o PostAuthOrder
	var signalsJSON, evidenceJSON, notesJSON []byte
	var recommendation sql.NullString
	var status string

	err := rows.Scan(
		&o.ID, &o.MerchantID, &o.PreAuthOrderID, &o.ScanID, &o.ChargebackRisk,
		&signalsJSON, &recommendation, &evidenceJSON, &notesJSON, &status,
		&o.MonitoringEndsAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan monitoring record: %w", err)
	}

	o.Recommendation = recommendation.String
	o.Status = Status(status)
	if err := json.Unmarshal(signalsJSON, &o.Signals); err != nil {
		o.Signals = []string{}
	}
	if err := json.Unmarshal(evidenceJSON, &o.Evidence); err != nil {
		o.Evidence = []EvidenceItem{}
	}
	if err := json.Unmarshal(notesJSON, &o.Notes); err != nil {
		o.Notes = []Note{}
	}
	return &o, nil
}

func marshalLists(o *PostAuthOrder) (signalsJSON, evidenceJSON, notesJSON []byte, err error) {
	if signalsJSON, err = json.Marshal(o.Signals); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal signals: %w", err)
	}
	if evidenceJSON, err = json.Marshal(o.Evidence); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal evidence: %w", err)
	}
	if notesJSON, err = json.Marshal(o.Notes); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal notes: %w", err)
	}
	return signalsJSON, evidenceJSON, notesJSON, nil
}
