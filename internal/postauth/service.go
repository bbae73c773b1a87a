package postauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dbeloglazov/fraudgate/internal/deepscan"
	"github.com/dbeloglazov/fraudgate/internal/idgen"
	"github.com/dbeloglazov/fraudgate/internal/logging"
	"github.com/dbeloglazov/fraudgate/internal/metrics"
	"github.com/dbeloglazov/fraudgate/internal/pagination"
)

// DefaultListLimit applies when the caller gives no limit; MaxListLimit caps
// what a caller may request in one page.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Service provides monitoring record operations.
type Service struct {
	store Store
}

// NewService creates a post-auth monitoring service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateFromScan persists a monitoring record from a deep-analysis result.
// The risk score is clamped to [0,100]. Implements preauth.PostAuthLinker.
func (s *Service) CreateFromScan(ctx context.Context, merchantID, preAuthOrderID string, scan *deepscan.Result) (string, error) {
	risk := scan.RiskScore
	if risk < 0 {
		risk = 0
	}
	if risk > 100 {
		risk = 100
	}

	now := time.Now()
	order := &PostAuthOrder{
		ID:               idgen.WithPrefix("post_"),
		MerchantID:       merchantID,
		PreAuthOrderID:   preAuthOrderID,
		ScanID:           scan.ScanID,
		ChargebackRisk:   risk,
		Signals:          append([]string(nil), scan.Signals...),
		Recommendation:   scan.Recommendation,
		Evidence:         []EvidenceItem{},
		Notes:            []Note{},
		Status:           StatusUnderMonitoring,
		MonitoringEndsAt: now.Add(MonitoringWindow),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.store.Create(ctx, order); err != nil {
		return "", fmt.Errorf("failed to create monitoring record: %w", err)
	}

	metrics.OrdersUnderMonitoring.Inc()
	return order.ID, nil
}

// FindByPreAuth returns the existing linkage for a pre-auth order, or empty
// IDs when none exists. Implements preauth.PostAuthLinker.
func (s *Service) FindByPreAuth(ctx context.Context, merchantID, preAuthOrderID string) (string, string, error) {
	order, err := s.store.GetByPreAuth(ctx, preAuthOrderID)
	if errors.Is(err, ErrOrderNotFound) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	if order.MerchantID != merchantID {
		return "", "", ErrNotOwner
	}
	return order.ID, order.ScanID, nil
}

// Get returns one monitoring record, ownership-checked.
func (s *Service) Get(ctx context.Context, merchantID, id string) (*PostAuthOrder, error) {
	order, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.MerchantID != merchantID {
		return nil, ErrNotOwner
	}
	return order, nil
}

// List returns the merchant's monitoring records, newest first.
func (s *Service) List(ctx context.Context, merchantID string, limit int) ([]*PostAuthOrder, error) {
	limit = pagination.ClampLimit(limit, DefaultListLimit, MaxListLimit)
	return s.store.ListByMerchant(ctx, merchantID, limit)
}

// AddEvidence appends an evidence item. Evidence is append-only and can be
// added while monitoring is open or after it closed (chargeback disputes
// frequently need evidence gathered afterward).
func (s *Service) AddEvidence(ctx context.Context, merchantID, id, description, addedBy string) (*PostAuthOrder, error) {
	order, err := s.Get(ctx, merchantID, id)
	if err != nil {
		return nil, err
	}

	order.Evidence = append(order.Evidence, EvidenceItem{
		Description: description,
		AddedBy:     addedBy,
		AddedAt:     time.Now(),
	})
	order.UpdatedAt = time.Now()

	if err := s.store.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to add evidence: %w", err)
	}
	return order, nil
}

// AddNote appends a note. Notes are append-only.
func (s *Service) AddNote(ctx context.Context, merchantID, id, text, author string) (*PostAuthOrder, error) {
	order, err := s.Get(ctx, merchantID, id)
	if err != nil {
		return nil, err
	}

	order.Notes = append(order.Notes, Note{
		Text:    text,
		Author:  author,
		AddedAt: time.Now(),
	})
	order.UpdatedAt = time.Now()

	if err := s.store.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to add note: %w", err)
	}
	return order, nil
}

// MarkCleared closes monitoring with a clean outcome.
func (s *Service) MarkCleared(ctx context.Context, merchantID, id string) (*PostAuthOrder, error) {
	return s.close(ctx, merchantID, id, StatusCleared)
}

// FileChargeback closes monitoring with a chargeback outcome.
func (s *Service) FileChargeback(ctx context.Context, merchantID, id string) (*PostAuthOrder, error) {
	order, err := s.close(ctx, merchantID, id, StatusChargebacksFiled)
	if err != nil {
		return nil, err
	}
	metrics.ChargebacksFiledTotal.Inc()
	return order, nil
}

func (s *Service) close(ctx context.Context, merchantID, id string, status Status) (*PostAuthOrder, error) {
	order, err := s.Get(ctx, merchantID, id)
	if err != nil {
		return nil, err
	}
	if !order.IsOpen() {
		return nil, fmt.Errorf("%w: record is %s", ErrMonitoringClosed, order.Status)
	}

	order.Status = status
	order.UpdatedAt = time.Now()

	if err := s.store.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to close monitoring: %w", err)
	}

	metrics.OrdersUnderMonitoring.Dec()
	logging.L(ctx).Info("monitoring closed",
		"post_auth_order_id", order.ID,
		"merchant_id", merchantID,
		"status", status,
	)
	return order, nil
}

// SweepEnded reports records whose observation window has elapsed while still
// open. It does not auto-clear them; closing a record is always an explicit
// merchant action. The sweep only surfaces them for operator attention.
func (s *Service) SweepEnded(ctx context.Context, now time.Time, limit int) ([]*PostAuthOrder, error) {
	return s.store.ListMonitoringEnded(ctx, now, limit)
}
