// Package postauth implements post-authorization order monitoring.
//
// A monitoring record is created only when a pre-auth order is promoted. It
// tracks chargeback risk over a long observation window, accumulates evidence
// and notes (both append-only), and ends only when explicitly cleared or a
// chargeback is filed. Records are never silently deleted.
package postauth

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrOrderNotFound    = errors.New("postauth: monitoring record not found")
	ErrNotOwner         = errors.New("postauth: record belongs to another merchant")
	ErrMonitoringClosed = errors.New("postauth: monitoring already closed")
)

// MonitoringWindow is how long a promoted order stays under observation.
const MonitoringWindow = 120 * 24 * time.Hour

// Status is the lifecycle state of a monitoring record.
type Status string

const (
	StatusUnderMonitoring  Status = "UNDER_MONITORING"
	StatusChargebacksFiled Status = "CHARGEBACKS_FILED"
	StatusCleared          Status = "CLEARED"
)

// EvidenceItem is one piece of supporting material attached to a record.
type EvidenceItem struct {
	Description string    `json:"description"`
	AddedBy     string    `json:"addedBy"`
	AddedAt     time.Time `json:"addedAt"`
}

// Note is a free-form annotation on a record.
type Note struct {
	Text    string    `json:"text"`
	Author  string    `json:"author"`
	AddedAt time.Time `json:"addedAt"`
}

// PostAuthOrder is a monitoring record for one promoted order.
type PostAuthOrder struct {
	ID             string `json:"id"`
	MerchantID     string `json:"merchantId"`
	PreAuthOrderID string `json:"preAuthOrderId"`
	ScanID         string `json:"scanId"`

	// ChargebackRisk estimates the probability of a future chargeback, 0-100.
	ChargebackRisk int      `json:"chargebackRisk"`
	Signals        []string `json:"signals"`
	Recommendation string   `json:"recommendation,omitempty"`

	Evidence []EvidenceItem `json:"evidence"`
	Notes    []Note         `json:"notes"`

	Status           Status    `json:"status"`
	MonitoringEndsAt time.Time `json:"monitoringEndsAt"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// IsOpen reports whether the record is still under monitoring.
func (o *PostAuthOrder) IsOpen() bool {
	return o.Status == StatusUnderMonitoring
}

// Store persists monitoring records.
type Store interface {
	Create(ctx context.Context, order *PostAuthOrder) error
	Get(ctx context.Context, id string) (*PostAuthOrder, error)
	GetByPreAuth(ctx context.Context, preAuthOrderID string) (*PostAuthOrder, error)
	Update(ctx context.Context, order *PostAuthOrder) error
	ListByMerchant(ctx context.Context, merchantID string, limit int) ([]*PostAuthOrder, error)
	ListMonitoringEnded(ctx context.Context, before time.Time, limit int) ([]*PostAuthOrder, error)
}
