// Package preauth implements the pre-authorization order lifecycle.
//
// An incoming order is validated, scored against the merchant's risk policy,
// given an automated decision, and persisted. Orders that require review move
// through manual approve/decline; approved orders can be promoted into
// post-authorization monitoring. Status transitions are monotonic: an order
// never returns to PENDING_REVIEW after a terminal decision.
package preauth

import (
	"context"
	"errors"
	"time"

	"github.com/dbeloglazov/fraudgate/internal/pagination"
	"github.com/dbeloglazov/fraudgate/internal/scoring"
	"github.com/dbeloglazov/fraudgate/internal/signals"
)

// Errors
var (
	ErrOrderNotFound     = errors.New("preauth: order not found")
	ErrNotOwner          = errors.New("preauth: order belongs to another merchant")
	ErrInvalidTransition = errors.New("preauth: status transition not allowed")
)

// OrderStatus is the lifecycle state of a pre-authorization order.
type OrderStatus string

const (
	StatusPendingReview   OrderStatus = "PENDING_REVIEW"
	StatusAutoApproved    OrderStatus = "AUTO_APPROVED"
	StatusAutoDeclined    OrderStatus = "AUTO_DECLINED"
	StatusManualApproved  OrderStatus = "MANUAL_APPROVED"
	StatusManualDeclined  OrderStatus = "MANUAL_DECLINED"
	StatusMovedToPostAuth OrderStatus = "MOVED_TO_POST_AUTH"
	StatusExpired         OrderStatus = "EXPIRED"
)

// ReviewDecision is the outcome of a manual review.
type ReviewDecision string

const (
	ReviewApproved ReviewDecision = "APPROVED"
	ReviewDeclined ReviewDecision = "DECLINED"
)

// DefaultListLimit applies when the caller gives no limit; MaxListLimit caps
// what a caller may request in one page.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// PreAuthOrder is the persisted record of one screened order.
// It is owned exclusively by the merchant that submitted it and is immutable
// except for the status-transition fields.
type PreAuthOrder struct {
	ID         string `json:"id"`
	MerchantID string `json:"merchantId"`

	// Identity fields as submitted by the merchant.
	OrderID           string  `json:"orderId"`
	CustomerEmail     string  `json:"customerEmail"`
	CustomerPhone     string  `json:"customerPhone,omitempty"`
	Amount            float64 `json:"amount"`
	ShippingAddress   string  `json:"shippingAddress,omitempty"`
	BillingAddress    string  `json:"billingAddress,omitempty"`
	IPAddress         string  `json:"ipAddress,omitempty"`
	DeviceFingerprint string  `json:"deviceFingerprint,omitempty"`
	CardBIN           string  `json:"cardBin,omitempty"`

	PreAuthScore     int                   `json:"preAuthScore"`
	PreAuthRiskLevel scoring.RiskLevel     `json:"preAuthRiskLevel"`
	Checks           []signals.CheckResult `json:"checks"`
	AutoDecision     scoring.AutoDecision  `json:"autoDecision"`

	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
	ExpiresAt time.Time   `json:"expiresAt"`

	// Manual review fields, set by approve/decline.
	ReviewedBy     string         `json:"reviewedBy,omitempty"`
	ReviewedAt     *time.Time     `json:"reviewedAt,omitempty"`
	ReviewDecision ReviewDecision `json:"reviewDecision,omitempty"`
	ReviewNotes    string         `json:"reviewNotes,omitempty"`

	// Post-auth linkage, set by promotion.
	PostAuthScanID    string     `json:"postAuthScanId,omitempty"`
	PostAuthOrderID   string     `json:"postAuthOrderId,omitempty"`
	MovedToPostAuthAt *time.Time `json:"movedToPostAuthAt,omitempty"`
}

// CanBeReviewed reports whether the order is still awaiting manual review.
func (o *PreAuthOrder) CanBeReviewed() bool {
	return o.Status == StatusPendingReview
}

// CanBePromoted reports whether the order can move to post-auth monitoring.
func (o *PreAuthOrder) CanBePromoted() bool {
	return o.Status == StatusAutoApproved || o.Status == StatusManualApproved
}

// Store persists pre-authorization orders.
// CountRecentByEmail/CountRecentByDevice also satisfy signals.HistoryCounter,
// so the velocity evaluator reads from the same store the engine writes to.
type Store interface {
	Create(ctx context.Context, order *PreAuthOrder) error
	Get(ctx context.Context, id string) (*PreAuthOrder, error)
	Update(ctx context.Context, order *PreAuthOrder) error
	ListByMerchant(ctx context.Context, merchantID string, before *pagination.Cursor, limit int) ([]*PreAuthOrder, error)
	ListPending(ctx context.Context, merchantID string, limit int) ([]*PreAuthOrder, error)
	ListExpiredPending(ctx context.Context, before time.Time, limit int) ([]*PreAuthOrder, error)
	CountByEmail(ctx context.Context, merchantID, email string) (int, error)
	CountRecentByEmail(ctx context.Context, merchantID, email string, since time.Time) (int, error)
	CountRecentByDevice(ctx context.Context, merchantID, fingerprint string, since time.Time) (int, error)
}

// CheckDecision is the synchronous response from RunCheck.
type CheckDecision struct {
	PreAuthOrderID   string                `json:"preAuthOrderId"`
	PreAuthScore     int                   `json:"preAuthScore"`
	PreAuthRiskLevel scoring.RiskLevel     `json:"preAuthRiskLevel"`
	AutoDecision     scoring.Decision      `json:"autoDecision"`
	Reason           string                `json:"reason"`
	Checks           []signals.CheckResult `json:"checks"`

	ShouldProceed        bool `json:"shouldProceed"`
	RequiresManualReview bool `json:"requiresManualReview"`
	ShouldDecline        bool `json:"shouldDecline"`
}
