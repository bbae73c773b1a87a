package preauth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dbeloglazov/fraudgate/internal/deepscan"
	"github.com/dbeloglazov/fraudgate/internal/idgen"
	"github.com/dbeloglazov/fraudgate/internal/logging"
	"github.com/dbeloglazov/fraudgate/internal/metrics"
	"github.com/dbeloglazov/fraudgate/internal/pagination"
	"github.com/dbeloglazov/fraudgate/internal/policy"
	"github.com/dbeloglazov/fraudgate/internal/scoring"
	"github.com/dbeloglazov/fraudgate/internal/signals"
	"github.com/dbeloglazov/fraudgate/internal/traces"
	"github.com/dbeloglazov/fraudgate/internal/validation"
)

// PostAuthLinker creates and finds monitoring records during promotion.
// Implemented by the postauth service.
type PostAuthLinker interface {
	// FindByPreAuth returns the existing monitoring record for a pre-auth
	// order, or empty IDs with a nil error when none exists.
	FindByPreAuth(ctx context.Context, merchantID, preAuthOrderID string) (postAuthOrderID, scanID string, err error)
	// CreateFromScan persists a new monitoring record from a deep-analysis result.
	CreateFromScan(ctx context.Context, merchantID, preAuthOrderID string, scan *deepscan.Result) (postAuthOrderID string, err error)
}

// CheckRequest is the order payload submitted for screening.
type CheckRequest struct {
	OrderID           string  `json:"orderId" binding:"required"`
	CustomerEmail     string  `json:"customerEmail" binding:"required"`
	Amount            float64 `json:"amount" binding:"required"`
	CustomerPhone     string  `json:"customerPhone"`
	ShippingAddress   string  `json:"shippingAddress"`
	BillingAddress    string  `json:"billingAddress"`
	IPAddress         string  `json:"ipAddress"`
	DeviceFingerprint string  `json:"deviceFingerprint"`
	CardBIN           string  `json:"cardBin"`

	// Demo-mode signal inputs.
	AVSResult         string  `json:"avsResult"`
	CVVResult         string  `json:"cvvResult"`
	SessionKeystrokes int     `json:"sessionKeystrokes"`
	SessionDuration   float64 `json:"sessionDuration"`
}

// Validate checks the mandatory fields. Scoring never runs on an order that
// fails validation.
func (r *CheckRequest) Validate() validation.ValidationErrors {
	return validation.Validate(
		validation.Required("orderId", r.OrderID),
		validation.Required("customerEmail", r.CustomerEmail),
		validation.ValidEmail("customerEmail", r.CustomerEmail),
		validation.PositiveAmount("amount", r.Amount),
		validation.MaxLength("orderId", r.OrderID, 200),
	)
}

// Service provides pre-authorization screening and lifecycle operations.
// Every operation takes the acting merchant's ID explicitly; ownership is
// checked before any state is read back or mutated.
type Service struct {
	store    Store
	policies policy.Store
	engine   *scoring.Engine
	analyzer deepscan.Analyzer
	monitors PostAuthLinker
}

// NewService creates a pre-authorization service.
func NewService(store Store, policies policy.Store, engine *scoring.Engine, analyzer deepscan.Analyzer, monitors PostAuthLinker) *Service {
	return &Service{
		store:    store,
		policies: policies,
		engine:   engine,
		analyzer: analyzer,
		monitors: monitors,
	}
}

// RunCheck validates, scores, and persists an incoming order, returning the
// automated decision. The policy in effect at call time is used; concurrent
// policy updates do not affect decisions already made.
func (s *Service) RunCheck(ctx context.Context, merchantID string, req *CheckRequest) (*CheckDecision, error) {
	ctx, span := traces.StartSpan(ctx, "preauth.RunCheck",
		traces.MerchantID(merchantID), traces.OrderID(req.OrderID), traces.Amount(req.Amount))
	defer span.End()

	if errs := req.Validate(); len(errs) > 0 {
		return nil, errs
	}

	pol, err := policy.GetOrDefault(ctx, s.policies, merchantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(req.CustomerEmail))

	priorOrders, err := s.store.CountByEmail(ctx, merchantID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to count prior orders: %w", err)
	}

	order := &signals.OrderContext{
		MerchantID:        merchantID,
		OrderID:           req.OrderID,
		CustomerEmail:     email,
		CustomerPhone:     req.CustomerPhone,
		Amount:            req.Amount,
		IPAddress:         req.IPAddress,
		DeviceFingerprint: req.DeviceFingerprint,
		CardBIN:           req.CardBIN,
		ShippingAddress:   req.ShippingAddress,
		BillingAddress:    req.BillingAddress,
		PriorOrderCount:   priorOrders,
		AVSResult:         req.AVSResult,
		CVVResult:         req.CVVResult,
		SessionKeystrokes: req.SessionKeystrokes,
		SessionDuration:   req.SessionDuration,
	}

	started := time.Now()
	assessment := s.engine.Score(ctx, order, pol)
	metrics.ScoringDuration.Observe(time.Since(started).Seconds())
	metrics.DecisionsTotal.WithLabelValues(string(assessment.Decision.Decision)).Inc()
	for _, check := range assessment.Checks {
		if !check.Passed {
			metrics.CheckFailuresTotal.WithLabelValues(string(check.Name)).Inc()
		}
	}

	now := time.Now()
	record := &PreAuthOrder{
		ID:                idgen.WithPrefix("pre_"),
		MerchantID:        merchantID,
		OrderID:           req.OrderID,
		CustomerEmail:     email,
		CustomerPhone:     req.CustomerPhone,
		Amount:            req.Amount,
		ShippingAddress:   req.ShippingAddress,
		BillingAddress:    req.BillingAddress,
		IPAddress:         req.IPAddress,
		DeviceFingerprint: req.DeviceFingerprint,
		CardBIN:           req.CardBIN,
		PreAuthScore:      assessment.Score,
		PreAuthRiskLevel:  assessment.RiskLevel,
		Checks:            assessment.Checks,
		AutoDecision:      assessment.Decision,
		Status:            statusForDecision(assessment.Decision.Decision),
		CreatedAt:         now,
		ExpiresAt:         now.Add(time.Duration(pol.ReviewTimeoutHours) * time.Hour),
	}

	if err := s.store.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}

	span.SetAttributes(traces.Score(record.PreAuthScore), traces.Decision(string(record.AutoDecision.Decision)))

	logging.L(ctx).Info("pre-auth check complete",
		"merchant_id", merchantID,
		"pre_auth_order_id", record.ID,
		"order_id", record.OrderID,
		"score", record.PreAuthScore,
		"risk_level", record.PreAuthRiskLevel,
		"decision", record.AutoDecision.Decision,
	)

	return decisionResponse(record), nil
}

func statusForDecision(d scoring.Decision) OrderStatus {
	switch d {
	case scoring.DecisionApproved:
		return StatusAutoApproved
	case scoring.DecisionDeclined:
		return StatusAutoDeclined
	default:
		return StatusPendingReview
	}
}

func decisionResponse(o *PreAuthOrder) *CheckDecision {
	return &CheckDecision{
		PreAuthOrderID:       o.ID,
		PreAuthScore:         o.PreAuthScore,
		PreAuthRiskLevel:     o.PreAuthRiskLevel,
		AutoDecision:         o.AutoDecision.Decision,
		Reason:               o.AutoDecision.Reason,
		Checks:               o.Checks,
		ShouldProceed:        o.AutoDecision.Decision == scoring.DecisionApproved,
		RequiresManualReview: o.AutoDecision.Decision == scoring.DecisionRequiresReview,
		ShouldDecline:        o.AutoDecision.Decision == scoring.DecisionDeclined,
	}
}

// Get returns one order, ownership-checked.
func (s *Service) Get(ctx context.Context, merchantID, orderID string) (*PreAuthOrder, error) {
	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.MerchantID != merchantID {
		return nil, ErrNotOwner
	}
	return order, nil
}

// GetAll lists the merchant's orders newest first, with cursor pagination.
// Returns the page, the next cursor (empty when exhausted), and a has-more flag.
func (s *Service) GetAll(ctx context.Context, merchantID, cursor string, limit int) ([]*PreAuthOrder, string, bool, error) {
	limit = pagination.ClampLimit(limit, DefaultListLimit, MaxListLimit)

	before, err := pagination.Decode(cursor)
	if err != nil {
		return nil, "", false, fmt.Errorf("invalid cursor: %w", err)
	}

	// Fetch one extra row to detect whether another page exists.
	orders, err := s.store.ListByMerchant(ctx, merchantID, before, limit+1)
	if err != nil {
		return nil, "", false, err
	}

	page, next, hasMore := pagination.ComputePage(orders, limit, func(o *PreAuthOrder) (time.Time, string) {
		return o.CreatedAt, o.ID
	})
	return page, next, hasMore, nil
}

// GetPending lists the merchant's orders awaiting manual review, newest first.
func (s *Service) GetPending(ctx context.Context, merchantID string, limit int) ([]*PreAuthOrder, error) {
	limit = pagination.ClampLimit(limit, DefaultListLimit, MaxListLimit)
	return s.store.ListPending(ctx, merchantID, limit)
}

// Approve records a manual approval. Only orders in PENDING_REVIEW can be
// approved; anything else is rejected with ErrInvalidTransition rather than
// silently overwriting a terminal decision.
func (s *Service) Approve(ctx context.Context, merchantID, orderID, reviewer, notes string) (*PreAuthOrder, error) {
	return s.review(ctx, merchantID, orderID, reviewer, notes, ReviewApproved, StatusManualApproved)
}

// Decline records a manual decline. Same transition rules as Approve.
func (s *Service) Decline(ctx context.Context, merchantID, orderID, reviewer, notes string) (*PreAuthOrder, error) {
	return s.review(ctx, merchantID, orderID, reviewer, notes, ReviewDeclined, StatusManualDeclined)
}

func (s *Service) review(ctx context.Context, merchantID, orderID, reviewer, notes string, decision ReviewDecision, status OrderStatus) (*PreAuthOrder, error) {
	order, err := s.Get(ctx, merchantID, orderID)
	if err != nil {
		return nil, err
	}
	if !order.CanBeReviewed() {
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidTransition, order.Status)
	}

	now := time.Now()
	order.Status = status
	order.ReviewedBy = reviewer
	order.ReviewedAt = &now
	order.ReviewDecision = decision
	order.ReviewNotes = notes

	if err := s.store.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	metrics.ManualReviewsTotal.WithLabelValues(string(decision)).Inc()
	return order, nil
}

// MoveToPostAuth promotes an approved order into post-authorization
// monitoring. The deep-analysis call and the monitoring-record write both
// happen before the pre-auth order is patched, so a failure at any step
// leaves the order in its pre-promotion state. The operation is idempotent:
// re-promoting a moved order returns the existing linkage, and a monitoring
// record orphaned by a crash between the two writes is re-linked instead of
// duplicated.
func (s *Service) MoveToPostAuth(ctx context.Context, merchantID, orderID string) (*PreAuthOrder, error) {
	ctx, span := traces.StartSpan(ctx, "preauth.MoveToPostAuth",
		traces.MerchantID(merchantID), traces.OrderID(orderID))
	defer span.End()

	order, err := s.Get(ctx, merchantID, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status == StatusMovedToPostAuth {
		return order, nil
	}
	if !order.CanBePromoted() {
		return nil, fmt.Errorf("%w: order is %s, promotion requires an approved order", ErrInvalidTransition, order.Status)
	}

	// Reconciliation: a monitoring record may already exist if a previous
	// promotion crashed after the first write.
	postAuthID, scanID, err := s.monitors.FindByPreAuth(ctx, merchantID, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing linkage: %w", err)
	}

	if postAuthID == "" {
		scan, err := s.analyzer.Analyze(ctx, &deepscan.Request{
			OrderID:           order.OrderID,
			CustomerEmail:     order.CustomerEmail,
			Amount:            order.Amount,
			IPAddress:         order.IPAddress,
			DeviceFingerprint: order.DeviceFingerprint,
			CardBIN:           order.CardBIN,
			ShippingAddress:   order.ShippingAddress,
			BillingAddress:    order.BillingAddress,
			PreAuthScore:      order.PreAuthScore,
			PreAuthRiskLevel:  string(order.PreAuthRiskLevel),
		})
		if err != nil {
			return nil, fmt.Errorf("deep analysis failed, order not promoted: %w", err)
		}

		postAuthID, err = s.monitors.CreateFromScan(ctx, merchantID, order.ID, scan)
		if err != nil {
			return nil, fmt.Errorf("failed to create monitoring record, order not promoted: %w", err)
		}
		scanID = scan.ScanID
	}

	now := time.Now()
	order.Status = StatusMovedToPostAuth
	order.PostAuthOrderID = postAuthID
	order.PostAuthScanID = scanID
	order.MovedToPostAuthAt = &now

	if err := s.store.Update(ctx, order); err != nil {
		// The monitoring record exists; the next promotion attempt will
		// find it via FindByPreAuth and only retry this patch.
		return nil, fmt.Errorf("failed to patch order after monitoring write: %w", err)
	}

	metrics.PromotionsTotal.Inc()
	logging.L(ctx).Info("order promoted to post-auth monitoring",
		"merchant_id", merchantID,
		"pre_auth_order_id", order.ID,
		"post_auth_order_id", postAuthID,
		"scan_id", scanID,
	)
	return order, nil
}

// ExpirePending marks PENDING_REVIEW orders past their review deadline as
// EXPIRED. Called by the timer; returns the number of orders expired.
func (s *Service) ExpirePending(ctx context.Context, now time.Time, limit int) (int, error) {
	stale, err := s.store.ListExpiredPending(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, order := range stale {
		order.Status = StatusExpired
		if err := s.store.Update(ctx, order); err != nil {
			logging.L(ctx).Warn("failed to expire order", "pre_auth_order_id", order.ID, "error", err)
			continue
		}
		expired++
	}
	return expired, nil
}
