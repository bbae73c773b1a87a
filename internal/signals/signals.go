// Package signals implements the independent fraud signal evaluators.
//
// Each evaluator inspects one aspect of an order (email domain, geography,
// amount, velocity) and returns a pass/fail check result with a score
// deduction and a human-readable reason. Evaluators are pure given their
// inputs: absent optional data means "cannot evaluate", never an error.
package signals

import (
	"context"
	"time"

	"github.com/dbeloglazov/fraudgate/internal/policy"
)

// CheckName identifies a signal evaluator. The set is closed: every check a
// result can carry is enumerated here.
type CheckName string

const (
	CheckEmailValidation CheckName = "email_validation"
	CheckGeoLocation     CheckName = "geo_location"
	CheckAmountThreshold CheckName = "amount_threshold"
	CheckVelocity        CheckName = "velocity"

	// Demo-mode checks operating on card-present style inputs.
	CheckAVSMatch             CheckName = "avs_match"
	CheckCVVMatch             CheckName = "cvv_match"
	CheckBehavioralBiometrics CheckName = "behavioral_biometrics"
)

// Score deductions per failed check.
const (
	DeductionDisposableEmail  = 30
	DeductionHighRiskCountry  = 25
	DeductionFirstTimeAmount  = 20
	DeductionReviewAmount     = 15
	DeductionVelocityExceeded = 40

	DeductionAVSMismatch = 20
	DeductionCVVMismatch = 25
	DeductionBotBehavior = 35
)

// VelocityWindow is the lookback window for velocity counting.
const VelocityWindow = time.Hour

// CheckResult is the outcome of a single evaluator run.
type CheckResult struct {
	Name           CheckName `json:"checkName"`
	Passed         bool      `json:"passed"`
	ScoreDeduction int       `json:"scoreDeduction"`
	Details        string    `json:"details"`
}

// OrderContext carries the order attributes evaluators inspect.
// Optional fields may be empty; evaluators must tolerate that.
type OrderContext struct {
	MerchantID        string
	OrderID           string
	CustomerEmail     string
	CustomerPhone     string
	Amount            float64
	IPAddress         string
	DeviceFingerprint string
	CardBIN           string
	ShippingAddress   string
	BillingAddress    string

	// PriorOrderCount is the customer's total order count with this
	// merchant before this order. Zero means first-time customer.
	PriorOrderCount int

	// Demo-mode inputs.
	AVSResult         string  // "match", "partial", "mismatch"
	CVVResult         string  // "match", "mismatch"
	SessionKeystrokes int     // keystrokes observed during checkout
	SessionDuration   float64 // seconds spent in checkout
}

// Evaluator inspects one aspect of an order.
type Evaluator interface {
	Name() CheckName
	Evaluate(ctx context.Context, order *OrderContext, pol *policy.RiskPolicy) CheckResult
}

// SignalSet is an ordered list of evaluators. Order is fixed so the checks
// list in a decision is deterministic; it does not affect the final score.
type SignalSet []Evaluator

// HistoryCounter counts a customer's recent orders for velocity checks.
// Implemented by the pre-auth order store.
type HistoryCounter interface {
	CountRecentByEmail(ctx context.Context, merchantID, email string, since time.Time) (int, error)
	CountRecentByDevice(ctx context.Context, merchantID, fingerprint string, since time.Time) (int, error)
}

// ProductionSet returns the standard evaluator ordering:
// email → geography → amount → velocity.
func ProductionSet(resolver CountryResolver, history HistoryCounter, disposableDomains map[string]bool) SignalSet {
	return SignalSet{
		NewEmailEvaluator(disposableDomains),
		NewGeoEvaluator(resolver),
		NewAmountEvaluator(),
		NewVelocityEvaluator(history),
	}
}

// DemoSet returns the card-present demo evaluators (AVS, CVV, behavioral
// biometrics) plus the amount check, which works on both input shapes.
func DemoSet() SignalSet {
	return SignalSet{
		NewAVSEvaluator(),
		NewCVVEvaluator(),
		NewBiometricsEvaluator(),
		NewAmountEvaluator(),
	}
}
