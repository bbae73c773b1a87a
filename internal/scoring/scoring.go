// Package scoring aggregates fraud signal results into a 0-100 score and an
// automated accept/decline/review decision.
//
// The aggregator starts at 100 and subtracts each failed check's deduction in
// a fixed evaluator order, clamping once after all deductions. The score maps
// to a risk level for display and to a decision against the merchant's policy
// thresholds. Scoring is deterministic given the same order, policy, and
// order-history snapshot.
package scoring

import (
	"time"

	"github.com/dbeloglazov/fraudgate/internal/signals"
)

// RiskLevel is the coarse classification of a score, used for display and
// review-queue triage.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Decision is the automated outcome of a pre-authorization check.
type Decision string

const (
	DecisionApproved       Decision = "APPROVED"
	DecisionDeclined       Decision = "DECLINED"
	DecisionRequiresReview Decision = "REQUIRES_REVIEW"
)

// Rule names recorded on automated decisions.
const (
	RuleAutoApproveThreshold = "auto_approve_threshold"
	RuleAutoDeclineThreshold = "auto_decline_threshold"
	RuleGrayZoneReview       = "gray_zone_review"
)

// grayZoneHighBelow splits the gray zone between HIGH and MEDIUM.
// It is a fixed constant, not policy-driven, so review-queue severity stays
// comparable across merchants with different thresholds.
const grayZoneHighBelow = 60

// AutoDecision records the automated decision and the rule that produced it.
type AutoDecision struct {
	Decision    Decision  `json:"decision"`
	Reason      string    `json:"reason"`
	AppliedRule string    `json:"appliedRule"`
	DecidedAt   time.Time `json:"decidedAt"`
}

// Assessment is the full result of scoring one order.
type Assessment struct {
	Score     int                   `json:"score"`
	RiskLevel RiskLevel             `json:"riskLevel"`
	Checks    []signals.CheckResult `json:"checks"`
	Decision  AutoDecision          `json:"autoDecision"`
}
