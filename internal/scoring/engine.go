package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/dbeloglazov/fraudgate/internal/policy"
	"github.com/dbeloglazov/fraudgate/internal/signals"
)

// Engine runs a signal set against orders and converts the aggregate score
// into an automated decision.
type Engine struct {
	set signals.SignalSet
}

// NewEngine creates a scoring engine with the given evaluator set.
func NewEngine(set signals.SignalSet) *Engine {
	return &Engine{set: set}
}

// Score evaluates every signal in order, aggregates the deductions, and
// decides the outcome against the policy thresholds.
//
// All check results are recorded, passes included, so callers can show the
// complete check list. The running total is clamped to [0,100] only after
// every deduction has been applied.
func (e *Engine) Score(ctx context.Context, order *signals.OrderContext, pol *policy.RiskPolicy) *Assessment {
	checks := make([]signals.CheckResult, 0, len(e.set))
	score := 100

	for _, ev := range e.set {
		result := ev.Evaluate(ctx, order, pol)
		checks = append(checks, result)
		if !result.Passed {
			score -= result.ScoreDeduction
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return &Assessment{
		Score:     score,
		RiskLevel: Classify(score, pol),
		Checks:    checks,
		Decision:  Decide(score, pol),
	}
}

// Classify maps a score to its risk level. The LOW and CRITICAL boundaries
// follow the merchant's thresholds; the HIGH/MEDIUM split inside the gray
// zone uses the fixed constant.
func Classify(score int, pol *policy.RiskPolicy) RiskLevel {
	switch {
	case score >= pol.AutoApproveThreshold:
		return RiskLow
	case score <= pol.AutoDeclineThreshold:
		return RiskCritical
	case score < grayZoneHighBelow:
		return RiskHigh
	default:
		return RiskMedium
	}
}

// Decide maps a score to the automated decision. The decline boundary is
// inclusive: a score exactly at the decline threshold is declined.
func Decide(score int, pol *policy.RiskPolicy) AutoDecision {
	now := time.Now()
	switch {
	case score >= pol.AutoApproveThreshold:
		return AutoDecision{
			Decision:    DecisionApproved,
			Reason:      fmt.Sprintf("score %d meets auto-approve threshold %d", score, pol.AutoApproveThreshold),
			AppliedRule: RuleAutoApproveThreshold,
			DecidedAt:   now,
		}
	case score <= pol.AutoDeclineThreshold:
		return AutoDecision{
			Decision:    DecisionDeclined,
			Reason:      fmt.Sprintf("score %d at or below auto-decline threshold %d", score, pol.AutoDeclineThreshold),
			AppliedRule: RuleAutoDeclineThreshold,
			DecidedAt:   now,
		}
	default:
		return AutoDecision{
			Decision: DecisionRequiresReview,
			Reason: fmt.Sprintf("score %d falls between decline threshold %d and approve threshold %d; manual review required before fulfillment",
				score, pol.AutoDeclineThreshold, pol.AutoApproveThreshold),
			AppliedRule: RuleGrayZoneReview,
			DecidedAt:   now,
		}
	}
}
