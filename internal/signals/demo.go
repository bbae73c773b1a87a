package signals

import (
	"context"
	"fmt"

	"github.com/dbeloglazov/fraudgate/internal/policy"
)

// Demo evaluators operate on card-present style inputs (AVS/CVV results,
// session behavior) that the production path does not receive. They plug into
// the same aggregator via DemoSet.

// AVSEvaluator checks the address verification result from the processor.
type AVSEvaluator struct{}

func NewAVSEvaluator() *AVSEvaluator { return &AVSEvaluator{} }

func (e *AVSEvaluator) Name() CheckName { return CheckAVSMatch }

func (e *AVSEvaluator) Evaluate(_ context.Context, order *OrderContext, _ *policy.RiskPolicy) CheckResult {
	switch order.AVSResult {
	case "":
		return CheckResult{Name: CheckAVSMatch, Passed: true, Details: "not evaluated: no AVS result"}
	case "mismatch":
		return CheckResult{
			Name:           CheckAVSMatch,
			Passed:         false,
			ScoreDeduction: DeductionAVSMismatch,
			Details:        "billing address does not match card records",
		}
	case "partial":
		return CheckResult{
			Name:           CheckAVSMatch,
			Passed:         false,
			ScoreDeduction: DeductionAVSMismatch / 2,
			Details:        "billing address partially matches card records",
		}
	default:
		return CheckResult{Name: CheckAVSMatch, Passed: true, Details: "address verified"}
	}
}

// CVVEvaluator checks the card verification value result from the processor.
type CVVEvaluator struct{}

func NewCVVEvaluator() *CVVEvaluator { return &CVVEvaluator{} }

func (e *CVVEvaluator) Name() CheckName { return CheckCVVMatch }

func (e *CVVEvaluator) Evaluate(_ context.Context, order *OrderContext, _ *policy.RiskPolicy) CheckResult {
	switch order.CVVResult {
	case "":
		return CheckResult{Name: CheckCVVMatch, Passed: true, Details: "not evaluated: no CVV result"}
	case "mismatch":
		return CheckResult{
			Name:           CheckCVVMatch,
			Passed:         false,
			ScoreDeduction: DeductionCVVMismatch,
			Details:        "CVV does not match",
		}
	default:
		return CheckResult{Name: CheckCVVMatch, Passed: true, Details: "CVV verified"}
	}
}

// BiometricsEvaluator flags sessions whose typing/timing profile looks
// automated. A checkout completed with almost no keystrokes in under two
// seconds is characteristic of a bot replaying stored card data.
type BiometricsEvaluator struct{}

func NewBiometricsEvaluator() *BiometricsEvaluator { return &BiometricsEvaluator{} }

func (e *BiometricsEvaluator) Name() CheckName { return CheckBehavioralBiometrics }

func (e *BiometricsEvaluator) Evaluate(_ context.Context, order *OrderContext, _ *policy.RiskPolicy) CheckResult {
	if order.SessionDuration == 0 && order.SessionKeystrokes == 0 {
		return CheckResult{
			Name:    CheckBehavioralBiometrics,
			Passed:  true,
			Details: "not evaluated: no session telemetry",
		}
	}

	if order.SessionDuration < 2.0 && order.SessionKeystrokes < 5 {
		return CheckResult{
			Name:           CheckBehavioralBiometrics,
			Passed:         false,
			ScoreDeduction: DeductionBotBehavior,
			Details: fmt.Sprintf("automated session profile: %d keystrokes in %.1fs",
				order.SessionKeystrokes, order.SessionDuration),
		}
	}

	return CheckResult{
		Name:    CheckBehavioralBiometrics,
		Passed:  true,
		Details: "session behavior consistent with a human operator",
	}
}
