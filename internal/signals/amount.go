package signals

import (
	"context"
	"fmt"

	"github.com/dbeloglazov/fraudgate/internal/policy"
)

// AmountEvaluator flags unusually large orders, with a stricter limit for
// first-time customers.
type AmountEvaluator struct{}

// NewAmountEvaluator creates the amount threshold check.
func NewAmountEvaluator() *AmountEvaluator {
	return &AmountEvaluator{}
}

func (e *AmountEvaluator) Name() CheckName { return CheckAmountThreshold }

func (e *AmountEvaluator) Evaluate(_ context.Context, order *OrderContext, pol *policy.RiskPolicy) CheckResult {
	if order.PriorOrderCount == 0 && order.Amount > pol.FirstTimeCustomerMaxAmount {
		return CheckResult{
			Name:           CheckAmountThreshold,
			Passed:         false,
			ScoreDeduction: DeductionFirstTimeAmount,
			Details: fmt.Sprintf("first-time customer amount $%.2f exceeds limit $%.2f",
				order.Amount, pol.FirstTimeCustomerMaxAmount),
		}
	}

	if order.Amount > pol.RequireReviewAboveAmount {
		return CheckResult{
			Name:           CheckAmountThreshold,
			Passed:         false,
			ScoreDeduction: DeductionReviewAmount,
			Details: fmt.Sprintf("amount $%.2f exceeds review threshold $%.2f",
				order.Amount, pol.RequireReviewAboveAmount),
		}
	}

	return CheckResult{
		Name:    CheckAmountThreshold,
		Passed:  true,
		Details: fmt.Sprintf("amount $%.2f within limits", order.Amount),
	}
}
