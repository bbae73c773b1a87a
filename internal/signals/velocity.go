package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/dbeloglazov/fraudgate/internal/logging"
	"github.com/dbeloglazov/fraudgate/internal/policy"
)

// VelocityEvaluator enforces per-hour order caps per customer identity axis.
//
// Email and device caps are independent; either violation fails the check.
// A violation only deducts from the current order's score, it never blocks
// future submissions outright.
type VelocityEvaluator struct {
	history HistoryCounter
}

// NewVelocityEvaluator creates the velocity check.
func NewVelocityEvaluator(history HistoryCounter) *VelocityEvaluator {
	return &VelocityEvaluator{history: history}
}

func (e *VelocityEvaluator) Name() CheckName { return CheckVelocity }

func (e *VelocityEvaluator) Evaluate(ctx context.Context, order *OrderContext, pol *policy.RiskPolicy) CheckResult {
	if e.history == nil {
		return CheckResult{
			Name:    CheckVelocity,
			Passed:  true,
			Details: "not evaluated: no order history available",
		}
	}

	since := time.Now().Add(-VelocityWindow)

	emailCount, err := e.history.CountRecentByEmail(ctx, order.MerchantID, order.CustomerEmail, since)
	if err != nil {
		logging.L(ctx).Warn("velocity email count failed, skipping check",
			"order_id", order.OrderID, "error", err)
		return CheckResult{
			Name:    CheckVelocity,
			Passed:  true,
			Details: "skipped: order history unavailable",
		}
	}

	// Counts include the current submission.
	if emailCount+1 > pol.MaxOrdersPerEmailPerHour {
		return CheckResult{
			Name:           CheckVelocity,
			Passed:         false,
			ScoreDeduction: DeductionVelocityExceeded,
			Details: fmt.Sprintf("%d orders from this email in the last hour (limit: %d)",
				emailCount+1, pol.MaxOrdersPerEmailPerHour),
		}
	}

	if order.DeviceFingerprint != "" {
		deviceCount, err := e.history.CountRecentByDevice(ctx, order.MerchantID, order.DeviceFingerprint, since)
		if err != nil {
			logging.L(ctx).Warn("velocity device count failed, skipping device axis",
				"order_id", order.OrderID, "error", err)
		} else if deviceCount+1 > pol.MaxOrdersPerDevicePerHour {
			return CheckResult{
				Name:           CheckVelocity,
				Passed:         false,
				ScoreDeduction: DeductionVelocityExceeded,
				Details: fmt.Sprintf("%d orders from this device in the last hour (limit: %d)",
					deviceCount+1, pol.MaxOrdersPerDevicePerHour),
			}
		}
	}

	return CheckResult{
		Name:    CheckVelocity,
		Passed:  true,
		Details: "order velocity within limits",
	}
}
