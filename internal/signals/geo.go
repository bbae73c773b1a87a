package signals

import (
	"context"
	"fmt"

	"github.com/dbeloglazov/fraudgate/internal/logging"
	"github.com/dbeloglazov/fraudgate/internal/policy"
)

// CountryResolver resolves an IP to a country code. Satisfied by geoip.Resolver.
type CountryResolver interface {
	Country(ctx context.Context, ip string) (string, error)
}

// GeoEvaluator flags orders originating from high-risk countries.
//
// Geo lookup is best-effort enrichment: a failed lookup skips the check
// without penalty rather than failing the order.
type GeoEvaluator struct {
	resolver CountryResolver
}

// NewGeoEvaluator creates the geographic risk check.
func NewGeoEvaluator(resolver CountryResolver) *GeoEvaluator {
	return &GeoEvaluator{resolver: resolver}
}

func (e *GeoEvaluator) Name() CheckName { return CheckGeoLocation }

func (e *GeoEvaluator) Evaluate(ctx context.Context, order *OrderContext, pol *policy.RiskPolicy) CheckResult {
	if order.IPAddress == "" {
		return CheckResult{
			Name:    CheckGeoLocation,
			Passed:  true,
			Details: "not evaluated: no IP address",
		}
	}
	if e.resolver == nil {
		return CheckResult{
			Name:    CheckGeoLocation,
			Passed:  true,
			Details: "not evaluated: geo lookup not configured",
		}
	}

	country, err := e.resolver.Country(ctx, order.IPAddress)
	if err != nil {
		logging.L(ctx).Warn("geo lookup failed, skipping check",
			"order_id", order.OrderID, "error", err)
		return CheckResult{
			Name:    CheckGeoLocation,
			Passed:  true,
			Details: "skipped: geo lookup unavailable",
		}
	}

	if pol.BlockHighRiskCountries && pol.IsHighRiskCountry(country) {
		return CheckResult{
			Name:           CheckGeoLocation,
			Passed:         false,
			ScoreDeduction: DeductionHighRiskCountry,
			Details:        fmt.Sprintf("order originates from high-risk country %s", country),
		}
	}

	return CheckResult{
		Name:    CheckGeoLocation,
		Passed:  true,
		Details: fmt.Sprintf("country %s accepted", country),
	}
}
