package signals

import (
	"context"
	"fmt"

	"github.com/dbeloglazov/fraudgate/internal/policy"
	"github.com/dbeloglazov/fraudgate/internal/validation"
)

// DefaultDisposableDomains is the built-in disposable email provider set.
var DefaultDisposableDomains = map[string]bool{
	"tempmail.com":       true,
	"temp-mail.org":      true,
	"guerrillamail.com":  true,
	"10minutemail.com":   true,
	"mailinator.com":     true,
	"throwawaymail.com":  true,
	"getnada.com":        true,
	"yopmail.com":        true,
	"sharklasers.com":    true,
	"trashmail.com":      true,
	"fakeinbox.com":      true,
	"maildrop.cc":        true,
	"dispostable.com":    true,
	"mintemail.com":      true,
	"mytemp.email":       true,
}

// EmailEvaluator flags orders from disposable email providers.
type EmailEvaluator struct {
	disposable map[string]bool
}

// NewEmailEvaluator creates the email check. A nil domain set uses the
// built-in default.
func NewEmailEvaluator(disposable map[string]bool) *EmailEvaluator {
	if disposable == nil {
		disposable = DefaultDisposableDomains
	}
	return &EmailEvaluator{disposable: disposable}
}

func (e *EmailEvaluator) Name() CheckName { return CheckEmailValidation }

func (e *EmailEvaluator) Evaluate(_ context.Context, order *OrderContext, pol *policy.RiskPolicy) CheckResult {
	domain := validation.EmailDomain(order.CustomerEmail)
	if domain == "" {
		return CheckResult{
			Name:    CheckEmailValidation,
			Passed:  true,
			Details: "not evaluated: no email domain",
		}
	}

	if pol.BlockDisposableEmails && e.disposable[domain] {
		return CheckResult{
			Name:           CheckEmailValidation,
			Passed:         false,
			ScoreDeduction: DeductionDisposableEmail,
			Details:        fmt.Sprintf("disposable email domain %q", domain),
		}
	}

	return CheckResult{
		Name:    CheckEmailValidation,
		Passed:  true,
		Details: fmt.Sprintf("email domain %q accepted", domain),
	}
}
