// Package policy manages per-merchant risk policy configuration.
//
// Every merchant has exactly one RiskPolicy. It is created lazily with
// defaults the first time the merchant's policy is read, and mutated only
// through a validated update. Policies are never deleted.
package policy

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrPolicyNotFound = errors.New("policy: not found")
	ErrInvalidPolicy  = errors.New("policy: invalid configuration")
)

// RiskPolicy holds a merchant's configurable scoring thresholds and limits.
type RiskPolicy struct {
	MerchantID string `json:"merchantId"`

	// Decision thresholds on the 0-100 score.
	AutoApproveThreshold int `json:"autoApproveThreshold"`
	AutoDeclineThreshold int `json:"autoDeclineThreshold"`

	// Amount limits in USD.
	RequireReviewAboveAmount   float64 `json:"requireReviewAboveAmount"`
	FirstTimeCustomerMaxAmount float64 `json:"firstTimeCustomerMaxAmount"`

	// Signal toggles.
	BlockHighRiskCountries bool `json:"blockHighRiskCountries"`
	BlockDisposableEmails  bool `json:"blockDisposableEmails"`
	RequirePhoneValidation bool `json:"requirePhoneValidation"`

	// Velocity caps per identity axis.
	MaxOrdersPerEmailPerHour  int `json:"maxOrdersPerEmailPerHour"`
	MaxOrdersPerDevicePerHour int `json:"maxOrdersPerDevicePerHour"`

	HighRiskCountryCodes []string `json:"highRiskCountryCodes"`

	// How long a PENDING_REVIEW order stays actionable before it expires.
	ReviewTimeoutHours int `json:"reviewTimeoutHours"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Default thresholds applied when a merchant has not configured a policy.
const (
	DefaultAutoApproveThreshold       = 70
	DefaultAutoDeclineThreshold       = 40
	DefaultRequireReviewAboveAmount   = 1000.0
	DefaultFirstTimeCustomerMaxAmount = 500.0
	DefaultMaxOrdersPerEmailPerHour   = 3
	DefaultMaxOrdersPerDevicePerHour  = 5
	DefaultReviewTimeoutHours         = 48
)

// DefaultHighRiskCountryCodes is the starting country set for new policies.
var DefaultHighRiskCountryCodes = []string{"NG", "PK", "ID", "VN", "BD", "RO", "UA"}

// Default returns a new policy with default values for a merchant.
func Default(merchantID string) *RiskPolicy {
	now := time.Now()
	return &RiskPolicy{
		MerchantID:                 merchantID,
		AutoApproveThreshold:       DefaultAutoApproveThreshold,
		AutoDeclineThreshold:       DefaultAutoDeclineThreshold,
		RequireReviewAboveAmount:   DefaultRequireReviewAboveAmount,
		FirstTimeCustomerMaxAmount: DefaultFirstTimeCustomerMaxAmount,
		BlockHighRiskCountries:     true,
		BlockDisposableEmails:      true,
		RequirePhoneValidation:     false,
		MaxOrdersPerEmailPerHour:   DefaultMaxOrdersPerEmailPerHour,
		MaxOrdersPerDevicePerHour:  DefaultMaxOrdersPerDevicePerHour,
		HighRiskCountryCodes:       append([]string(nil), DefaultHighRiskCountryCodes...),
		ReviewTimeoutHours:         DefaultReviewTimeoutHours,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
}

// Validate checks for configurations that would make the decision state
// machine degenerate. An inverted or collapsed threshold pair makes
// REQUIRES_REVIEW unreachable, so it is rejected on write rather than
// producing undefined behavior at scoring time.
func (p *RiskPolicy) Validate() error {
	if p.AutoApproveThreshold < 0 || p.AutoApproveThreshold > 100 {
		return fmt.Errorf("%w: autoApproveThreshold %d outside [0,100]", ErrInvalidPolicy, p.AutoApproveThreshold)
	}
	if p.AutoDeclineThreshold < 0 || p.AutoDeclineThreshold > 100 {
		return fmt.Errorf("%w: autoDeclineThreshold %d outside [0,100]", ErrInvalidPolicy, p.AutoDeclineThreshold)
	}
	if p.AutoApproveThreshold <= p.AutoDeclineThreshold {
		return fmt.Errorf("%w: autoApproveThreshold (%d) must be greater than autoDeclineThreshold (%d)",
			ErrInvalidPolicy, p.AutoApproveThreshold, p.AutoDeclineThreshold)
	}
	if p.RequireReviewAboveAmount < 0 {
		return fmt.Errorf("%w: requireReviewAboveAmount must be non-negative", ErrInvalidPolicy)
	}
	if p.FirstTimeCustomerMaxAmount < 0 {
		return fmt.Errorf("%w: firstTimeCustomerMaxAmount must be non-negative", ErrInvalidPolicy)
	}
	if p.MaxOrdersPerEmailPerHour < 1 {
		return fmt.Errorf("%w: maxOrdersPerEmailPerHour must be at least 1", ErrInvalidPolicy)
	}
	if p.MaxOrdersPerDevicePerHour < 1 {
		return fmt.Errorf("%w: maxOrdersPerDevicePerHour must be at least 1", ErrInvalidPolicy)
	}
	if p.ReviewTimeoutHours < 1 {
		return fmt.Errorf("%w: reviewTimeoutHours must be at least 1", ErrInvalidPolicy)
	}
	return nil
}

// IsHighRiskCountry reports whether the ISO country code is in the policy's
// high-risk set. Comparison is exact; codes are stored upper-case.
func (p *RiskPolicy) IsHighRiskCountry(code string) bool {
	for _, c := range p.HighRiskCountryCodes {
		if c == code {
			return true
		}
	}
	return false
}

// Store persists risk policies.
type Store interface {
	Get(ctx context.Context, merchantID string) (*RiskPolicy, error)
	Upsert(ctx context.Context, p *RiskPolicy) error
}

// GetOrDefault returns the merchant's policy, falling back to defaults when
// none has been saved. The default is not persisted on read; it is written on
// the first explicit update.
func GetOrDefault(ctx context.Context, store Store, merchantID string) (*RiskPolicy, error) {
	p, err := store.Get(ctx, merchantID)
	if errors.Is(err, ErrPolicyNotFound) {
		return Default(merchantID), nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
