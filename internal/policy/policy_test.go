package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	p := Default("mer_1")

	assert.Equal(t, "mer_1", p.MerchantID)
	assert.Equal(t, 70, p.AutoApproveThreshold)
	assert.Equal(t, 40, p.AutoDeclineThreshold)
	assert.Equal(t, 1000.0, p.RequireReviewAboveAmount)
	assert.Equal(t, 500.0, p.FirstTimeCustomerMaxAmount)
	assert.True(t, p.BlockHighRiskCountries)
	assert.True(t, p.BlockDisposableEmails)
	assert.Equal(t, 3, p.MaxOrdersPerEmailPerHour)
	assert.Equal(t, 5, p.MaxOrdersPerDevicePerHour)
	assert.Equal(t, 48, p.ReviewTimeoutHours)
	assert.NoError(t, p.Validate())
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	p := Default("mer_1")
	p.AutoApproveThreshold = 30
	p.AutoDeclineThreshold = 80

	err := p.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestValidateRejectsCollapsedThresholds(t *testing.T) {
	p := Default("mer_1")
	p.AutoApproveThreshold = 50
	p.AutoDeclineThreshold = 50

	assert.ErrorIs(t, p.Validate(), ErrInvalidPolicy)
}

func TestValidateRanges(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*RiskPolicy)
	}{
		{"approve above 100", func(p *RiskPolicy) { p.AutoApproveThreshold = 101 }},
		{"decline below 0", func(p *RiskPolicy) { p.AutoDeclineThreshold = -1 }},
		{"negative review amount", func(p *RiskPolicy) { p.RequireReviewAboveAmount = -5 }},
		{"zero email cap", func(p *RiskPolicy) { p.MaxOrdersPerEmailPerHour = 0 }},
		{"zero device cap", func(p *RiskPolicy) { p.MaxOrdersPerDevicePerHour = 0 }},
		{"zero review timeout", func(p *RiskPolicy) { p.ReviewTimeoutHours = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Default("mer_1")
			tc.mutate(p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidPolicy)
		})
	}
}

func TestIsHighRiskCountry(t *testing.T) {
	p := Default("mer_1")

	assert.True(t, p.IsHighRiskCountry("NG"))
	assert.False(t, p.IsHighRiskCountry("US"))
	// Comparison is exact: unlisted lower-case codes do not match.
	assert.False(t, p.IsHighRiskCountry("ng"))
}

func TestGetOrDefaultLazy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	// Nothing saved: defaults, not persisted.
	p, err := GetOrDefault(ctx, store, "mer_1")
	require.NoError(t, err)
	assert.Equal(t, 70, p.AutoApproveThreshold)

	_, err = store.Get(ctx, "mer_1")
	assert.ErrorIs(t, err, ErrPolicyNotFound)

	// After an explicit write, the saved policy wins.
	p.AutoApproveThreshold = 85
	require.NoError(t, store.Upsert(ctx, p))

	saved, err := GetOrDefault(ctx, store, "mer_1")
	require.NoError(t, err)
	assert.Equal(t, 85, saved.AutoApproveThreshold)
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p1 := Default("mer_1")
	p1.AutoApproveThreshold = 90
	require.NoError(t, store.Upsert(ctx, p1))

	// Mutating the original after the write must not affect the stored copy.
	p1.AutoApproveThreshold = 10

	got, err := store.Get(ctx, "mer_1")
	require.NoError(t, err)
	assert.Equal(t, 90, got.AutoApproveThreshold)
}
