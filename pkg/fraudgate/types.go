// Package fraudgate implements a Go client for the fraudgate screening API.
// It mirrors the wire types of the HTTP API so integrators do not need to
// hand-roll request and response structs.
package fraudgate

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CheckRequest is the order payload submitted for pre-authorization screening.
// OrderID, CustomerEmail, and Amount are mandatory.
type CheckRequest struct {
	OrderID           string  `json:"orderId"`
	CustomerEmail     string  `json:"customerEmail"`
	Amount            float64 `json:"amount"`
	CustomerPhone     string  `json:"customerPhone,omitempty"`
	ShippingAddress   string  `json:"shippingAddress,omitempty"`
	BillingAddress    string  `json:"billingAddress,omitempty"`
	IPAddress         string  `json:"ipAddress,omitempty"`
	DeviceFingerprint string  `json:"deviceFingerprint,omitempty"`
	CardBIN           string  `json:"cardBin,omitempty"`

	AVSResult         string  `json:"avsResult,omitempty"`
	CVVResult         string  `json:"cvvResult,omitempty"`
	SessionKeystrokes int     `json:"sessionKeystrokes,omitempty"`
	SessionDuration   float64 `json:"sessionDuration,omitempty"`
}

// CheckResult is one evaluator outcome inside a decision.
type CheckResult struct {
	Name           string `json:"checkName"`
	Passed         bool   `json:"passed"`
	ScoreDeduction int    `json:"scoreDeduction"`
	Details        string `json:"details"`
}

// Decision is the synchronous screening verdict for one order.
type Decision struct {
	PreAuthOrderID   string        `json:"preAuthOrderId"`
	PreAuthScore     int           `json:"preAuthScore"`
	PreAuthRiskLevel string        `json:"preAuthRiskLevel"`
	AutoDecision     string        `json:"autoDecision"`
	Reason           string        `json:"reason"`
	Checks           []CheckResult `json:"checks"`

	ShouldProceed        bool `json:"shouldProceed"`
	RequiresManualReview bool `json:"requiresManualReview"`
	ShouldDecline        bool `json:"shouldDecline"`
}

// Order is a persisted pre-authorization order.
type Order struct {
	ID               string        `json:"id"`
	MerchantID       string        `json:"merchantId"`
	OrderID          string        `json:"orderId"`
	CustomerEmail    string        `json:"customerEmail"`
	Amount           float64       `json:"amount"`
	PreAuthScore     int           `json:"preAuthScore"`
	PreAuthRiskLevel string        `json:"preAuthRiskLevel"`
	Checks           []CheckResult `json:"checks"`
	Status           string        `json:"status"`
	CreatedAt        time.Time     `json:"createdAt"`
	ExpiresAt        time.Time     `json:"expiresAt"`

	ReviewedBy     string     `json:"reviewedBy,omitempty"`
	ReviewedAt     *time.Time `json:"reviewedAt,omitempty"`
	ReviewDecision string     `json:"reviewDecision,omitempty"`
	ReviewNotes    string     `json:"reviewNotes,omitempty"`

	PostAuthOrderID string `json:"postAuthOrderId,omitempty"`
	PostAuthScanID  string `json:"postAuthScanId,omitempty"`
}

// Policy is a merchant's risk policy.
type Policy struct {
	MerchantID                 string   `json:"merchantId"`
	AutoApproveThreshold       int      `json:"autoApproveThreshold"`
	AutoDeclineThreshold       int      `json:"autoDeclineThreshold"`
	RequireReviewAboveAmount   float64  `json:"requireReviewAboveAmount"`
	FirstTimeCustomerMaxAmount float64  `json:"firstTimeCustomerMaxAmount"`
	BlockHighRiskCountries     bool     `json:"blockHighRiskCountries"`
	BlockDisposableEmails      bool     `json:"blockDisposableEmails"`
	RequirePhoneValidation     bool     `json:"requirePhoneValidation"`
	MaxOrdersPerEmailPerHour   int      `json:"maxOrdersPerEmailPerHour"`
	MaxOrdersPerDevicePerHour  int      `json:"maxOrdersPerDevicePerHour"`
	HighRiskCountryCodes       []string `json:"highRiskCountryCodes"`
	ReviewTimeoutHours         int      `json:"reviewTimeoutHours"`
}

// Registration is the response to a successful merchant registration.
// The API key is shown exactly once.
type Registration struct {
	Merchant struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"merchant"`
	APIKey string `json:"apiKey"`
	Notice string `json:"notice"`
}

// OrderList is a page of orders.
type OrderList struct {
	Orders     []*Order `json:"orders"`
	Count      int      `json:"count"`
	NextCursor string   `json:"nextCursor,omitempty"`
	HasMore    bool     `json:"hasMore,omitempty"`
}

// Error is a structured API error response.
type Error struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// parseError decodes an error envelope from a non-2xx response.
// Falls back to a generic error when the body is not the expected shape.
func parseError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("api returned status %d", resp.StatusCode)
	}

	var apiErr Error
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Code == "" {
		return fmt.Errorf("api returned status %d: %s", resp.StatusCode, string(body))
	}
	apiErr.StatusCode = resp.StatusCode
	return &apiErr
}
