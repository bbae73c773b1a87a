// Package deepscan invokes the external deep-analysis service used when an
// approved order is promoted to post-authorization monitoring.
//
// Unlike geo-IP enrichment, deep analysis is mandatory for promotion: a
// failed call aborts the promotion and the order stays in its pre-promotion
// state. Calls are retried with backoff before the error is surfaced.
package deepscan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dbeloglazov/fraudgate/internal/idgen"
	"github.com/dbeloglazov/fraudgate/internal/retry"
)

// ErrAnalysisFailed indicates the deep-analysis service could not produce a result.
var ErrAnalysisFailed = errors.New("deepscan: analysis failed")

// Request carries the stored order attributes to the analysis service.
type Request struct {
	OrderID            string  `json:"orderId"`
	CustomerEmail      string  `json:"customerEmail"`
	Amount             float64 `json:"amount"`
	IPAddress          string  `json:"ipAddress,omitempty"`
	DeviceFingerprint  string  `json:"deviceFingerprint,omitempty"`
	CardBIN            string  `json:"cardBin,omitempty"`
	ShippingAddress    string  `json:"shippingAddress,omitempty"`
	BillingAddress     string  `json:"billingAddress,omitempty"`
	PreAuthScore       int     `json:"preAuthScore"`
	PreAuthRiskLevel   string  `json:"preAuthRiskLevel"`
}

// Result is the deep-analysis verdict.
type Result struct {
	ScanID         string   `json:"scanId"`
	RiskScore      int      `json:"riskScore"` // chargeback risk, 0-100
	Signals        []string `json:"signals"`
	Recommendation string   `json:"recommendation"`
}

// Analyzer runs a deep fraud analysis for an order being promoted.
type Analyzer interface {
	Analyze(ctx context.Context, req *Request) (*Result, error)
}

// HTTPAnalyzer calls a deep-analysis service over HTTP.
type HTTPAnalyzer struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	maxAttempts int
}

// NewHTTPAnalyzer creates an analyzer against the given service endpoint.
func NewHTTPAnalyzer(baseURL, apiKey string, timeout time.Duration) *HTTPAnalyzer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPAnalyzer{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		client:      &http.Client{Timeout: timeout},
		maxAttempts: 3,
	}
}

// Analyze posts the order attributes and returns the analysis result.
// Transient failures are retried with exponential backoff; 4xx responses
// are treated as permanent.
func (a *HTTPAnalyzer) Analyze(ctx context.Context, req *Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("deepscan: marshal request: %w", err)
	}

	var result Result
	err = retry.Do(ctx, a.maxAttempts, 500*time.Millisecond, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/analyze", bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if a.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
		}

		resp, err := a.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return retry.Permanent(fmt.Errorf("%w: status %d", ErrAnalysisFailed, resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: status %d", ErrAnalysisFailed, resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("%w: decode: %v", ErrAnalysisFailed, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.ScanID == "" {
		result.ScanID = idgen.WithPrefix("scan_")
	}
	return &result, nil
}

// StubAnalyzer produces a deterministic result without a network call.
// Used in demo/development mode and tests.
type StubAnalyzer struct {
	RiskScore      int
	Signals        []string
	Recommendation string
	Err            error
}

// Analyze returns the configured result or error.
func (s *StubAnalyzer) Analyze(_ context.Context, req *Request) (*Result, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	rec := s.Recommendation
	if rec == "" {
		rec = "monitor"
	}
	return &Result{
		ScanID:         idgen.WithPrefix("scan_"),
		RiskScore:      s.RiskScore,
		Signals:        append([]string(nil), s.Signals...),
		Recommendation: rec,
	}, nil
}
