// Package geoip resolves an IP address to a country code via an external
// lookup service.
//
// Geo lookup is best-effort enrichment: callers treat any error as "country
// unknown" and continue without penalty. The HTTP client is wrapped in a
// circuit breaker so a flapping provider does not add latency to every
// scoring call.
package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dbeloglazov/fraudgate/internal/circuitbreaker"
)

// Errors
var (
	ErrLookupUnavailable = errors.New("geoip: lookup unavailable")
	ErrUnknownIP         = errors.New("geoip: country not found for IP")
)

// Resolver resolves an IP address to an ISO 3166-1 alpha-2 country code.
type Resolver interface {
	Country(ctx context.Context, ip string) (string, error)
}

const breakerKey = "geoip"

// HTTPResolver queries a geo-IP lookup service over HTTP.
// Expected response body: {"countryCode": "US"}.
type HTTPResolver struct {
	baseURL string
	client  *http.Client
	breaker *circuitbreaker.Breaker
}

// NewHTTPResolver creates a resolver against the given lookup endpoint.
func NewHTTPResolver(baseURL string, timeout time.Duration) *HTTPResolver {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		breaker: circuitbreaker.New(5, 30*time.Second),
	}
}

// Country looks up the country code for an IP.
func (r *HTTPResolver) Country(ctx context.Context, ip string) (string, error) {
	if !r.breaker.Allow(breakerKey) {
		return "", ErrLookupUnavailable
	}

	u := fmt.Sprintf("%s/lookup?ip=%s", r.baseURL, url.QueryEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("geoip: build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.breaker.RecordFailure(breakerKey)
		return "", fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		r.breaker.RecordSuccess(breakerKey)
		return "", ErrUnknownIP
	}
	if resp.StatusCode != http.StatusOK {
		r.breaker.RecordFailure(breakerKey)
		return "", fmt.Errorf("%w: status %d", ErrLookupUnavailable, resp.StatusCode)
	}

	var body struct {
		CountryCode string `json:"countryCode"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		r.breaker.RecordFailure(breakerKey)
		return "", fmt.Errorf("%w: decode: %v", ErrLookupUnavailable, err)
	}
	r.breaker.RecordSuccess(breakerKey)

	code := strings.ToUpper(strings.TrimSpace(body.CountryCode))
	if code == "" {
		return "", ErrUnknownIP
	}
	return code, nil
}

// StaticResolver resolves from a fixed map. Used in tests and demo mode.
type StaticResolver struct {
	Countries map[string]string // ip → country code
}

// Country returns the mapped country or ErrUnknownIP.
func (r *StaticResolver) Country(_ context.Context, ip string) (string, error) {
	if code, ok := r.Countries[ip]; ok {
		return code, nil
	}
	return "", ErrUnknownIP
}

// FailingResolver always fails. Used in tests for the skip-without-penalty path.
type FailingResolver struct{}

func (FailingResolver) Country(context.Context, string) (string, error) {
	return "", ErrLookupUnavailable
}
