package fraudgate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client calls the fraudgate API. The zero value is not usable; construct
// with NewClient.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string

	// Hooks
	OnDecision func(req *CheckRequest, decision *Decision) // Called after each screening
}

// NewClient creates an API client. baseURL is the server root without the
// /v1 prefix, e.g. "https://screening.example.com".
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// Register creates a merchant account and returns its one-time API key.
// It needs no authentication, so it is a package function rather than a
// client method.
func Register(ctx context.Context, baseURL, name, email string) (*Registration, error) {
	c := NewClient(baseURL, "")
	var reg Registration
	err := c.do(ctx, "POST", "/v1/register", map[string]string{
		"name":  name,
		"email": email,
	}, &reg)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// Check screens an order and returns the synchronous decision.
func (c *Client) Check(ctx context.Context, req *CheckRequest) (*Decision, error) {
	var decision Decision
	if err := c.do(ctx, "POST", "/v1/orders/check", req, &decision); err != nil {
		return nil, err
	}
	if c.OnDecision != nil {
		c.OnDecision(req, &decision)
	}
	return &decision, nil
}

// GetOrder fetches one screened order by its fraudgate ID.
func (c *Client) GetOrder(ctx context.Context, id string) (*Order, error) {
	var resp struct {
		Order *Order `json:"order"`
	}
	if err := c.do(ctx, "GET", "/v1/orders/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Order, nil
}

// ListOrders returns a page of the merchant's orders, newest first.
// Pass the previous page's NextCursor to continue; empty cursor starts
// from the newest order.
func (c *Client) ListOrders(ctx context.Context, cursor string, limit int) (*OrderList, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	path := "/v1/orders"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list OrderList
	if err := c.do(ctx, "GET", path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// ListPending returns orders awaiting manual review.
func (c *Client) ListPending(ctx context.Context, limit int) (*OrderList, error) {
	path := "/v1/orders/pending"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var list OrderList
	if err := c.do(ctx, "GET", path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Approve resolves a pending order as legitimate.
func (c *Client) Approve(ctx context.Context, id, reviewer, notes string) (*Order, error) {
	return c.review(ctx, id, "approve", reviewer, notes)
}

// Decline resolves a pending order as fraudulent.
func (c *Client) Decline(ctx context.Context, id, reviewer, notes string) (*Order, error) {
	return c.review(ctx, id, "decline", reviewer, notes)
}

func (c *Client) review(ctx context.Context, id, action, reviewer, notes string) (*Order, error) {
	var resp struct {
		Order *Order `json:"order"`
	}
	err := c.do(ctx, "POST", "/v1/orders/"+url.PathEscape(id)+"/"+action, map[string]string{
		"reviewer": reviewer,
		"notes":    notes,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Order, nil
}

// MoveToPostAuth promotes an approved order into post-auth monitoring.
func (c *Client) MoveToPostAuth(ctx context.Context, id string) (*Order, error) {
	var resp struct {
		Order *Order `json:"order"`
	}
	err := c.do(ctx, "POST", "/v1/orders/"+url.PathEscape(id)+"/move-to-post-auth", nil, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Order, nil
}

// GetPolicy returns the merchant's current risk policy.
func (c *Client) GetPolicy(ctx context.Context) (*Policy, error) {
	var resp struct {
		Policy *Policy `json:"policy"`
	}
	if err := c.do(ctx, "GET", "/v1/policy", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Policy, nil
}

// UpdatePolicy applies a partial policy update. Only the fields present in
// the patch map are changed; use the API field names, e.g.
// {"autoApproveThreshold": 80}.
func (c *Client) UpdatePolicy(ctx context.Context, patch map[string]any) (*Policy, error) {
	var resp struct {
		Policy *Policy `json:"policy"`
	}
	if err := c.do(ctx, "PUT", "/v1/policy", patch, &resp); err != nil {
		return nil, err
	}
	return resp.Policy, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		buf = bytes.NewBuffer(data)
	} else {
		buf = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
