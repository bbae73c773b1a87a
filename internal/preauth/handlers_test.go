package preauth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/dbeloglazov/fraudgate/internal/merchant"
)

func setupHandlerTestRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, _, _ := newTestService(t)
	handler := NewHandler(svc)

	r := gin.New()
	v1 := r.Group("/v1")

	// Simulate auth middleware
	v1.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Merchant-ID"); id != "" {
			c.Set(merchant.ContextKeyMerchantID, id)
		}
		c.Next()
	})
	handler.RegisterRoutes(v1)

	return r, svc
}

func doRequest(router *gin.Engine, method, path, merchantID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Merchant-ID", merchantID)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_RunCheck_200(t *testing.T) {
	router, _ := setupHandlerTestRouter(t)

	w := doRequest(router, "POST", "/v1/orders/check", "mer_1", gin.H{
		"orderId":       "ord-1",
		"customerEmail": "alice@gmail.com",
		"amount":        25.50,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		PreAuthOrderID string `json:"preAuthOrderId"`
		AutoDecision   string `json:"autoDecision"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.AutoDecision != "APPROVED" {
		t.Errorf("expected APPROVED, got %s", resp.AutoDecision)
	}
	if resp.PreAuthOrderID == "" {
		t.Error("missing preAuthOrderId")
	}
}

func TestHandler_RunCheck_MissingFields_400(t *testing.T) {
	router, _ := setupHandlerTestRouter(t)

	w := doRequest(router, "POST", "/v1/orders/check", "mer_1", gin.H{
		"orderId": "ord-1",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandler_RunCheck_InvalidEmail_400(t *testing.T) {
	router, _ := setupHandlerTestRouter(t)

	w := doRequest(router, "POST", "/v1/orders/check", "mer_1", gin.H{
		"orderId":       "ord-1",
		"customerEmail": "not-an-email",
		"amount":        25.50,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error != "validation_failed" {
		t.Errorf("expected validation_failed, got %q", resp.Error)
	}
}

func TestHandler_GetOrder_404And403(t *testing.T) {
	router, svc := setupHandlerTestRouter(t)

	w := doRequest(router, "GET", "/v1/orders/pre_missing", "mer_1", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", w.Code)
	}

	decision, err := svc.RunCheck(context.Background(), "mer_1", cleanOrder("ord-1"))
	if err != nil {
		t.Fatalf("RunCheck failed: %v", err)
	}

	w = doRequest(router, "GET", "/v1/orders/"+decision.PreAuthOrderID, "mer_2", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandler_Approve_RequiresReviewer(t *testing.T) {
	router, svc := setupHandlerTestRouter(t)
	id := submitPending(t, svc, "mer_1", "ord-1")

	w := doRequest(router, "POST", "/v1/orders/"+id+"/approve", "mer_1", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 without reviewer, got %d", w.Code)
	}

	w = doRequest(router, "POST", "/v1/orders/"+id+"/approve", "mer_1", gin.H{
		"reviewer": "analyst@merchant.com",
		"notes":    "verified",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Order struct {
			Status string `json:"status"`
		} `json:"order"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Order.Status != string(StatusManualApproved) {
		t.Errorf("expected MANUAL_APPROVED, got %s", resp.Order.Status)
	}
}

func TestHandler_Decline_Conflict409(t *testing.T) {
	router, svc := setupHandlerTestRouter(t)
	id := submitPending(t, svc, "mer_1", "ord-1")

	if _, err := svc.Approve(context.Background(), "mer_1", id, "analyst", ""); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	w := doRequest(router, "POST", "/v1/orders/"+id+"/decline", "mer_1", gin.H{
		"reviewer": "analyst",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409 for reviewed order, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandler_ListPending(t *testing.T) {
	router, svc := setupHandlerTestRouter(t)
	submitPending(t, svc, "mer_1", "ord-1")
	submitPending(t, svc, "mer_2", "ord-2")

	w := doRequest(router, "GET", "/v1/orders/pending", "mer_1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp struct {
		Count  int `json:"count"`
		Orders []struct {
			MerchantID string `json:"merchantId"`
		} `json:"orders"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Count != 1 || len(resp.Orders) != 1 {
		t.Fatalf("expected only own pending orders, got %+v", resp)
	}
	if resp.Orders[0].MerchantID != "mer_1" {
		t.Errorf("leaked another merchant's order: %+v", resp.Orders[0])
	}
}

func TestHandler_MoveToPostAuth(t *testing.T) {
	router, svc := setupHandlerTestRouter(t)

	decision, err := svc.RunCheck(context.Background(), "mer_1", cleanOrder("ord-1"))
	if err != nil {
		t.Fatalf("RunCheck failed: %v", err)
	}

	w := doRequest(router, "POST", "/v1/orders/"+decision.PreAuthOrderID+"/move-to-post-auth", "mer_1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Order struct {
			Status          string `json:"status"`
			PostAuthOrderID string `json:"postAuthOrderId"`
		} `json:"order"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Order.Status != string(StatusMovedToPostAuth) || resp.Order.PostAuthOrderID == "" {
		t.Errorf("promotion response wrong: %+v", resp.Order)
	}
}
