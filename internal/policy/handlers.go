package policy

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dbeloglazov/fraudgate/internal/merchant"
)

// Handler provides HTTP endpoints for policy management.
type Handler struct {
	store Store
}

// NewHandler creates a new policy handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up policy routes. All routes require merchant auth.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/policy", h.GetPolicy)
	r.PUT("/policy", h.UpdatePolicy)
}

// GetPolicy handles GET /v1/policy.
// Returns the merchant's saved policy, or defaults if none has been saved.
func (h *Handler) GetPolicy(c *gin.Context) {
	merchantID := c.GetString(merchant.ContextKeyMerchantID)

	p, err := GetOrDefault(c.Request.Context(), h.store, merchantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load policy",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"policy": p})
}

// UpdatePolicyRequest is the request body for PUT /v1/policy.
type UpdatePolicyRequest struct {
	AutoApproveThreshold       *int     `json:"autoApproveThreshold"`
	AutoDeclineThreshold       *int     `json:"autoDeclineThreshold"`
	RequireReviewAboveAmount   *float64 `json:"requireReviewAboveAmount"`
	FirstTimeCustomerMaxAmount *float64 `json:"firstTimeCustomerMaxAmount"`
	BlockHighRiskCountries     *bool    `json:"blockHighRiskCountries"`
	BlockDisposableEmails      *bool    `json:"blockDisposableEmails"`
	RequirePhoneValidation     *bool    `json:"requirePhoneValidation"`
	MaxOrdersPerEmailPerHour   *int     `json:"maxOrdersPerEmailPerHour"`
	MaxOrdersPerDevicePerHour  *int     `json:"maxOrdersPerDevicePerHour"`
	HighRiskCountryCodes       []string `json:"highRiskCountryCodes"`
	ReviewTimeoutHours         *int     `json:"reviewTimeoutHours"`
}

// UpdatePolicy handles PUT /v1/policy.
// Fields omitted from the request keep their current (or default) value.
// The merged policy is validated before it is written; invalid threshold
// configurations are rejected with 400.
func (h *Handler) UpdatePolicy(c *gin.Context) {
	merchantID := c.GetString(merchant.ContextKeyMerchantID)

	var req UpdatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	p, err := GetOrDefault(c.Request.Context(), h.store, merchantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load policy",
		})
		return
	}

	applyUpdate(p, &req)
	p.UpdatedAt = time.Now()

	if err := p.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_policy",
			"message": err.Error(),
		})
		return
	}

	if err := h.store.Upsert(c.Request.Context(), p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to save policy",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"policy": p})
}

func applyUpdate(p *RiskPolicy, req *UpdatePolicyRequest) {
	if req.AutoApproveThreshold != nil {
		p.AutoApproveThreshold = *req.AutoApproveThreshold
	}
	if req.AutoDeclineThreshold != nil {
		p.AutoDeclineThreshold = *req.AutoDeclineThreshold
	}
	if req.RequireReviewAboveAmount != nil {
		p.RequireReviewAboveAmount = *req.RequireReviewAboveAmount
	}
	if req.FirstTimeCustomerMaxAmount != nil {
		p.FirstTimeCustomerMaxAmount = *req.FirstTimeCustomerMaxAmount
	}
	if req.BlockHighRiskCountries != nil {
		p.BlockHighRiskCountries = *req.BlockHighRiskCountries
	}
	if req.BlockDisposableEmails != nil {
		p.BlockDisposableEmails = *req.BlockDisposableEmails
	}
	if req.RequirePhoneValidation != nil {
		p.RequirePhoneValidation = *req.RequirePhoneValidation
	}
	if req.MaxOrdersPerEmailPerHour != nil {
		p.MaxOrdersPerEmailPerHour = *req.MaxOrdersPerEmailPerHour
	}
	if req.MaxOrdersPerDevicePerHour != nil {
		p.MaxOrdersPerDevicePerHour = *req.MaxOrdersPerDevicePerHour
	}
	if req.HighRiskCountryCodes != nil {
		p.HighRiskCountryCodes = req.HighRiskCountryCodes
	}
	if req.ReviewTimeoutHours != nil {
		p.ReviewTimeoutHours = *req.ReviewTimeoutHours
	}
}
