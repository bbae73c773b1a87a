package preauth

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dbeloglazov/fraudgate/internal/merchant"
	"github.com/dbeloglazov/fraudgate/internal/validation"
)

// Handler provides HTTP endpoints for pre-authorization orders.
type Handler struct {
	service *Service
}

// NewHandler creates a new pre-auth handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up order routes. All routes require merchant auth.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/orders/check", h.RunCheck)
	r.GET("/orders", h.ListOrders)
	r.GET("/orders/pending", h.ListPending)
	r.GET("/orders/:id", h.GetOrder)
	r.POST("/orders/:id/approve", h.Approve)
	r.POST("/orders/:id/decline", h.Decline)
	r.POST("/orders/:id/move-to-post-auth", h.MoveToPostAuth)
}

// RunCheck handles POST /v1/orders/check.
func (h *Handler) RunCheck(c *gin.Context) {
	merchantID := c.GetString(merchant.ContextKeyMerchantID)

	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "orderId, customerEmail, and amount are required",
		})
		return
	}

	decision, err := h.service.RunCheck(c.Request.Context(), merchantID, &req)
	if err != nil {
		var verrs validation.ValidationErrors
		if errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_failed",
				"message": verrs.Error(),
				"fields":  verrs,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to run pre-auth check",
		})
		return
	}

	c.JSON(http.StatusOK, decision)
}

// ListOrders handles GET /v1/orders?limit=&cursor=.
func (h *Handler) ListOrders(c *gin.Context) {
	merchantID := c.GetString(merchant.ContextKeyMerchantID)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	orders, next, hasMore, err := h.service.GetAll(c.Request.Context(), merchantID, c.Query("cursor"), limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders":     orders,
		"count":      len(orders),
		"nextCursor": next,
		"hasMore":    hasMore,
	})
}

// ListPending handles GET /v1/orders/pending?limit=.
func (h *Handler) ListPending(c *gin.Context) {
	merchantID := c.GetString(merchant.ContextKeyMerchantID)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	orders, err := h.service.GetPending(c.Request.Context(), merchantID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list pending orders",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

// GetOrder handles GET /v1/orders/:id.
func (h *Handler) GetOrder(c *gin.Context) {
	merchantID := c.GetString(merchant.ContextKeyMerchantID)

	order, err := h.service.Get(c.Request.Context(), merchantID, c.Param("id"))
	if err != nil {
		respondOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// ReviewRequest is the request body for manual approve/decline.
type ReviewRequest struct {
	Reviewer string `json:"reviewer" binding:"required"`
	Notes    string `json:"notes"`
}

// Approve handles POST /v1/orders/:id/approve.
func (h *Handler) Approve(c *gin.Context) {
	h.reviewAction(c, h.service.Approve)
}

// Decline handles POST /v1/orders/:id/decline.
func (h *Handler) Decline(c *gin.Context) {
	h.reviewAction(c, h.service.Decline)
}

func (h *Handler) reviewAction(c *gin.Context, action func(ctx context.Context, merchantID, orderID, reviewer, notes string) (*PreAuthOrder, error)) {
	merchantID := c.GetString(merchant.ContextKeyMerchantID)

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "reviewer is required",
		})
		return
	}

	order, err := action(c.Request.Context(), merchantID, c.Param("id"), req.Reviewer, req.Notes)
	if err != nil {
		respondOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// MoveToPostAuth handles POST /v1/orders/:id/move-to-post-auth.
func (h *Handler) MoveToPostAuth(c *gin.Context) {
	merchantID := c.GetString(merchant.ContextKeyMerchantID)

	order, err := h.service.MoveToPostAuth(c.Request.Context(), merchantID, c.Param("id"))
	if err != nil {
		respondOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order":           order,
		"postAuthOrderId": order.PostAuthOrderID,
		"postAuthScanId":  order.PostAuthScanID,
	})
}

func respondOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Order not found",
		})
	case errors.Is(err, ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "This order belongs to another merchant",
		})
	case errors.Is(err, ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "invalid_transition",
			"message": err.Error(),
		})
	default:
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "dependency_failure",
			"message": err.Error(),
		})
	}
}
