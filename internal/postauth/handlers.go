package postauth

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dbeloglazov/fraudgate/internal/merchant"
)

// Handler provides HTTP endpoints for post-authorization monitoring.
type Handler struct {
	service *Service
}

// NewHandler creates a new post-auth handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up monitoring routes. All routes require merchant auth.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/postauth", h.List)
	r.GET("/postauth/:id", h.Get)
	r.POST("/postauth/:id/evidence", h.AddEvidence)
	r.POST("/postauth/:id/notes", h.AddNote)
	r.POST("/postauth/:id/clear", h.Clear)
	r.POST("/postauth/:id/chargeback", h.FileChargeback)
}

// List handles GET /v1/postauth?limit=.
func (h *Handler) List(c *gin.Context) {
	merchantID := c.GetString(merchant.ContextKeyMerchantID)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	orders, err := h.service.List(c.Request.Context(), merchantID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list monitoring records",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// Get handles GET /v1/postauth/:id.
func (h *Handler) Get(c *gin.Context) {
	merchantID := c.GetString(merchant.ContextKeyMerchantID)

	order, err := h.service.Get(c.Request.Context(), merchantID, c.Param("id"))
	if err != nil {
		respondMonitorError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// EvidenceRequest is the body for attaching evidence to a record.
type EvidenceRequest struct {
	Description string `json:"description" binding:"required"`
	AddedBy     string `json:"addedBy" binding:"required"`
}

// AddEvidence handles POST /v1/postauth/:id/evidence.
func (h *Handler) AddEvidence(c *gin.Context) {
	merchantID := c.GetString(merchant.ContextKeyMerchantID)

	var req EvidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "description and addedBy are required",
		})
		return
	}

	order, err := h.service.AddEvidence(c.Request.Context(), merchantID, c.Param("id"), req.Description, req.AddedBy)
	if err != nil {
		respondMonitorError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// NoteRequest is the body for adding an analyst note.
type NoteRequest struct {
	Text   string `json:"text" binding:"required"`
	Author string `json:"author" binding:"required"`
}

// AddNote handles POST /v1/postauth/:id/notes.
func (h *Handler) AddNote(c *gin.Context) {
	merchantID := c.GetString(merchant.ContextKeyMerchantID)

	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "text and author are required",
		})
		return
	}

	order, err := h.service.AddNote(c.Request.Context(), merchantID, c.Param("id"), req.Text, req.Author)
	if err != nil {
		respondMonitorError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// Clear handles POST /v1/postauth/:id/clear.
func (h *Handler) Clear(c *gin.Context) {
	merchantID := c.GetString(merchant.ContextKeyMerchantID)

	order, err := h.service.MarkCleared(c.Request.Context(), merchantID, c.Param("id"))
	if err != nil {
		respondMonitorError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// FileChargeback handles POST /v1/postauth/:id/chargeback.
func (h *Handler) FileChargeback(c *gin.Context) {
	merchantID := c.GetString(merchant.ContextKeyMerchantID)

	order, err := h.service.FileChargeback(c.Request.Context(), merchantID, c.Param("id"))
	if err != nil {
		respondMonitorError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func respondMonitorError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Monitoring record not found",
		})
	case errors.Is(err, ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "Monitoring record belongs to another merchant",
		})
	case errors.Is(err, ErrMonitoringClosed):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "monitoring_closed",
			"message": "Monitoring has already been closed for this order",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to process monitoring request",
		})
	}
}
