package merchant

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dbeloglazov/fraudgate/internal/validation"
)

// Handler provides HTTP endpoints for merchant registration.
type Handler struct {
	manager *Manager
}

// NewHandler creates a new merchant handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// RegisterPublicRoutes sets up unauthenticated routes.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/register", h.Register)
}

// RegisterRequest is the request body for merchant registration.
type RegisterRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
}

// Register handles POST /v1/register.
// Creates a merchant account and returns its API key (shown once).
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "name and email are required",
		})
		return
	}

	if errs := validation.Validate(
		validation.ValidEmail("email", req.Email),
		validation.MaxLength("name", req.Name, 200),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": errs.Error(),
			"fields":  errs,
		})
		return
	}

	merch, rawKey, err := h.manager.Register(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "email_taken",
				"message": "A merchant with this email already exists",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to register merchant",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"merchant": merch,
		"apiKey":   rawKey,
		"notice":   "Store this API key now. It will not be shown again.",
	})
}
