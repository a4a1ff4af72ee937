package assistant

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/medbrief/internal/assistant"
	"github.com/liliang-cn/medbrief/internal/domain"
	"github.com/liliang-cn/medbrief/internal/remote"
)

// Handler serves the summarization service API
type Handler struct {
	svc *assistant.Service
}

// NewHandler creates a new assistant handler
func NewHandler(svc *assistant.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers assistant routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/health", h.Health)
	r.POST("/summarize", h.Summarize)
	r.POST("/chat", h.Chat)
	r.POST("/explain-term", h.ExplainTerm)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Health())
}

func (h *Handler) Summarize(c *gin.Context) {
	var req remote.SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.svc.Summarize(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Chat(c *gin.Context) {
	var req remote.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.svc.Chat(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ExplainTerm(c *gin.Context) {
	var req remote.ExplainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.svc.ExplainTerm(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func writeError(c *gin.Context, err error) {
	var invalid *assistant.InvalidJSONError
	switch {
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &invalid):
		c.JSON(http.StatusInternalServerError, gin.H{"error": invalid.Error(), "raw_response": invalid.RawResponse})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
