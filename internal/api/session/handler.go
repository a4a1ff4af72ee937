package session

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/medbrief/internal/domain"
	"github.com/liliang-cn/medbrief/internal/service"
)

// Handler exposes the session to a local frontend
type Handler struct {
	session *service.SessionService
}

// NewHandler creates a new session handler
func NewHandler(session *service.SessionService) *Handler {
	return &Handler{session: session}
}

// RegisterRoutes registers session routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.GetSession)
	r.DELETE("", h.ClearSession)
	r.POST("/documents", h.IngestDocuments)
	r.PUT("/records", h.EditRecords)
	r.PUT("/mode", h.SwitchMode)

	summaries := r.Group("/summaries")
	{
		summaries.POST("", h.GenerateSummaries)
		summaries.GET("/:mode", h.GetSummary)
	}

	chat := r.Group("/chat")
	{
		chat.GET("", h.GetChat)
		chat.POST("", h.SendChat)
		chat.DELETE("", h.ClearChat)
	}

	r.POST("/explain", h.ExplainTerm)
}

func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Snapshot())
}

// IngestDocuments accepts either JSON documents or multipart "files"
func (h *Handler) IngestDocuments(c *gin.Context) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		h.uploadFiles(c)
		return
	}

	var req domain.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.session.Ingest(c.Request.Context(), req.Documents)
	c.JSON(http.StatusOK, h.session.Snapshot())
}

func (h *Handler) uploadFiles(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "files are required"})
		return
	}

	files := make([]service.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		src, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open uploaded file"})
			return
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
			return
		}
		files = append(files, service.UploadedFile{Name: fh.Filename, Data: data})
	}

	if _, err := h.session.IngestFiles(c.Request.Context(), files); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session.Snapshot())
}

func (h *Handler) EditRecords(c *gin.Context) {
	var req domain.EditRecordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.session.EditRecords(c.Request.Context(), req.Text)
	c.JSON(http.StatusOK, h.session.Snapshot())
}

func (h *Handler) GenerateSummaries(c *gin.Context) {
	if _, err := h.session.Generate(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session.Snapshot())
}

func (h *Handler) GetSummary(c *gin.Context) {
	mode, err := domain.ParseMode(c.Param("mode"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": mode, "summary": h.session.Summary(mode)})
}

func (h *Handler) SwitchMode(c *gin.Context) {
	var req domain.ModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode, err := domain.ParseMode(req.Mode)
	if err == nil {
		err = h.session.SwitchMode(mode)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session.Snapshot())
}

// ClearSession wipes the session; it requires ?confirm=true
func (h *Handler) ClearSession(c *gin.Context) {
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))
	if err := h.session.Clear(c.Request.Context(), confirmed); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session.Snapshot())
}

func (h *Handler) GetChat(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"turns": h.session.ChatTurns()})
}

func (h *Handler) SendChat(c *gin.Context) {
	var req domain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	turn, sent := h.session.SendTurn(c.Request.Context(), req.Question)
	resp := domain.ChatResponse{Sent: sent, Turns: h.session.ChatTurns()}
	if sent {
		resp.Turn = &turn
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ClearChat(c *gin.Context) {
	h.session.ClearChat(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"turns": []domain.ChatTurn{}})
}

func (h *Handler) ExplainTerm(c *gin.Context) {
	var req domain.ExplainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	explanation := h.session.ExplainTerm(c.Request.Context(), req.Term, req.Context)
	c.JSON(http.StatusOK, domain.ExplainResponse{Term: req.Term, Explanation: explanation})
}

// writeError maps the domain error taxonomy to HTTP status codes
func writeError(c *gin.Context, err error) {
	var remoteErr *domain.RemoteError
	switch {
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &remoteErr):
		body := gin.H{"error": remoteErr.Message, "op": remoteErr.Op}
		if remoteErr.RawResponse != "" {
			body["raw_response"] = remoteErr.RawResponse
		}
		c.JSON(http.StatusBadGateway, body)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
