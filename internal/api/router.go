package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	assistantapi "github.com/liliang-cn/medbrief/internal/api/assistant"
	"github.com/liliang-cn/medbrief/internal/api/middleware"
	"github.com/liliang-cn/medbrief/internal/api/session"
	"github.com/liliang-cn/medbrief/internal/assistant"
	"github.com/liliang-cn/medbrief/internal/service"
	"go.uber.org/zap"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey       string
	AllowOrigins []string
}

// SetupRouter sets up the Gin router for the local session API
func SetupRouter(sessionService *service.SessionService, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.AllowOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	sessionHandler := session.NewHandler(sessionService)
	sessionGroup := r.Group("/api/session")
	sessionGroup.Use(middleware.Auth(cfg.APIKey))
	sessionHandler.RegisterRoutes(sessionGroup)

	return r
}

// SetupAssistantRouter sets up the Gin router for the summarization service
func SetupAssistantRouter(svc *assistant.Service, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.AllowOrigins))

	assistantHandler := assistantapi.NewHandler(svc)
	assistantHandler.RegisterRoutes(r.Group("/api"))

	return r
}
