package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/liliang-cn/medbrief/internal/api"
	"github.com/liliang-cn/medbrief/internal/config"
	"github.com/liliang-cn/medbrief/internal/logging"
	"github.com/liliang-cn/medbrief/internal/remote"
	"github.com/liliang-cn/medbrief/internal/repository"
	"github.com/liliang-cn/medbrief/internal/service"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Open the session mirror
	kv, err := repository.Open(cfg.Store)
	if err != nil {
		logger.Fatal("Failed to open session store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer kv.Close()
	sessionRepo := repository.NewSessionRepository(kv, logger.Named("store"), cfg.Store.MirrorChat)

	// Remote summarization service
	client := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Timeout, logger.Named("remote"))
	probeRemote(client, cfg.Remote.BaseURL, logger)

	// Initialize services
	conversation := service.NewConversationService(client, sessionRepo, logger.Named("chat"))
	session := service.NewSessionService(client, sessionRepo, conversation, logger.Named("session"))
	session.Restore(context.Background())

	// Setup router
	router := api.SetupRouter(session, api.RouterConfig{
		APIKey:       cfg.Admin.APIKey,
		AllowOrigins: cfg.Server.AllowOrigins,
	}, logger.Named("http"))

	// Generation waits on the remote service, so writes may take as long as a remote call
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Remote.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Starting medbrief session server",
			zap.String("address", cfg.Address()),
			zap.String("remote", cfg.Remote.BaseURL),
			zap.String("store", cfg.Store.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// probeRemote checks the summarization service once; the session works
// offline until it is reachable, so failure only warns.
func probeRemote(client *remote.Client, baseURL string, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		logger.Warn("Summarization service unreachable", zap.String("base_url", baseURL), zap.Error(err))
		return
	}
	logger.Info("Summarization service reachable", zap.String("status", health.Status))
}
