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
	"github.com/liliang-cn/medbrief/internal/assistant"
	"github.com/liliang-cn/medbrief/internal/config"
	"github.com/liliang-cn/medbrief/internal/logging"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	gen, err := assistant.NewClaudeGenerator(cfg.Assistant, logger.Named("claude"))
	if err != nil {
		logger.Fatal("Failed to initialize Claude", zap.Error(err))
	}
	svc := assistant.NewService(gen, cfg.Assistant.Timeout, logger.Named("assistant"))

	router := api.SetupAssistantRouter(svc, api.RouterConfig{
		AllowOrigins: cfg.Server.AllowOrigins,
	}, logger.Named("http"))

	srv := &http.Server{
		Addr:         cfg.AssistantAddress(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Assistant.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Starting medbrief assistant",
			zap.String("address", cfg.AssistantAddress()),
			zap.String("model", cfg.Assistant.Model),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down assistant...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Assistant exited")
}
