// Package main is the AIGrader server: the grading proxy plus the browser
// sessions that drive it.
package main

import (
	"ai-grader/internal/client"
	"ai-grader/internal/config"
	"ai-grader/internal/controller"
	"ai-grader/internal/router"
	"ai-grader/internal/service"
	"ai-grader/pkg/llm"
	"ai-grader/pkg/log"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

// proxyCallMargin gives the loopback call room to outlive the provider timeout.
const proxyCallMargin = 5 * time.Second

func main() {
	// 1. Config
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. Logger
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("logger initialized")
	if config.APIKey() == "" {
		log.Warnf("OPENROUTER_API_KEY is not set; grading calls will fail until it is")
	}

	// 3. Services
	llmClient := llm.NewClient(cfg.LLM, config.APIKey)
	gradingService := service.NewGradingService(llmClient, cfg.Grading)
	gradeClient := client.NewGradeClient(cfg.Server.ProxyURL, cfg.LLM.Timeout+proxyCallMargin, cfg.Grading)

	// 4. Routes
	gin.SetMode(cfg.Server.Mode)
	r := router.New(router.Deps{
		GradingService: gradingService,
		Proxy:          gradeClient,
		Session: controller.Options{
			RevealInterval: cfg.Session.RevealInterval,
			FailureText:    cfg.Grading.ClientFailureText,
		},
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		TooLargeText: cfg.Grading.TooLargeText,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP listen failed: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP server shutdown failed: %v", err)
	}
	log.Info("server stopped")
}
