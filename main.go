package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"prsentinel/internal/ai"
	"prsentinel/internal/config"
	"prsentinel/internal/copilot"
	ghclient "prsentinel/internal/github"
	"prsentinel/internal/handlers"
	"prsentinel/internal/realtime"
	"prsentinel/internal/review"
	"prsentinel/internal/server"
	"prsentinel/internal/storage"
	"prsentinel/internal/webhook"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Connect storage and apply schema
	store, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	if err := storage.RunMigrations(context.Background(), store.DB()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize LLM provider based on configuration
	var llmSvc ai.Provider
	switch cfg.LLMProvider {
	case "copilot":
		log.Printf("Using Copilot LLM provider (model: %s)", cfg.CopilotModel)
		llmSvc = copilot.NewService(cfg.CopilotModel)
	default:
		log.Printf("Using OpenAI LLM provider (model: %s)", cfg.OpenAIModel)
		llmSvc = ai.NewOpenAIProvider(ai.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.UpstreamTimeout,
		})
	}

	if err := llmSvc.Start(); err != nil {
		log.Fatalf("Failed to start LLM service: %v", err)
	}
	defer llmSvc.Stop()

	analyzer := ai.NewAnalyzer(llmSvc, ai.AnalyzerConfig{
		RequestDelay:   cfg.AIRequestDelay,
		RetryAttempts:  cfg.RetryAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
		Timeout:        cfg.UpstreamTimeout,
	})

	// GitHub clients are per-repository: each review runs with that
	// repository's stored token.
	githubOpts := ghclient.Options{
		RetryAttempts:  cfg.RetryAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
		Timeout:        cfg.UpstreamTimeout,
	}
	newGitHubClient := func(token string) *ghclient.Client {
		return ghclient.NewClient(token, githubOpts)
	}

	// The broadcaster is constructed once here and handed to every
	// consumer explicitly.
	hub := realtime.NewHub()

	reviewSvc := review.NewService(
		store,
		func(token string) review.GitHubClient { return newGitHubClient(token) },
		analyzer,
		hub,
		review.Config{
			MaxFiles:   cfg.MaxFilesPerReview,
			FetchDelay: cfg.FileFetchDelay,
		},
	)

	webhookProc := webhook.NewProcessor(store, reviewSvc, hub)
	webhookAsync := webhook.NewAsyncProcessor(webhookProc, webhook.AsyncConfig{QueueSize: cfg.WebhookQueueSize, Workers: cfg.WebhookWorkers})

	// Setup HTTP server
	srv := server.NewServer(cfg)
	handler := handlers.NewHandler(webhookAsync, cfg.WebhookSecret, store, reviewSvc, hub, newGitHubClient)

	// Register routes
	srv.Router().GET("/health", handler.Health)
	srv.Router().POST("/webhook", handler.GitHubWebhook)
	srv.Router().GET("/ws", handler.Events)
	srv.Router().GET("/api/reviews", handler.ListReviews)
	srv.Router().GET("/api/reviews/:id", handler.GetReview)
	srv.Router().POST("/api/repositories", handler.ConnectRepository)
	srv.Router().POST("/api/repositories/:id/reviews", handler.TriggerReview)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		log.Println("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Printf("Server error: %v", err)
		}
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if err := webhookAsync.Stop(ctx); err != nil {
		log.Printf("Webhook processor shutdown error: %v", err)
	}

	log.Println("Server exited")
}
