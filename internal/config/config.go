package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	GinMode       string
	DatabaseURL   string
	WebhookSecret string

	LLMProvider   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	CopilotModel  string

	MaxFilesPerReview int
	FileFetchDelay    time.Duration
	AIRequestDelay    time.Duration
	UpstreamTimeout   time.Duration
	RetryAttempts     int
	RetryBaseDelay    time.Duration

	WebhookQueueSize int
	WebhookWorkers   int

	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "" {
		ginMode = "debug"
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = "postgres://localhost:5432/prsentinel?sslmode=disable"
	}

	llmProvider := os.Getenv("LLM_PROVIDER")
	if llmProvider == "" {
		llmProvider = "openai"
	}

	openAIModel := os.Getenv("OPENAI_MODEL")
	if openAIModel == "" {
		openAIModel = "gpt-4"
	}

	copilotModel := os.Getenv("COPILOT_MODEL")
	if copilotModel == "" {
		copilotModel = "gpt-5-mini"
	}

	maxFiles := 10
	if v := os.Getenv("MAX_FILES_PER_REVIEW"); v != "" {
		if parsed, err := parsePositiveInt(v); err == nil {
			maxFiles = parsed
		}
	}

	retryAttempts := 3
	if v := os.Getenv("RETRY_ATTEMPTS"); v != "" {
		if parsed, err := parsePositiveInt(v); err == nil {
			retryAttempts = parsed
		}
	}

	webhookQueueSize := 100
	if v := os.Getenv("WEBHOOK_QUEUE_SIZE"); v != "" {
		if parsed, err := parsePositiveInt(v); err == nil {
			webhookQueueSize = parsed
		}
	}

	webhookWorkers := 4
	if v := os.Getenv("WEBHOOK_WORKERS"); v != "" {
		if parsed, err := parsePositiveInt(v); err == nil {
			webhookWorkers = parsed
		}
	}

	return &Config{
		Port:          port,
		GinMode:       ginMode,
		DatabaseURL:   databaseURL,
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),

		LLMProvider:   llmProvider,
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:   openAIModel,
		CopilotModel:  copilotModel,

		MaxFilesPerReview: maxFiles,
		FileFetchDelay:    envDuration("FILE_FETCH_DELAY", 500*time.Millisecond),
		AIRequestDelay:    envDuration("AI_REQUEST_DELAY", time.Second),
		UpstreamTimeout:   envDuration("UPSTREAM_TIMEOUT", 60*time.Second),
		RetryAttempts:     retryAttempts,
		RetryBaseDelay:    envDuration("RETRY_BASE_DELAY", time.Second),

		WebhookQueueSize: webhookQueueSize,
		WebhookWorkers:   webhookWorkers,

		ShutdownTimeout: 10 * time.Second,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
