package handlers

import (
	"context"

	ghclient "prsentinel/internal/github"
	"prsentinel/internal/models"
	"prsentinel/internal/realtime"
	"prsentinel/internal/review"
)

// WebhookProcessor accepts verified webhook deliveries for
// asynchronous processing.
type WebhookProcessor interface {
	Enqueue(ctx context.Context, eventType string, payload []byte, deliveryID string) error
}

// Store is the slice of the record store the HTTP API uses.
type Store interface {
	GetReview(ctx context.Context, id string) (*models.Review, error)
	ListReviewsByTeam(ctx context.Context, teamID string) ([]models.Review, error)
	GetRepository(ctx context.Context, id string) (*models.Repository, error)
	CreateRepository(ctx context.Context, r *models.Repository) error
	CreateReview(ctx context.Context, r *models.Review) error
	FailReview(ctx context.Context, id, summary string) error
}

// Pipeline runs the review state machine.
type Pipeline interface {
	Process(ctx context.Context, req review.Request)
}

// ClientFactory builds a GitHub client for a repository token. The
// manual trigger path needs it to look PR metadata up.
type ClientFactory func(token string) *ghclient.Client

// Handler manages HTTP request handlers
type Handler struct {
	webhookProc   WebhookProcessor
	webhookSecret string
	store         Store
	pipeline      Pipeline
	hub           *realtime.Hub
	githubClients ClientFactory
}

// NewHandler creates a new handler instance
func NewHandler(webhookProc WebhookProcessor, webhookSecret string, store Store, pipeline Pipeline, hub *realtime.Hub, githubClients ClientFactory) *Handler {
	return &Handler{
		webhookProc:   webhookProc,
		webhookSecret: webhookSecret,
		store:         store,
		pipeline:      pipeline,
		hub:           hub,
		githubClients: githubClients,
	}
}
