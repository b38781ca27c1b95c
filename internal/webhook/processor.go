package webhook

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/go-github/v82/github"
	"github.com/google/uuid"

	ghclient "prsentinel/internal/github"
	"prsentinel/internal/models"
	"prsentinel/internal/realtime"
	"prsentinel/internal/review"
	"prsentinel/internal/storage"
)

// Store is the slice of the record store the webhook path uses.
type Store interface {
	GetRepositoryByGitHubID(ctx context.Context, githubRepoID int64) (*models.Repository, error)
	CreateReview(ctx context.Context, r *models.Review) error
	FailReview(ctx context.Context, id, summary string) error
}

// Pipeline runs the review state machine for an already-created
// review.
type Pipeline interface {
	Process(ctx context.Context, req review.Request)
}

// Notifier pushes review lifecycle events to connected clients.
type Notifier interface {
	Broadcast(userID, teamID, event string, payload interface{})
}

// Processor turns verified webhook payloads into review pipeline runs.
type Processor struct {
	store    Store
	pipeline Pipeline
	notifier Notifier
}

// NewProcessor creates a webhook processor.
func NewProcessor(store Store, pipeline Pipeline, notifier Notifier) *Processor {
	return &Processor{store: store, pipeline: pipeline, notifier: notifier}
}

// Process handles one verified webhook delivery. Events and actions
// outside the pipeline's interest are acknowledged without side
// effects.
func (p *Processor) Process(ctx context.Context, eventType string, payload []byte, deliveryID string) error {
	if p.store == nil || p.pipeline == nil {
		return fmt.Errorf("webhook processor not configured")
	}

	event, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		return fmt.Errorf("parse webhook event: %w", err)
	}

	switch e := event.(type) {
	case *github.PingEvent:
		log.Printf("github webhook ping delivery=%s", deliveryID)
		return nil
	case *github.PullRequestEvent:
		return p.handlePullRequest(ctx, e)
	default:
		return nil
	}
}

func (p *Processor) handlePullRequest(ctx context.Context, e *github.PullRequestEvent) error {
	switch strings.ToLower(e.GetAction()) {
	case "opened", "reopened", "synchronize":
	default:
		return nil
	}

	repo, err := p.store.GetRepositoryByGitHubID(ctx, e.GetRepo().GetID())
	if errors.Is(err, storage.ErrNotFound) {
		log.Printf("repository not found: %s (%d)", e.GetRepo().GetFullName(), e.GetRepo().GetID())
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup repository: %w", err)
	}

	pr := e.GetPullRequest()
	rev := &models.Review{
		ID:                uuid.NewString(),
		RepositoryID:      repo.ID,
		PullRequestNumber: pr.GetNumber(),
		PullRequestTitle:  pr.GetTitle(),
		PullRequestURL:    pr.GetHTMLURL(),
		Author:            pr.GetUser().GetLogin(),
		Status:            models.StatusPending,
		ReviewedBy:        repo.ConnectedBy,
		TeamID:            repo.TeamID,
	}

	if err := p.store.CreateReview(ctx, rev); err != nil {
		return fmt.Errorf("create review: %w", err)
	}

	p.notify(repo, realtime.EventReviewCreated, map[string]interface{}{
		"reviewId":          rev.ID,
		"status":            rev.Status,
		"repository":        repo.FullName,
		"pullRequestNumber": rev.PullRequestNumber,
		"pullRequestTitle":  rev.PullRequestTitle,
	})

	// Precondition: without a stored token there is nothing to fetch
	// with. The review fails before the pipeline ever starts.
	if repo.AccessToken == "" {
		if err := p.store.FailReview(ctx, rev.ID, "No access token configured for repository"); err != nil {
			return fmt.Errorf("fail review: %w", err)
		}
		p.notify(repo, realtime.EventReviewUpdated, map[string]interface{}{
			"reviewId": rev.ID,
			"status":   models.StatusFailed,
			"summary":  "No access token configured for repository",
		})
		return nil
	}

	owner, name, err := ghclient.ParseRepoFullName(repo.FullName)
	if err != nil {
		return fmt.Errorf("parse repo name: %w", err)
	}

	p.pipeline.Process(ctx, review.Request{
		ReviewID:    rev.ID,
		Owner:       owner,
		Repo:        name,
		PullNumber:  rev.PullRequestNumber,
		CommitSHA:   pr.GetHead().GetSHA(),
		PRContext:   BuildPRContext(pr.GetNumber(), pr.GetTitle(), pr.GetUser().GetLogin(), pr.GetBody()),
		AccessToken: repo.AccessToken,
	})

	return nil
}

func (p *Processor) notify(repo *models.Repository, event string, payload map[string]interface{}) {
	if p.notifier == nil {
		return
	}
	p.notifier.Broadcast(repo.ConnectedBy, repo.TeamID, event, payload)
}

// BuildPRContext renders the PR metadata handed to the AI prompt.
func BuildPRContext(number int, title, author, body string) string {
	ctx := fmt.Sprintf("PR #%d: %s\nAuthor: %s", number, title, author)
	if body != "" {
		ctx += "\n\n" + body
	}
	return ctx
}
