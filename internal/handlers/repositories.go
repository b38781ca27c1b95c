package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	ghclient "prsentinel/internal/github"
	"prsentinel/internal/models"
	"prsentinel/internal/realtime"
	"prsentinel/internal/review"
	"prsentinel/internal/storage"
	"prsentinel/internal/webhook"
)

type connectRepositoryRequest struct {
	GitHubRepoID  int64  `json:"github_repo_id" binding:"required"`
	FullName      string `json:"full_name" binding:"required"`
	DefaultBranch string `json:"default_branch"`
	AccessToken   string `json:"access_token"`
	ConnectedBy   string `json:"connected_by" binding:"required"`
	TeamID        string `json:"team_id"`
}

// ConnectRepository registers a GitHub repository so its webhook
// events produce reviews.
func (h *Handler) ConnectRepository(c *gin.Context) {
	var req connectRepositoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, _, err := ghclient.ParseRepoFullName(req.FullName); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	branch := req.DefaultBranch
	if branch == "" {
		branch = "main"
	}

	repo := &models.Repository{
		ID:            uuid.NewString(),
		GitHubRepoID:  req.GitHubRepoID,
		FullName:      req.FullName,
		DefaultBranch: branch,
		AccessToken:   req.AccessToken,
		ConnectedBy:   req.ConnectedBy,
		TeamID:        req.TeamID,
	}

	if err := h.store.CreateRepository(c.Request.Context(), repo); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create repository"})
		return
	}

	c.JSON(http.StatusCreated, repo)
}

type triggerReviewRequest struct {
	PullNumber int `json:"pull_number" binding:"required"`
}

// TriggerReview starts a review for a PR without waiting for a webhook
// event. Same pipeline, same state machine; the review is created at
// pending and processed in the background.
func (h *Handler) TriggerReview(c *gin.Context) {
	var req triggerReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	repo, err := h.store.GetRepository(ctx, c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "repository not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load repository"})
		return
	}

	if repo.AccessToken == "" {
		rev := &models.Review{
			ID:                uuid.NewString(),
			RepositoryID:      repo.ID,
			PullRequestNumber: req.PullNumber,
			Status:            models.StatusPending,
			ReviewedBy:        repo.ConnectedBy,
			TeamID:            repo.TeamID,
		}
		if err := h.store.CreateReview(ctx, rev); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create review"})
			return
		}
		h.hub.Broadcast(repo.ConnectedBy, repo.TeamID, realtime.EventReviewCreated, reviewCreatedPayload(rev, repo))

		summary := "No access token configured for repository"
		if err := h.store.FailReview(ctx, rev.ID, summary); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "fail review"})
			return
		}
		h.hub.Broadcast(repo.ConnectedBy, repo.TeamID, realtime.EventReviewUpdated, gin.H{
			"reviewId": rev.ID,
			"status":   models.StatusFailed,
			"summary":  summary,
		})

		c.JSON(http.StatusAccepted, gin.H{"review_id": rev.ID})
		return
	}

	owner, name, err := ghclient.ParseRepoFullName(repo.FullName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	client := h.githubClients(repo.AccessToken)
	pr, err := client.GetPullRequest(ctx, owner, name, req.PullNumber)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "fetch pull request from GitHub"})
		return
	}

	rev := &models.Review{
		ID:                uuid.NewString(),
		RepositoryID:      repo.ID,
		PullRequestNumber: pr.Number,
		PullRequestTitle:  pr.Title,
		PullRequestURL:    pr.HTMLURL,
		Author:            pr.Author,
		Status:            models.StatusPending,
		ReviewedBy:        repo.ConnectedBy,
		TeamID:            repo.TeamID,
	}
	if err := h.store.CreateReview(ctx, rev); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create review"})
		return
	}
	h.hub.Broadcast(repo.ConnectedBy, repo.TeamID, realtime.EventReviewCreated, reviewCreatedPayload(rev, repo))

	go h.pipeline.Process(context.Background(), review.Request{
		ReviewID:    rev.ID,
		Owner:       owner,
		Repo:        name,
		PullNumber:  pr.Number,
		CommitSHA:   pr.HeadSHA,
		PRContext:   webhook.BuildPRContext(pr.Number, pr.Title, pr.Author, pr.Body),
		AccessToken: repo.AccessToken,
	})

	c.JSON(http.StatusAccepted, gin.H{"review_id": rev.ID})
}

func reviewCreatedPayload(rev *models.Review, repo *models.Repository) map[string]interface{} {
	return map[string]interface{}{
		"reviewId":          rev.ID,
		"status":            rev.Status,
		"repository":        repo.FullName,
		"pullRequestNumber": rev.PullRequestNumber,
		"pullRequestTitle":  rev.PullRequestTitle,
	}
}
