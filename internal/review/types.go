package review

import (
	"context"

	"prsentinel/internal/ai"
	ghclient "prsentinel/internal/github"
	"prsentinel/internal/models"
)

// Request carries everything the pipeline needs to process one review.
// The review row must already exist in pending state, and AccessToken
// must be non-empty: a repository without a token is failed by the
// caller before the pipeline is ever invoked.
type Request struct {
	ReviewID    string
	Owner       string
	Repo        string
	PullNumber  int
	CommitSHA   string
	PRContext   string
	AccessToken string
}

// Store is the slice of the review record store the pipeline uses.
type Store interface {
	GetReview(ctx context.Context, id string) (*models.Review, error)
	MarkInProgress(ctx context.Context, id string) error
	CompleteReview(ctx context.Context, id string, filesAnalyzed, qualityScore int, summary string, findings models.FindingList) error
	FailReview(ctx context.Context, id, summary string) error
}

// GitHubClient covers the GitHub operations of one review: listing
// changed files, fetching their content, and posting the result
// comment.
type GitHubClient interface {
	ListChangedFiles(ctx context.Context, owner, repo string, prNumber int) ([]ghclient.PRFile, error)
	GetFileContent(ctx context.Context, owner, repo, path, ref string) (string, bool, error)
	CreateIssueComment(ctx context.Context, owner, repo string, prNumber int, body string) error
}

// ClientFactory builds a GitHub client for a repository's access
// token. Tokens differ per repository, so the pipeline cannot hold a
// single client.
type ClientFactory func(token string) GitHubClient

// Analyzer submits fetched files as one logical batch.
type Analyzer interface {
	AnalyzeBatch(ctx context.Context, files []ai.FileInput, prContext string) (*ai.BatchResult, error)
}

// Notifier pushes review lifecycle events to connected clients.
// Delivery failures never affect the pipeline.
type Notifier interface {
	Broadcast(userID, teamID, event string, payload interface{})
}
