package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v82/github"
	"github.com/sethvargo/go-retry"
)

// sourceExtensions is the allow-list of reviewable file extensions.
// Matching is a case-sensitive suffix check on the part after the last
// dot; files without an extension never qualify.
var sourceExtensions = map[string]bool{
	".js":    true,
	".ts":    true,
	".jsx":   true,
	".tsx":   true,
	".py":    true,
	".java":  true,
	".go":    true,
	".rb":    true,
	".php":   true,
	".cpp":   true,
	".c":     true,
	".cs":    true,
	".swift": true,
	".kt":    true,
}

// IsSourceFile reports whether a path is on the reviewable extension
// allow-list.
func IsSourceFile(path string) bool {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return sourceExtensions[path[i:]]
		}
		if path[i] == '/' {
			break
		}
	}
	return false
}

// Options tunes upstream call behavior. Zero values disable retries and
// per-call timeouts.
type Options struct {
	RetryAttempts  int
	RetryBaseDelay time.Duration
	Timeout        time.Duration
}

// Client provides the GitHub API operations the review pipeline needs.
// One client is constructed per review with that repository's token.
type Client struct {
	client *github.Client
	token  string
	opts   Options
}

// NewClient creates a GitHub API client authenticated with token.
func NewClient(token string, opts Options) *Client {
	httpClient := &http.Client{
		Transport: &tokenTransport{token: token},
	}

	return &Client{
		client: github.NewClient(httpClient),
		token:  token,
		opts:   opts,
	}
}

type tokenTransport struct {
	token string
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "token "+t.token)
	return http.DefaultTransport.RoundTrip(req)
}

// withRetry runs fn under the configured timeout and bounded
// exponential backoff. Each attempt gets its own deadline.
func (c *Client) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := func(ctx context.Context) error {
		if c.opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
			defer cancel()
		}
		if err := fn(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	}

	if c.opts.RetryAttempts <= 1 {
		return attempt(ctx)
	}

	base := c.opts.RetryBaseDelay
	if base <= 0 {
		base = time.Second
	}
	backoff := retry.WithMaxRetries(uint64(c.opts.RetryAttempts-1), retry.NewExponential(base))

	return retry.Do(ctx, backoff, attempt)
}

// PRFile represents a file changed in a PR
type PRFile struct {
	Filename  string
	Status    string // added, removed, modified, renamed
	Additions int
	Deletions int
}

// PullRequest carries the PR metadata a review needs.
type PullRequest struct {
	Number  int
	Title   string
	Body    string
	Author  string
	HTMLURL string
	HeadSHA string
	HeadRef string
}

// ListChangedFiles fetches all files GitHub reports changed in a PR and
// filters them to the source extension allow-list.
func (c *Client) ListChangedFiles(ctx context.Context, owner, repo string, prNumber int) ([]PRFile, error) {
	var all []PRFile

	err := c.withRetry(ctx, func(ctx context.Context) error {
		all = all[:0]
		opts := &github.ListOptions{PerPage: 100}
		for {
			files, resp, err := c.client.PullRequests.ListFiles(ctx, owner, repo, prNumber, opts)
			if err != nil {
				return fmt.Errorf("list pr files: %w", err)
			}

			for _, f := range files {
				if !IsSourceFile(f.GetFilename()) {
					continue
				}
				all = append(all, PRFile{
					Filename:  f.GetFilename(),
					Status:    f.GetStatus(),
					Additions: f.GetAdditions(),
					Deletions: f.GetDeletions(),
				})
			}

			if resp.NextPage == 0 {
				return nil
			}
			opts.Page = resp.NextPage
		}
	})
	if err != nil {
		return nil, err
	}

	return all, nil
}

// GetFileContent fetches file content at a specific ref. The upstream
// API returns base64-encoded content; go-github decodes it. When the
// path resolves to something without content (a directory or a
// submodule) the second return is false with a nil error.
func (c *Client) GetFileContent(ctx context.Context, owner, repo, path, ref string) (string, bool, error) {
	var (
		decoded string
		ok      bool
	)

	err := c.withRetry(ctx, func(ctx context.Context) error {
		content, _, _, err := c.client.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{
			Ref: ref,
		})
		if err != nil {
			return fmt.Errorf("get file content: %w", err)
		}

		if content == nil || content.Content == nil {
			ok = false
			return nil
		}

		text, err := content.GetContent()
		if err != nil {
			return fmt.Errorf("decode content: %w", err)
		}

		decoded = text
		ok = true
		return nil
	})
	if err != nil {
		return "", false, err
	}

	return decoded, ok, nil
}

// GetPullRequest fetches PR metadata. Used by the manual trigger path,
// where no webhook payload carries it.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, prNumber int) (*PullRequest, error) {
	var pr *PullRequest

	err := c.withRetry(ctx, func(ctx context.Context) error {
		got, _, err := c.client.PullRequests.Get(ctx, owner, repo, prNumber)
		if err != nil {
			return fmt.Errorf("get pr: %w", err)
		}
		pr = &PullRequest{
			Number:  got.GetNumber(),
			Title:   got.GetTitle(),
			Body:    got.GetBody(),
			Author:  got.GetUser().GetLogin(),
			HTMLURL: got.GetHTMLURL(),
			HeadSHA: got.GetHead().GetSHA(),
			HeadRef: got.GetHead().GetRef(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return pr, nil
}

// CreateIssueComment appends a comment to the PR's discussion thread.
// Every call produces a new comment; there is no dedup or edit.
func (c *Client) CreateIssueComment(ctx context.Context, owner, repo string, prNumber int, body string) error {
	return c.withRetry(ctx, func(ctx context.Context) error {
		_, _, err := c.client.Issues.CreateComment(ctx, owner, repo, prNumber, &github.IssueComment{
			Body: github.Ptr(body),
		})
		if err != nil {
			return fmt.Errorf("create pr comment: %w", err)
		}
		return nil
	})
}

// ParseRepoFullName splits "owner/repo" into parts
func ParseRepoFullName(fullName string) (owner, repo string, err error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid repo name: %s", fullName)
	}
	return parts[0], parts[1], nil
}
