package webhook

import (
	"context"
	"encoding/json"
	"testing"

	"prsentinel/internal/models"
	"prsentinel/internal/review"
	"prsentinel/internal/storage"
)

// MockStore is a test double for Store
type MockStore struct {
	repo           *models.Repository
	created        []*models.Review
	failed         map[string]string
	getRepoCalled  bool
	createErr      error
	lookupByRepoID int64
}

func (m *MockStore) GetRepositoryByGitHubID(ctx context.Context, githubRepoID int64) (*models.Repository, error) {
	m.getRepoCalled = true
	m.lookupByRepoID = githubRepoID
	if m.repo == nil {
		return nil, storage.ErrNotFound
	}
	return m.repo, nil
}

func (m *MockStore) CreateReview(ctx context.Context, r *models.Review) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, r)
	return nil
}

func (m *MockStore) FailReview(ctx context.Context, id, summary string) error {
	if m.failed == nil {
		m.failed = make(map[string]string)
	}
	m.failed[id] = summary
	return nil
}

// MockPipeline records pipeline invocations
type MockPipeline struct {
	requests []review.Request
}

func (m *MockPipeline) Process(ctx context.Context, req review.Request) {
	m.requests = append(m.requests, req)
}

// MockNotifier records broadcasts
type MockNotifier struct {
	events []string
}

func (m *MockNotifier) Broadcast(userID, teamID, event string, payload interface{}) {
	m.events = append(m.events, event)
}

func prPayload(action string, repoID int64, prNumber int) []byte {
	payload, _ := json.Marshal(map[string]interface{}{
		"action": action,
		"number": prNumber,
		"pull_request": map[string]interface{}{
			"number":   prNumber,
			"title":    "Add feature",
			"html_url": "https://github.com/owner/repo/pull/42",
			"body":     "Adds the feature",
			"user":     map[string]interface{}{"login": "alice"},
			"head":     map[string]interface{}{"sha": "abc1234", "ref": "feature"},
		},
		"repository": map[string]interface{}{
			"id":        repoID,
			"full_name": "owner/repo",
		},
	})
	return payload
}

func connectedRepo() *models.Repository {
	return &models.Repository{
		ID:           "repo-1",
		GitHubRepoID: 1001,
		FullName:     "owner/repo",
		AccessToken:  "gh-token",
		ConnectedBy:  "user-1",
		TeamID:       "team-1",
	}
}

func TestProcessor_Process_PingEvent(t *testing.T) {
	store := &MockStore{repo: connectedRepo()}
	pipeline := &MockPipeline{}

	p := NewProcessor(store, pipeline, &MockNotifier{})

	payload, _ := json.Marshal(map[string]interface{}{"zen": "Keep it simple, silly"})

	if err := p.Process(context.Background(), "ping", payload, "d-1"); err != nil {
		t.Errorf("Process(ping) returned error: %v", err)
	}
	if len(store.created) != 0 {
		t.Error("ping should not create a review")
	}
}

func TestProcessor_Process_PROpened(t *testing.T) {
	store := &MockStore{repo: connectedRepo()}
	pipeline := &MockPipeline{}
	notifier := &MockNotifier{}

	p := NewProcessor(store, pipeline, notifier)

	if err := p.Process(context.Background(), "pull_request", prPayload("opened", 1001, 42), "d-2"); err != nil {
		t.Errorf("Process returned error: %v", err)
	}

	if len(store.created) != 1 {
		t.Fatalf("created %d reviews, want 1", len(store.created))
	}

	rev := store.created[0]
	if rev.Status != models.StatusPending {
		t.Errorf("review status = %q, want pending", rev.Status)
	}
	if rev.PullRequestNumber != 42 {
		t.Errorf("pull request number = %d, want 42", rev.PullRequestNumber)
	}
	if rev.Author != "alice" {
		t.Errorf("author = %q, want alice", rev.Author)
	}
	if rev.ReviewedBy != "user-1" || rev.TeamID != "team-1" {
		t.Errorf("review scope = (%q, %q), want (user-1, team-1)", rev.ReviewedBy, rev.TeamID)
	}

	if len(pipeline.requests) != 1 {
		t.Fatalf("pipeline invoked %d times, want 1", len(pipeline.requests))
	}
	req := pipeline.requests[0]
	if req.Owner != "owner" || req.Repo != "repo" {
		t.Errorf("pipeline target = %s/%s, want owner/repo", req.Owner, req.Repo)
	}
	if req.CommitSHA != "abc1234" {
		t.Errorf("commit sha = %q, want abc1234", req.CommitSHA)
	}
	if req.AccessToken != "gh-token" {
		t.Errorf("access token = %q, want gh-token", req.AccessToken)
	}

	if len(notifier.events) == 0 || notifier.events[0] != "review-created" {
		t.Errorf("first broadcast = %v, want review-created", notifier.events)
	}
}

func TestProcessor_Process_IgnoredAction(t *testing.T) {
	store := &MockStore{repo: connectedRepo()}
	pipeline := &MockPipeline{}

	p := NewProcessor(store, pipeline, &MockNotifier{})

	for _, action := range []string{"closed", "labeled", "assigned"} {
		if err := p.Process(context.Background(), "pull_request", prPayload(action, 1001, 42), "d-3"); err != nil {
			t.Errorf("Process(%s) returned error: %v", action, err)
		}
	}

	if len(store.created) != 0 {
		t.Error("ignored actions should not create reviews")
	}
	if len(pipeline.requests) != 0 {
		t.Error("ignored actions should not invoke the pipeline")
	}
}

func TestProcessor_Process_RepositoryNotFound(t *testing.T) {
	store := &MockStore{} // no repository registered
	pipeline := &MockPipeline{}

	p := NewProcessor(store, pipeline, &MockNotifier{})

	// Unknown repositories are acknowledged, logged, and otherwise
	// produce nothing.
	if err := p.Process(context.Background(), "pull_request", prPayload("opened", 9999, 7), "d-4"); err != nil {
		t.Errorf("Process returned error: %v", err)
	}

	if !store.getRepoCalled {
		t.Error("repository lookup should happen")
	}
	if len(store.created) != 0 {
		t.Error("no review should be created for an unknown repository")
	}
}

func TestProcessor_Process_MissingAccessToken(t *testing.T) {
	repo := connectedRepo()
	repo.AccessToken = ""
	store := &MockStore{repo: repo}
	pipeline := &MockPipeline{}
	notifier := &MockNotifier{}

	p := NewProcessor(store, pipeline, notifier)

	if err := p.Process(context.Background(), "pull_request", prPayload("opened", 1001, 42), "d-5"); err != nil {
		t.Errorf("Process returned error: %v", err)
	}

	if len(store.created) != 1 {
		t.Fatalf("created %d reviews, want 1", len(store.created))
	}
	rev := store.created[0]

	if summary, ok := store.failed[rev.ID]; !ok || summary == "" {
		t.Error("review should be failed with an explanatory summary")
	}
	if len(pipeline.requests) != 0 {
		t.Error("pipeline must not run without an access token")
	}

	want := []string{"review-created", "review-updated"}
	if len(notifier.events) != len(want) {
		t.Fatalf("broadcast %v, want %v", notifier.events, want)
	}
	for i := range want {
		if notifier.events[i] != want[i] {
			t.Errorf("broadcast[%d] = %q, want %q", i, notifier.events[i], want[i])
		}
	}
}

func TestProcessor_Process_TwoEventsTwoReviews(t *testing.T) {
	store := &MockStore{repo: connectedRepo()}
	pipeline := &MockPipeline{}

	p := NewProcessor(store, pipeline, &MockNotifier{})

	// Same PR, two qualifying events: no dedup, two independent rows.
	if err := p.Process(context.Background(), "pull_request", prPayload("opened", 1001, 42), "d-6"); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if err := p.Process(context.Background(), "pull_request", prPayload("synchronize", 1001, 42), "d-7"); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if len(store.created) != 2 {
		t.Fatalf("created %d reviews, want 2", len(store.created))
	}
	if store.created[0].ID == store.created[1].ID {
		t.Error("each event should get its own review id")
	}
}
