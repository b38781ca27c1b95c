package review

import (
	"context"
	"fmt"
	"log"
	"time"

	"prsentinel/internal/ai"
	"prsentinel/internal/models"
	"prsentinel/internal/realtime"
)

const noFilesSummary = "No code files to review in this PR"

// Config tunes the pipeline.
type Config struct {
	MaxFiles   int           // cap on files per review
	FetchDelay time.Duration // pause between file content fetches
}

// Service is the review pipeline orchestrator. It drives one review
// through pending -> in_progress -> completed/failed, persisting every
// transition and broadcasting it in order.
type Service struct {
	store    Store
	clients  ClientFactory
	analyzer Analyzer
	notifier Notifier
	cfg      Config
}

// NewService wires the pipeline dependencies.
func NewService(store Store, clients ClientFactory, analyzer Analyzer, notifier Notifier, cfg Config) *Service {
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 10
	}
	return &Service{
		store:    store,
		clients:  clients,
		analyzer: analyzer,
		notifier: notifier,
		cfg:      cfg,
	}
}

// Process runs the pipeline for one review. It never returns an error
// to the caller: every failure path ends in the review's own failed
// state (or, when the review row is missing, a log line and nothing
// else).
func (s *Service) Process(ctx context.Context, req Request) {
	rev, err := s.store.GetReview(ctx, req.ReviewID)
	if err != nil {
		log.Printf("review %s: load failed, aborting: %v", req.ReviewID, err)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("review %s: panic: %v", rev.ID, r)
			s.fail(ctx, rev, fmt.Sprintf("Review failed: %v", r))
		}
	}()

	if err := s.run(ctx, rev, req); err != nil {
		log.Printf("review %s: %v", rev.ID, err)
		s.fail(ctx, rev, fmt.Sprintf("Review failed: %v", err))
	}
}

func (s *Service) run(ctx context.Context, rev *models.Review, req Request) error {
	if err := s.store.MarkInProgress(ctx, rev.ID); err != nil {
		return fmt.Errorf("mark in progress: %w", err)
	}
	s.notifier.Broadcast(rev.ReviewedBy, rev.TeamID, realtime.EventReviewUpdated, map[string]interface{}{
		"reviewId": rev.ID,
		"status":   models.StatusInProgress,
		"message":  "Analyzing changed files",
	})

	client := s.clients(req.AccessToken)

	files, err := client.ListChangedFiles(ctx, req.Owner, req.Repo, req.PullNumber)
	if err != nil {
		return fmt.Errorf("list changed files: %w", err)
	}

	// Fast path: nothing reviewable. Completed with a perfect score;
	// no comment is posted on this path.
	if len(files) == 0 {
		if err := s.store.CompleteReview(ctx, rev.ID, 0, 100, noFilesSummary, nil); err != nil {
			return fmt.Errorf("complete review: %w", err)
		}
		s.broadcastCompleted(rev, 0, 100, 0)
		return nil
	}

	if len(files) > s.cfg.MaxFiles {
		files = files[:s.cfg.MaxFiles]
	}

	var inputs []ai.FileInput
	for i, f := range files {
		if i > 0 {
			if err := pause(ctx, s.cfg.FetchDelay); err != nil {
				return err
			}
		}

		content, ok, err := client.GetFileContent(ctx, req.Owner, req.Repo, f.Filename, req.CommitSHA)
		if err != nil {
			log.Printf("review %s: fetch %s failed, skipping: %v", rev.ID, f.Filename, err)
			continue
		}
		if !ok {
			log.Printf("review %s: %s has no content, skipping", rev.ID, f.Filename)
			continue
		}

		inputs = append(inputs, ai.FileInput{Name: f.Filename, Content: content})
	}

	if len(inputs) == 0 {
		s.fail(ctx, rev, "Failed to fetch PR files")
		return nil
	}

	result, err := s.analyzer.AnalyzeBatch(ctx, inputs, req.PRContext)
	if err != nil {
		return fmt.Errorf("analyze batch: %w", err)
	}

	if err := s.store.CompleteReview(ctx, rev.ID, result.FilesAnalyzed, result.QualityScore, result.Summary, result.Findings); err != nil {
		return fmt.Errorf("complete review: %w", err)
	}
	s.broadcastCompleted(rev, result.FilesAnalyzed, result.QualityScore, len(result.Findings))

	// Best-effort: the review is already terminal, so a comment
	// failure is logged and goes nowhere else.
	body := FormatComment(rev.PullRequestTitle, result)
	if err := client.CreateIssueComment(ctx, req.Owner, req.Repo, req.PullNumber, body); err != nil {
		log.Printf("review %s: post comment failed: %v", rev.ID, err)
	}

	return nil
}

func (s *Service) fail(ctx context.Context, rev *models.Review, summary string) {
	if err := s.store.FailReview(ctx, rev.ID, summary); err != nil {
		log.Printf("review %s: persist failure state: %v", rev.ID, err)
		return
	}
	s.notifier.Broadcast(rev.ReviewedBy, rev.TeamID, realtime.EventReviewUpdated, map[string]interface{}{
		"reviewId": rev.ID,
		"status":   models.StatusFailed,
		"summary":  summary,
	})
}

func (s *Service) broadcastCompleted(rev *models.Review, filesAnalyzed, qualityScore, issuesFound int) {
	s.notifier.Broadcast(rev.ReviewedBy, rev.TeamID, realtime.EventReviewCompleted, map[string]interface{}{
		"reviewId":      rev.ID,
		"status":        models.StatusCompleted,
		"filesAnalyzed": filesAnalyzed,
		"issuesFound":   issuesFound,
		"qualityScore":  qualityScore,
	})
}

// pause sleeps without busy-waiting and returns early on cancellation.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
