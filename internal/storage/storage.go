package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"prsentinel/internal/models"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a status update is not
	// permitted by the review state machine (including any write to a
	// terminal review).
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store is the Postgres-backed review record store.
type Store struct {
	db *sqlx.DB
}

// Open connects to Postgres and verifies the connection.
func Open(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the raw handle for migrations.
func (s *Store) DB() *sql.DB {
	return s.db.DB
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Repositories

func (s *Store) CreateRepository(ctx context.Context, r *models.Repository) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repositories (id, github_repo_id, full_name, default_branch, access_token, connected_by, team_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.GitHubRepoID, r.FullName, r.DefaultBranch, r.AccessToken, r.ConnectedBy, r.TeamID, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert repository: %w", err)
	}
	return nil
}

func (s *Store) GetRepository(ctx context.Context, id string) (*models.Repository, error) {
	var r models.Repository
	err := s.db.GetContext(ctx, &r, `
		SELECT id, github_repo_id, full_name, default_branch, access_token, connected_by, team_id, created_at
		FROM repositories WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get repository: %w", err)
	}
	return &r, nil
}

func (s *Store) GetRepositoryByGitHubID(ctx context.Context, githubRepoID int64) (*models.Repository, error) {
	var r models.Repository
	err := s.db.GetContext(ctx, &r, `
		SELECT id, github_repo_id, full_name, default_branch, access_token, connected_by, team_id, created_at
		FROM repositories WHERE github_repo_id = $1`, githubRepoID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get repository by github id: %w", err)
	}
	return &r, nil
}

// Reviews
//
// Status transitions are enforced in the WHERE clauses below, so the
// forward-only state machine holds even with concurrent writers: a
// review that already reached completed or failed matches no guard and
// the write reports ErrInvalidTransition.

func (s *Store) CreateReview(ctx context.Context, r *models.Review) error {
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if r.Status == "" {
		r.Status = models.StatusPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reviews (id, repository_id, pull_request_number, pull_request_title, pull_request_url,
			author, status, files_analyzed, findings, summary, quality_score, reviewed_by, team_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		r.ID, r.RepositoryID, r.PullRequestNumber, r.PullRequestTitle, r.PullRequestURL,
		r.Author, r.Status, r.FilesAnalyzed, r.Findings, r.Summary, r.QualityScore, r.ReviewedBy, r.TeamID, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func (s *Store) GetReview(ctx context.Context, id string) (*models.Review, error) {
	var r models.Review
	err := s.db.GetContext(ctx, &r, `
		SELECT id, repository_id, pull_request_number, pull_request_title, pull_request_url,
			author, status, files_analyzed, findings, summary, quality_score, reviewed_by, team_id, created_at, updated_at
		FROM reviews WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return &r, nil
}

// MarkInProgress moves a pending review to in_progress.
func (s *Store) MarkInProgress(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reviews SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3`,
		models.StatusInProgress, id, models.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark review in progress: %w", err)
	}
	return checkTransition(res)
}

// CompleteReview moves a pending or in_progress review to completed
// and persists the analysis results. issues_found is not stored; it is
// derived from the findings on read.
func (s *Store) CompleteReview(ctx context.Context, id string, filesAnalyzed, qualityScore int, summary string, findings models.FindingList) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reviews
		SET status = $1, files_analyzed = $2, quality_score = $3, summary = $4, findings = $5, updated_at = now()
		WHERE id = $6 AND status IN ($7, $8)`,
		models.StatusCompleted, filesAnalyzed, qualityScore, summary, findings,
		id, models.StatusPending, models.StatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("complete review: %w", err)
	}
	return checkTransition(res)
}

// FailReview moves a pending or in_progress review to failed with an
// explanatory summary.
func (s *Store) FailReview(ctx context.Context, id, summary string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reviews SET status = $1, summary = $2, updated_at = now()
		WHERE id = $3 AND status IN ($4, $5)`,
		models.StatusFailed, summary, id, models.StatusPending, models.StatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("fail review: %w", err)
	}
	return checkTransition(res)
}

func (s *Store) ListReviewsByTeam(ctx context.Context, teamID string) ([]models.Review, error) {
	var reviews []models.Review
	err := s.db.SelectContext(ctx, &reviews, `
		SELECT id, repository_id, pull_request_number, pull_request_title, pull_request_url,
			author, status, files_analyzed, findings, summary, quality_score, reviewed_by, team_id, created_at, updated_at
		FROM reviews WHERE team_id = $1
		ORDER BY created_at DESC`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

func checkTransition(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}
