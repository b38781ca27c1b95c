package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ReviewStatus is the lifecycle state of a Review.
type ReviewStatus string

const (
	StatusPending    ReviewStatus = "pending"
	StatusInProgress ReviewStatus = "in_progress"
	StatusCompleted  ReviewStatus = "completed"
	StatusFailed     ReviewStatus = "failed"
)

// Terminal reports whether no further pipeline-driven mutation may occur.
func (s ReviewStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether the state machine permits moving to next.
// Valid paths: pending -> in_progress -> completed|failed, and the two fast
// paths pending -> completed and pending -> failed.
func (s ReviewStatus) CanTransitionTo(next ReviewStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusCompleted || next == StatusFailed
	case StatusInProgress:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Severity classifies how serious a finding is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Category classifies what kind of problem a finding describes.
type Category string

const (
	CategoryBug          Category = "bug"
	CategorySecurity     Category = "security"
	CategoryPerformance  Category = "performance"
	CategoryStyle        Category = "style"
	CategoryBestPractice Category = "best-practice"
)

// Finding is one issue reported by the AI for one file/line. It has no
// identity of its own and lives embedded in its Review.
type Finding struct {
	File        string   `json:"file"`
	Line        int      `json:"line"`
	Severity    Severity `json:"severity"`
	Category    Category `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion,omitempty"`
	CodeSnippet string   `json:"codeSnippet,omitempty"`
}

// FindingList is stored as a single JSONB column.
type FindingList []Finding

// Value implements driver.Valuer.
func (f FindingList) Value() (driver.Value, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(f)
}

// Scan implements sql.Scanner.
func (f *FindingList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*f = nil
		return nil
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	default:
		return fmt.Errorf("unsupported findings column type %T", src)
	}
}

// Review records one AI analysis pass over one pull request's changed files.
type Review struct {
	ID                string       `db:"id" json:"id"`
	RepositoryID      string       `db:"repository_id" json:"repositoryId"`
	PullRequestNumber int          `db:"pull_request_number" json:"pullRequestNumber"`
	PullRequestTitle  string       `db:"pull_request_title" json:"pullRequestTitle"`
	PullRequestURL    string       `db:"pull_request_url" json:"pullRequestUrl"`
	Author            string       `db:"author" json:"author"`
	Status            ReviewStatus `db:"status" json:"status"`
	FilesAnalyzed     int          `db:"files_analyzed" json:"filesAnalyzed"`
	Findings          FindingList  `db:"findings" json:"findings"`
	Summary           string       `db:"summary" json:"summary"`
	QualityScore      *int         `db:"quality_score" json:"qualityScore,omitempty"`
	ReviewedBy        string       `db:"reviewed_by" json:"reviewedBy"`
	TeamID            string       `db:"team_id" json:"teamId,omitempty"`
	CreatedAt         time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updatedAt"`
}

// IssuesFound is derived from the findings so the two can never drift.
func (r *Review) IssuesFound() int {
	return len(r.Findings)
}

// MarshalJSON includes the derived issuesFound count in API payloads.
func (r Review) MarshalJSON() ([]byte, error) {
	type alias Review
	return json.Marshal(struct {
		alias
		IssuesFound int `json:"issuesFound"`
	}{alias(r), r.IssuesFound()})
}

// Repository is a connected GitHub repository. The pipeline reads it to
// resolve the access token and notification scope; it never writes it.
type Repository struct {
	ID            string    `db:"id" json:"id"`
	GitHubRepoID  int64     `db:"github_repo_id" json:"githubRepoId"`
	FullName      string    `db:"full_name" json:"fullName"`
	DefaultBranch string    `db:"default_branch" json:"defaultBranch"`
	AccessToken   string    `db:"access_token" json:"-"`
	ConnectedBy   string    `db:"connected_by" json:"connectedBy"`
	TeamID        string    `db:"team_id" json:"teamId,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}
