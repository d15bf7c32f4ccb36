package review

import "time"

// Status is the lifecycle state of a review session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAnalyzing  Status = "analyzing"
	StatusConverging Status = "converging"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// GitHubContext identifies the pull request under review.
type GitHubContext struct {
	RepoOwner string `json:"repo_owner"`
	RepoName  string `json:"repo_name"`
	PRNumber  int    `json:"pr_number"`
	PRTitle   string `json:"pr_title"`
	PRURL     string `json:"pr_url"`
	HeadSHA   string `json:"head_sha"`
	Author    string `json:"author"`
}

// FileChange is one changed file in the pull request, with its diff text
// already filtered and truncated by the change-set source.
type FileChange struct {
	Path      string `json:"path"`
	Status    string `json:"status"`
	Patch     string `json:"patch,omitempty"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// FinalReview is the synthesized report persisted on a completed session.
type FinalReview struct {
	Summary        string    `json:"summary"`
	FindingsCount  int       `json:"findings_count"`
	CriticalCount  int       `json:"critical_count"`
	DurationMS     int64     `json:"duration_ms"`
	PostedAt       time.Time `json:"posted_at"`
	GitHubReviewID int64     `json:"github_review_id,omitempty"`
}

// Session is one run of the review pipeline over one change set. The
// session document is the single owner of run-level state; the orchestrator
// is the only writer apart from the commutative AgentsCompleted marker.
type Session struct {
	ID              string       `json:"id"`
	GitHub          GitHubContext `json:"github"`
	Files           []FileChange `json:"files"`
	Status          Status       `json:"status"`
	AgentsDispatched []string    `json:"agents_dispatched,omitempty"`
	AgentsCompleted  []string    `json:"agents_completed,omitempty"`
	FinalReview     *FinalReview `json:"final_review,omitempty"`
	Error           string       `json:"error,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
}
