// Package vcs wraps the GitHub API as two narrow collaborators: the
// change-set source (PR files) and the report sink (PR reviews).
package vcs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/go-github/v47/github"
	"golang.org/x/oauth2"

	"convergence/internal/review"
)

// Review events accepted by the report sink.
const (
	EventComment        = "COMMENT"
	EventRequestChanges = "REQUEST_CHANGES"
	EventApprove        = "APPROVE"
)

// Patch text beyond this many bytes is cut and marked truncated before it
// reaches the agents.
const maxPatchBytes = 10000

// Mapped report-sink failures. The computed report stays valid even when
// posting fails with one of these.
var (
	ErrReviewForbidden = errors.New("vcs: posting review forbidden")
	ErrPRNotFound      = errors.New("vcs: pull request not found")
	ErrReviewRejected  = errors.New("vcs: review rejected by validation")
)

// skipPatterns marks files that are never worth reviewing: lockfiles,
// binaries, minified assets, VCS internals. Substring match on the
// lowercased path.
var skipPatterns = []string{
	".lock",
	".min.js",
	".min.css",
	".map",
	".png",
	".jpg",
	".jpeg",
	".gif",
	".ico",
	".svg",
	".webp",
	".woff",
	".woff2",
	".ttf",
	".eot",
	"package-lock.json",
	"yarn.lock",
	"cargo.lock",
	"poetry.lock",
	"pnpm-lock.yaml",
	"pipfile.lock",
	"go.sum",
	".pyc",
	"__pycache__",
	".git",
	".exe",
	".dll",
	".so",
	".dylib",
	".pdf",
	".zip",
	".tar",
	".gz",
}

// ShouldReviewFile reports whether a changed file is worth sending to the
// agents.
func ShouldReviewFile(path string) bool {
	lower := strings.ToLower(path)
	for _, pattern := range skipPatterns {
		if strings.Contains(lower, pattern) {
			return false
		}
	}
	return true
}

// Client is the GitHub collaborator used by the pipeline.
type Client struct {
	gh *github.Client
}

// NewClient builds a token-authenticated client. An empty token yields an
// unauthenticated client, good enough for public repos and tests.
func NewClient(ctx context.Context, token string) *Client {
	var hc *http.Client
	if strings.TrimSpace(token) != "" {
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	return &Client{gh: github.NewClient(hc)}
}

// NewFromGitHub wraps an existing go-github client (tests inject a client
// pointed at a local httptest server).
func NewFromGitHub(gh *github.Client) *Client {
	return &Client{gh: gh}
}

// GetPRContext fetches PR metadata into the session's GitHub context.
func (c *Client) GetPRContext(ctx context.Context, owner, repo string, number int) (review.GitHubContext, error) {
	pr, _, err := c.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return review.GitHubContext{}, mapError(err)
	}
	return review.GitHubContext{
		RepoOwner: owner,
		RepoName:  repo,
		PRNumber:  number,
		PRTitle:   pr.GetTitle(),
		PRURL:     pr.GetHTMLURL(),
		HeadSHA:   pr.GetHead().GetSHA(),
		Author:    pr.GetUser().GetLogin(),
	}, nil
}

// ListPRFiles fetches the change set: every reviewable changed file with
// its diff text, truncated at 10KB with a marker appended.
func (c *Client) ListPRFiles(ctx context.Context, owner, repo string, number int) ([]review.FileChange, error) {
	opt := &github.ListOptions{PerPage: 100}
	var files []review.FileChange
	for {
		page, resp, err := c.gh.PullRequests.ListFiles(ctx, owner, repo, number, opt)
		if err != nil {
			return nil, mapError(err)
		}
		for _, f := range page {
			path := f.GetFilename()
			if !ShouldReviewFile(path) {
				log.Printf("[vcs] skipping file: %s", path)
				continue
			}
			patch := f.GetPatch()
			if len(patch) > maxPatchBytes {
				patch = patch[:maxPatchBytes] + "\n... [truncated]"
			}
			files = append(files, review.FileChange{
				Path:      path,
				Status:    f.GetStatus(),
				Patch:     patch,
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	log.Printf("[vcs] fetched %d reviewable files from PR #%d", len(files), number)
	return files, nil
}

// PostReview posts the synthesized report as a PR review and returns the
// review id.
func (c *Client) PostReview(ctx context.Context, owner, repo string, number int, body, event string) (int64, error) {
	rev, _, err := c.gh.PullRequests.CreateReview(ctx, owner, repo, number, &github.PullRequestReviewRequest{
		Body:  github.String(body),
		Event: github.String(event),
	})
	if err != nil {
		return 0, mapError(err)
	}
	log.Printf("[vcs] posted review %d to PR #%d", rev.GetID(), number)
	return rev.GetID(), nil
}

// VerifyToken checks the configured token and returns the authenticated
// login.
func (c *Client) VerifyToken(ctx context.Context) (string, error) {
	user, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return "", mapError(err)
	}
	return user.GetLogin(), nil
}

func mapError(err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusForbidden, http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", ErrReviewForbidden, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrPRNotFound, err)
		case http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %v", ErrReviewRejected, err)
		}
	}
	return err
}
