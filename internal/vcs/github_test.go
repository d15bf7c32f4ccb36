package vcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-github/v47/github"
)

func TestShouldReviewFile(t *testing.T) {
	review := []string{
		"app/auth.py",
		"internal/store/store.go",
		"src/index.ts",
		"README.md",
	}
	for _, path := range review {
		if !ShouldReviewFile(path) {
			t.Fatalf("%s must be reviewable", path)
		}
	}

	skip := []string{
		"package-lock.json",
		"yarn.lock",
		"go.sum",
		"dist/app.min.js",
		"assets/logo.png",
		"fonts/icon.woff2",
		"__pycache__/mod.pyc",
		"vendor.tar.gz",
	}
	for _, path := range skip {
		if ShouldReviewFile(path) {
			t.Fatalf("%s must be skipped", path)
		}
	}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gh := github.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	gh.BaseURL = base
	return NewFromGitHub(gh)
}

func TestListPRFilesFiltersAndTruncates(t *testing.T) {
	longPatch := strings.Repeat("x", maxPatchBytes+500)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/app/pulls/7/files" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"filename": "app/auth.py", "status": "modified", "patch": "+ok", "additions": 1, "deletions": 0},
			{"filename": "assets/logo.png", "status": "added"},
			{"filename": "app/big.py", "status": "modified", "patch": longPatch, "additions": 100, "deletions": 2},
		})
	}))

	files, err := c.ListPRFiles(context.Background(), "acme", "app", 7)
	if err != nil {
		t.Fatalf("list files: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files: got=%d want=2 (binary skipped)", len(files))
	}
	if files[0].Path != "app/auth.py" || files[0].Patch != "+ok" {
		t.Fatalf("first file: %+v", files[0])
	}
	if !strings.HasSuffix(files[1].Patch, "\n... [truncated]") {
		t.Fatalf("long patch must be truncated")
	}
	if len(files[1].Patch) != maxPatchBytes+len("\n... [truncated]") {
		t.Fatalf("truncated length: got=%d", len(files[1].Patch))
	}
}

func TestGetPRContext(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/app/pulls/7" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"number": 7,
			"title": "Add login",
			"html_url": "https://github.com/acme/app/pull/7",
			"head": {"sha": "abc123"},
			"user": {"login": "dev"}
		}`)
	}))

	gh, err := c.GetPRContext(context.Background(), "acme", "app", 7)
	if err != nil {
		t.Fatalf("get context: %v", err)
	}
	if gh.PRTitle != "Add login" || gh.HeadSHA != "abc123" || gh.Author != "dev" {
		t.Fatalf("context: %+v", gh)
	}
}

func TestPostReview(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/app/pulls/7/reviews" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": 987}`)
	}))

	id, err := c.PostReview(context.Background(), "acme", "app", 7, "## review", EventRequestChanges)
	if err != nil {
		t.Fatalf("post review: %v", err)
	}
	if id != 987 {
		t.Fatalf("review id: got=%d", id)
	}
	if gotBody["event"] != "REQUEST_CHANGES" || gotBody["body"] != "## review" {
		t.Fatalf("request body: %v", gotBody)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusForbidden, ErrReviewForbidden},
		{http.StatusUnauthorized, ErrReviewForbidden},
		{http.StatusNotFound, ErrPRNotFound},
		{http.StatusUnprocessableEntity, ErrReviewRejected},
	}
	for _, tc := range cases {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			fmt.Fprint(w, `{"message": "nope"}`)
		}))
		_, err := c.PostReview(context.Background(), "acme", "app", 7, "body", EventComment)
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: got=%v want=%v", tc.status, err, tc.want)
		}
	}
}
