package github

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tagwalker/tagwalker/pkg/errors"
)

// RepoRef identifies a GitHub repository and the ref to fetch.
type RepoRef struct {
	Owner  string
	Repo   string
	Branch string
}

var repoURLPattern = regexp.MustCompile(`^https?://github\.com/([^/]+)/([^/]+?)(?:\.git)?(?:/tree/([^/]+).*)?/?$`)

// ParseRepoURL parses a GitHub repository URL into its owner/repo/branch
// components, defaulting branch to "main" and accepting the
// ".../tree/{branch}/..." form (spec.md §4.F).
func ParseRepoURL(raw string) (RepoRef, error) {
	m := repoURLPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return RepoRef{}, errors.New(errors.CodeInvalidParam, "not a recognizable github repository url: "+raw)
	}
	branch := m[3]
	if branch == "" {
		branch = "main"
	}
	return RepoRef{Owner: m[1], Repo: m[2], Branch: branch}, nil
}

// String renders the ref back into "owner/repo@branch" form, used as the
// registry prefix key and log field.
func (r RepoRef) String() string {
	return fmt.Sprintf("%s/%s@%s", r.Owner, r.Repo, r.Branch)
}

// SourcePrefix is the source_path prefix every file ingested from this repo
// carries, and the prefix used to quarantine a prior sync generation.
func (r RepoRef) SourcePrefix() string {
	return fmt.Sprintf("github:%s/%s/", r.Owner, r.Repo)
}

// RepoStatus tracks a tracked repository's last sync outcome.
type RepoStatus string

const (
	StatusPending   RepoStatus = "pending"
	StatusIngesting RepoStatus = "ingesting"
	StatusSynced    RepoStatus = "synced"
	StatusFailed    RepoStatus = "failed"
)

// Repo is a tracked GitHub source, one row per repository registered via
// POST /v1/github/repos.
type Repo struct {
	ID           string
	URL          string
	Owner        string
	Name         string
	Branch       string
	Bucket       string
	Status       RepoStatus
	TotalFiles   int
	LastError    string
	LastSyncedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RepoStore persists tracked-repository bookkeeping (the github_repos
// table); it is separate from the core domain repositories because a
// tracked repo is remote-fetcher metadata, not one of spec.md §3's entities.
type RepoStore interface {
	Create(ctx context.Context, repo *Repo) error
	Get(ctx context.Context, id string) (*Repo, error)
	List(ctx context.Context) ([]*Repo, error)
	UpdateStatus(ctx context.Context, id string, status RepoStatus, totalFiles int, lastErr string) error
	Delete(ctx context.Context, id string) error
}

// SyncResult summarizes a single sync_repo run (spec.md §4.F contract).
type SyncResult struct {
	Files         int
	Atoms         int
	Molecules     int
	Bytes         int64
	Duration      time.Duration
	QuarantinedPaths int
}
