package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
	"github.com/tagwalker/tagwalker/internal/infrastructure/remote/github"
	commontypes "github.com/tagwalker/tagwalker/pkg/types/common"

	"github.com/tagwalker/tagwalker/pkg/errors"
)

type postgresGitHubRepoStore struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewGitHubRepoStore adapts github.RepoStore onto the github_repos table.
func NewGitHubRepoStore(pool *pgxpool.Pool, logger logging.Logger) github.RepoStore {
	return &postgresGitHubRepoStore{pool: pool, logger: logger}
}

func (r *postgresGitHubRepoStore) Create(ctx context.Context, repo *github.Repo) error {
	if repo.ID == "" {
		repo.ID = string(commontypes.NewID())
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO github_repos (id, url, owner, repo, branch, bucket, status, total_files)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, repo.ID, repo.URL, repo.Owner, repo.Name, repo.Branch, repo.Bucket, string(repo.Status), repo.TotalFiles)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to create github repo record")
	}
	return nil
}

func (r *postgresGitHubRepoStore) Get(ctx context.Context, id string) (*github.Repo, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, url, owner, repo, branch, bucket, status, total_files, last_error, last_synced_at, created_at, updated_at
		FROM github_repos WHERE id = $1
	`, id)
	return scanGitHubRepo(row)
}

func (r *postgresGitHubRepoStore) List(ctx context.Context) ([]*github.Repo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, url, owner, repo, branch, bucket, status, total_files, last_error, last_synced_at, created_at, updated_at
		FROM github_repos ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to list github repos")
	}
	defer rows.Close()

	var out []*github.Repo
	for rows.Next() {
		repo, err := scanGitHubRepo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, repo)
	}
	return out, rows.Err()
}

func (r *postgresGitHubRepoStore) UpdateStatus(ctx context.Context, id string, status github.RepoStatus, totalFiles int, lastErr string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE github_repos
		SET status = $2, total_files = $3, last_error = $4, last_synced_at = now(), updated_at = now()
		WHERE id = $1
	`, id, string(status), totalFiles, nullString(lastErr))
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to update github repo status")
	}
	return nil
}

func (r *postgresGitHubRepoStore) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM github_repos WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to delete github repo record")
	}
	return nil
}

func scanGitHubRepo(row rowScanner) (*github.Repo, error) {
	var (
		repo         github.Repo
		status       string
		lastError    *string
		lastSyncedAt *time.Time
	)
	if err := row.Scan(&repo.ID, &repo.URL, &repo.Owner, &repo.Name, &repo.Branch, &repo.Bucket,
		&status, &repo.TotalFiles, &lastError, &lastSyncedAt, &repo.CreatedAt, &repo.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.New(errors.CodeNotFound, "github repo record not found")
		}
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to scan github repo record")
	}
	repo.Status = github.RepoStatus(status)
	if lastError != nil {
		repo.LastError = *lastError
	}
	repo.LastSyncedAt = lastSyncedAt
	return &repo, nil
}
