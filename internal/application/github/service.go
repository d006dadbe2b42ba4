// Package github orchestrates Component F for the HTTP and CLI interfaces:
// registering tracked repositories, running sync_repo through the ingest
// application service, and reporting rate-limit/repo status.
package github

import (
	"context"
	"time"

	appingest "github.com/tagwalker/tagwalker/internal/application/ingest"
	"github.com/tagwalker/tagwalker/internal/domain/ingest"
	infragithub "github.com/tagwalker/tagwalker/internal/infrastructure/remote/github"
	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
	"github.com/tagwalker/tagwalker/pkg/errors"
)

// Service wires the remote fetcher to the tracked-repo store and the ingest
// application service, implementing the POST/GET/DELETE /v1/github/repos
// and GET /v1/github/rate-limit contracts from spec.md §6.
type Service struct {
	fetcher   *infragithub.Fetcher
	store     infragithub.RepoStore
	ingest    *appingest.Service
	registry  ingest.SourceRegistry
	molecules ingest.MoleculeRepository
	logger    logging.Logger
}

func New(
	fetcher *infragithub.Fetcher,
	store infragithub.RepoStore,
	ingestSvc *appingest.Service,
	registry ingest.SourceRegistry,
	molecules ingest.MoleculeRepository,
	logger logging.Logger,
) *Service {
	return &Service{
		fetcher:   fetcher,
		store:     store,
		ingest:    ingestSvc,
		registry:  registry,
		molecules: molecules,
		logger:    logger,
	}
}

// RegisterRepo parses url, records a pending tracked-repo row, and kicks off
// an asynchronous first sync (POST /v1/github/repos).
func (s *Service) RegisterRepo(ctx context.Context, url, bucket string) (*infragithub.Repo, error) {
	ref, err := infragithub.ParseRepoURL(url)
	if err != nil {
		return nil, err
	}

	repo := &infragithub.Repo{
		URL:    url,
		Owner:  ref.Owner,
		Name:   ref.Repo,
		Branch: ref.Branch,
		Bucket: bucket,
		Status: infragithub.StatusPending,
	}
	if err := s.store.Create(ctx, repo); err != nil {
		return nil, err
	}

	go s.runSync(context.Background(), repo.ID)

	return repo, nil
}

// ListRepos returns every tracked repository (GET /v1/github/repos).
func (s *Service) ListRepos(ctx context.Context) ([]*infragithub.Repo, error) {
	return s.store.List(ctx)
}

// SyncRepo triggers a synchronous re-sync of an already-tracked repository
// (POST /v1/github/repos/:id/sync); the caller sees "syncing" immediately,
// the sync itself runs in the background.
func (s *Service) SyncRepo(ctx context.Context, id string) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}
	go s.runSync(context.Background(), id)
	return nil
}

func (s *Service) runSync(ctx context.Context, id string) {
	repo, err := s.store.Get(ctx, id)
	if err != nil {
		return
	}

	if err := s.store.UpdateStatus(ctx, id, infragithub.StatusIngesting, repo.TotalFiles, ""); err != nil {
		s.logger.Warn("failed to mark repo ingesting", logging.String("repo_id", id), logging.Err(err))
	}

	ref := infragithub.RepoRef{Owner: repo.Owner, Repo: repo.Name, Branch: repo.Branch}
	ingestFn := func(ctx context.Context, raw []byte, sourcePath string, provenance ingest.Provenance, modTime time.Time) (int, error) {
		outcome, err := s.ingest.IngestFile(ctx, raw, sourcePath, provenance, modTime)
		if err != nil {
			return 0, err
		}
		return outcome.MoleculeCount, nil
	}

	result, err := s.fetcher.SyncRepo(ctx, ref, ingestFn, s.registry, s.molecules)
	if err != nil {
		s.logger.Error("github sync failed", logging.String("repo_id", id), logging.Err(err))
		_ = s.store.UpdateStatus(ctx, id, infragithub.StatusFailed, 0, err.Error())
		return
	}

	if err := s.store.UpdateStatus(ctx, id, infragithub.StatusSynced, result.Files, ""); err != nil {
		s.logger.Warn("failed to mark repo synced", logging.String("repo_id", id), logging.Err(err))
	}
}

// DeleteRepo quarantines every molecule ingested from the repo and removes
// its tracked-repo record (DELETE /v1/github/repos/:id).
func (s *Service) DeleteRepo(ctx context.Context, id string) (int, error) {
	repo, err := s.store.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	ref := infragithub.RepoRef{Owner: repo.Owner, Repo: repo.Name, Branch: repo.Branch}
	records, err := s.registry.ListByPrefix(ctx, ref.SourcePrefix())
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "failed to list tracked source records")
	}

	quarantined := 0
	for _, record := range records {
		n, err := s.molecules.QuarantineBySourcePath(ctx, record.Path)
		if err != nil {
			return quarantined, err
		}
		quarantined += n
		_ = s.registry.Delete(ctx, record.Path)
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return quarantined, err
	}
	return quarantined, nil
}

// RateLimit reports the fetcher's current GitHub API budget
// (GET /v1/github/rate-limit).
func (s *Service) RateLimit() infragithub.RateLimitStatus {
	return s.fetcher.RateLimitStatus()
}
