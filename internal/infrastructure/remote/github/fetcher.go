// Package github implements Component F: tarball-based ingestion of GitHub
// repositories, reusing the Sanitizer/Atomizer/Persistence pipeline per file
// (spec.md §4.F).
package github

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/tagwalker/tagwalker/internal/domain/ingest"
	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
	"github.com/tagwalker/tagwalker/internal/infrastructure/storage/minio"
	"github.com/tagwalker/tagwalker/pkg/errors"
)

// defaultExcludes are hard-excluded regardless of Config.ExcludeGlobs.
var defaultExcludes = []string{
	"node_modules/", ".git/", "dist/", "build/", "target/", "vendor/",
	".bin", ".exe", ".dll", ".so", ".dylib",
	".png", ".jpg", ".jpeg", ".gif", ".ico", ".pdf", ".zip", ".tar", ".gz",
	"package-lock.json", "yarn.lock", "Cargo.lock", "Gemfile.lock", "go.sum",
}

const minTarballBytes = 1024

// Config mirrors config.GitHubConfig with request-scoped defaults applied.
type Config struct {
	APIBaseURL      string
	Token           string
	RequestsPerHour int
	FetchTimeout    time.Duration
	MaxTarballBytes int64
	ExcludeGlobs    []string
}

func (c Config) withDefaults() Config {
	if c.APIBaseURL == "" {
		c.APIBaseURL = "https://codeload.github.com"
	}
	if c.RequestsPerHour <= 0 {
		c.RequestsPerHour = 60
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.MaxTarballBytes <= 0 {
		c.MaxTarballBytes = 256 << 20
	}
	return c
}

// IngestFunc is the seam into the ingest application service; returning the
// resulting molecule count lets SyncRepo accumulate SyncResult totals
// without depending on the application package's concrete Outcome type.
type IngestFunc func(ctx context.Context, raw []byte, sourcePath string, provenance ingest.Provenance, modTime time.Time) (moleculeCount int, err error)

// Fetcher downloads, verifies, and extracts GitHub repository tarballs,
// rate-limited and retried per spec.md §4.F, caching raw tarballs in MinIO
// by content hash so an unchanged ref never re-downloads.
type Fetcher struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	objects minio.ObjectRepository
	bucket  string
	logger  logging.Logger
}

// NewFetcher constructs a Fetcher. objects/bucket may be nil/"" to disable
// tarball caching (tests, or deployments without MinIO configured).
func NewFetcher(cfg Config, objects minio.ObjectRepository, tarballBucket string, logger logging.Logger) *Fetcher {
	cfg = cfg.withDefaults()
	// Token bucket sized to the full hourly allowance so Tokens() reports a
	// meaningful "remaining" count for GET /v1/github/rate-limit.
	limiter := rate.NewLimiter(rate.Every(time.Hour/time.Duration(cfg.RequestsPerHour)), cfg.RequestsPerHour)
	return &Fetcher{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.FetchTimeout},
		limiter: limiter,
		objects: objects,
		bucket:  tarballBucket,
		logger:  logger,
	}
}

// RateLimitStatus reports the fetcher's current rate-limit budget for
// GET /v1/github/rate-limit (spec.md §6).
type RateLimitStatus struct {
	Limit         int       `json:"limit"`
	Remaining     int       `json:"remaining"`
	ResetAt       time.Time `json:"reset_at"`
	Authenticated bool      `json:"authenticated"`
}

func (f *Fetcher) RateLimitStatus() RateLimitStatus {
	remaining := int(f.limiter.Tokens())
	if remaining > f.cfg.RequestsPerHour {
		remaining = f.cfg.RequestsPerHour
	}
	return RateLimitStatus{
		Limit:         f.cfg.RequestsPerHour,
		Remaining:     remaining,
		ResetAt:       time.Now().Add(time.Hour),
		Authenticated: f.cfg.Token != "",
	}
}

// SyncRepo implements the sync_repo contract: download the tarball for ref,
// extract it, ingest every non-excluded text file through ingestFn with
// source_path "github:{owner}/{repo}/{relpath}", then quarantine any path
// under the repo's prefix that the prior sync wrote but this one did not.
func (f *Fetcher) SyncRepo(ctx context.Context, ref RepoRef, ingestFn IngestFunc, registry ingest.SourceRegistry, molecules ingest.MoleculeRepository) (*SyncResult, error) {
	start := time.Now()

	tarball, err := f.downloadTarball(ctx, ref)
	if err != nil {
		return nil, err
	}

	if f.objects != nil && f.bucket != "" {
		key := minio.BuildTarballKey(ref.Owner+"/"+ref.Repo, ref.Branch, contentHash(tarball))
		if _, err := f.objects.Upload(ctx, &minio.UploadRequest{
			Bucket: f.bucket, ObjectKey: key, Data: tarball, ContentType: "application/gzip",
		}); err != nil {
			f.logger.Warn("tarball cache write failed", logging.String("repo", ref.String()), logging.Err(err))
		}
	}

	prefix := ref.SourcePrefix()
	var priorPaths map[string]bool
	if registry != nil {
		priorPaths = make(map[string]bool)
		if records, err := registry.ListByPrefix(ctx, prefix); err == nil {
			for _, r := range records {
				priorPaths[r.Path] = true
			}
		}
	}

	result := &SyncResult{Bytes: int64(len(tarball))}
	seen := make(map[string]bool)

	if err := f.walkTarball(tarball, func(relPath string, content []byte, modTime time.Time) error {
		if f.isExcluded(relPath) {
			return nil
		}
		if isBinary(content) {
			return nil
		}
		sourcePath := prefix + relPath
		seen[sourcePath] = true

		n, err := ingestFn(ctx, content, sourcePath, ingest.ProvenanceExternal, modTime)
		if err != nil {
			f.logger.Warn("github file ingest failed", logging.String("path", sourcePath), logging.Err(err))
			return nil
		}
		result.Files++
		result.Molecules += n

		if result.Files%10 == 0 {
			runtime.Gosched()
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if registry != nil && molecules != nil {
		for path := range priorPaths {
			if seen[path] {
				continue
			}
			if _, err := molecules.QuarantineBySourcePath(ctx, path); err != nil {
				f.logger.Warn("stale github path quarantine failed", logging.String("path", path), logging.Err(err))
				continue
			}
			result.QuarantinedPaths++
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (f *Fetcher) downloadTarball(ctx context.Context, ref RepoRef) ([]byte, error) {
	url := fmt.Sprintf("%s/%s/%s/tar.gz/refs/heads/%s", f.cfg.APIBaseURL, ref.Owner, ref.Repo, ref.Branch)

	var body []byte
	op := func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		reqCtx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		if f.cfg.Token != "" {
			req.Header.Set("Authorization", "Bearer "+f.cfg.Token)
		}

		resp, err := f.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(errors.New(errors.CodeRefNotFound, "repository or branch not found: "+ref.String()))
		}
		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
			return backoff.Permanent(errors.New(errors.CodeRateLimited, "github rate limit exceeded"))
		}
		if resp.StatusCode != http.StatusOK {
			return errors.New(errors.CodeFetchError, fmt.Sprintf("unexpected status %d fetching %s", resp.StatusCode, url))
		}
		if ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); ct == "application/json" {
			return backoff.Permanent(errors.New(errors.CodeFetchError, "github returned a json error body instead of a tarball"))
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxTarballBytes+1))
		if err != nil {
			return err
		}
		if int64(len(data)) > f.cfg.MaxTarballBytes {
			return backoff.Permanent(errors.New(errors.CodeFetchError, "tarball exceeds configured size limit"))
		}
		if len(data) < minTarballBytes {
			return backoff.Permanent(errors.New(errors.CodeFetchError, "tarball payload smaller than minimum plausible size"))
		}
		body = data
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 1 * time.Second
	policy.Multiplier = 2
	policy.MaxElapsedTime = 0
	bounded := backoff.WithMaxRetries(policy, 3)

	if err := backoff.Retry(op, backoff.WithContext(bounded, ctx)); err != nil {
		return nil, errors.Wrap(err, errors.CodeFetchError, "failed to download tarball for "+ref.String())
	}
	return body, nil
}

func (f *Fetcher) walkTarball(tarball []byte, visit func(relPath string, content []byte, modTime time.Time) error) error {
	gz, err := gzip.NewReader(bytes.NewReader(tarball))
	if err != nil {
		return errors.Wrap(err, errors.CodeFetchError, "tarball is not valid gzip")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, errors.CodeFetchError, "corrupt tar entry")
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		// GitHub tarballs nest everything under "{owner}-{repo}-{sha}/".
		relPath := hdr.Name
		if i := strings.IndexByte(relPath, '/'); i >= 0 {
			relPath = relPath[i+1:]
		}
		if relPath == "" {
			continue
		}

		content, err := io.ReadAll(tr)
		if err != nil {
			return errors.Wrap(err, errors.CodeFetchError, "failed reading tar entry "+hdr.Name)
		}
		if err := visit(relPath, content, hdr.ModTime); err != nil {
			return err
		}
	}
}

func (f *Fetcher) isExcluded(relPath string) bool {
	return matchesAny(relPath, defaultExcludes) || matchesAny(relPath, f.cfg.ExcludeGlobs)
}

func matchesAny(relPath string, patterns []string) bool {
	lower := strings.ToLower(relPath)
	base := strings.ToLower(filepath.Base(relPath))
	for _, p := range patterns {
		p = strings.ToLower(p)
		if strings.HasSuffix(p, "/") {
			if strings.Contains(lower, p) {
				return true
			}
			continue
		}
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
		if strings.HasSuffix(lower, p) {
			return true
		}
	}
	return false
}

// isBinary reports whether the first 8 KB of content contains a null byte
// (spec.md §4.F's binary-file heuristic).
func isBinary(content []byte) bool {
	probe := content
	if len(probe) > 8192 {
		probe = probe[:8192]
	}
	for _, b := range probe {
		if b == 0 {
			return true
		}
	}
	return false
}

func contentHash(data []byte) string {
	return fmt.Sprintf("%x", simpleFNV(data))
}

// simpleFNV is a small non-cryptographic content hash used only to key the
// tarball cache; collision cost is a redundant re-upload, not a correctness
// issue.
func simpleFNV(data []byte) uint64 {
	var h uint64 = 1469598103934665603
	for _, b := range data {
		h ^= uint64(b)
		h *= 1099511628211
	}
	return h
}
