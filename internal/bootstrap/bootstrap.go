// Package bootstrap assembles the platform's infrastructure and application
// services from a parsed config.Config, so that cmd/keyip and cmd/watcher
// share one composition root instead of duplicating pool/client/service
// wiring in both entry points.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	appgithub "github.com/tagwalker/tagwalker/internal/application/github"
	appingest "github.com/tagwalker/tagwalker/internal/application/ingest"
	appretrieval "github.com/tagwalker/tagwalker/internal/application/retrieval"
	"github.com/tagwalker/tagwalker/internal/config"
	"github.com/tagwalker/tagwalker/internal/domain/ingest"
	"github.com/tagwalker/tagwalker/internal/domain/ingest/atomize"
	"github.com/tagwalker/tagwalker/internal/domain/ingest/sanitize"
	"github.com/tagwalker/tagwalker/internal/domain/retrieval"
	"github.com/tagwalker/tagwalker/internal/infrastructure/database/postgres"
	"github.com/tagwalker/tagwalker/internal/infrastructure/database/postgres/repositories"
	"github.com/tagwalker/tagwalker/internal/infrastructure/database/redis"
	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
	infragithub "github.com/tagwalker/tagwalker/internal/infrastructure/remote/github"
	"github.com/tagwalker/tagwalker/internal/infrastructure/search/opensearch"
	"github.com/tagwalker/tagwalker/internal/infrastructure/storage/minio"
)

// conceptKeywords seeds the atomizer's keyword registry (spec §4.B.8). A
// fixed starter vocabulary; operators wanting a custom registry load one
// from config in a future revision.
var conceptKeywords = []string{
	"TODO", "FIXME", "deprecated", "security", "breaking change",
}

// App holds every long-lived dependency a cmd entry point needs, plus the
// application services built from them.
type App struct {
	Config    *config.Config
	Logger    logging.Logger
	Pool      *pgxpool.Pool
	MinIO     *minio.MinIOClient
	Redis     *redis.Client // nil if Redis is unreachable and caching is disabled
	Objects   minio.ObjectRepository
	Registry  ingest.SourceRegistry
	Molecules ingest.MoleculeRepository

	Ingest    *appingest.Service
	Retrieval *appretrieval.Service
	GitHub    *appgithub.Service
}

// NewLogger translates config.LogConfig (the mapstructure-tagged shape
// viper populates) into logging.LogConfig (the shape the zap-backed Logger
// constructor expects) and builds a Logger from it.
func NewLogger(cfg config.LogConfig) (logging.Logger, error) {
	outputs := []string{"stdout"}
	if cfg.Output != "" && cfg.Output != "stdout" {
		outputs = []string{cfg.Output}
	}
	return logging.NewLogger(logging.LogConfig{
		Level:       cfg.Level,
		Format:      cfg.Format,
		OutputPaths: outputs,
	})
}

// Build wires Postgres, OpenSearch, MinIO, and Redis clients and assembles
// the ingest, retrieval, and GitHub application services around them.
func Build(cfg *config.Config, logger logging.Logger) (*App, error) {
	pool, err := postgres.NewConnectionPool(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: postgres: %w", err)
	}

	compounds := repositories.NewCompoundRepository(pool, logger)
	molecules := repositories.NewMoleculeRepository(pool, logger)
	atoms := repositories.NewAtomRepository(pool, logger)
	edges := repositories.NewEdgeRepository(pool, logger)
	registry := repositories.NewSourceRegistry(pool, logger)
	githubRepos := repositories.NewGitHubRepoStore(pool, logger)

	osClient, err := opensearch.NewClient(opensearch.ClientConfig{
		Addresses:      cfg.OpenSearch.Addresses,
		Username:       cfg.OpenSearch.User,
		Password:       cfg.OpenSearch.Password,
		RequestTimeout: 30 * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: opensearch client: %w", err)
	}
	indexer := opensearch.NewIndexer(osClient, opensearch.IndexerConfig{
		BulkBatchSize: cfg.OpenSearch.BulkBatchSize,
	}, logger)
	searcher := opensearch.NewSearcher(osClient, opensearch.SearcherConfig{
		MaxScrollSize: cfg.OpenSearch.ScrollSize,
	}, logger)
	corpus := opensearch.NewCorpusReader(searcher, opensearch.MoleculeIndexName, logger)

	minioCfg := &minio.MinIOConfig{
		Endpoint:        cfg.MinIO.Endpoint,
		AccessKeyID:     cfg.MinIO.AccessKey,
		SecretAccessKey: cfg.MinIO.SecretKey,
		UseSSL:          cfg.MinIO.UseSSL,
		DefaultBucket:   cfg.MinIO.Bucket,
		PresignExpiry:   cfg.MinIO.PresignExpiry,
	}
	minioClient, err := minio.NewMinIOClient(minioCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: minio: %w", err)
	}
	objects := minio.NewObjectStorageRepository(minioClient, logger)

	atomizer := atomize.New(sanitize.New(logger), conceptKeywords, logger)
	ingestSvc := appingest.New(atomizer, compounds, molecules, atoms, edges, registry, indexer, appingest.QuarantineModeTag, logger)

	bm25 := retrieval.BM25Params{
		K1:       cfg.Retrieval.BM25K1,
		B:        cfg.Retrieval.BM25B,
		TagBoost: cfg.Retrieval.TagMatchBoost,
	}
	if bm25.K1 == 0 && bm25.B == 0 {
		bm25 = retrieval.DefaultBM25Params()
	}
	engine := retrieval.New(corpus, logger, bm25)
	retrievalSvc := appretrieval.New(engine, cfg.Retrieval.DefaultBudget)

	var cache redis.Cache
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = redis.NewClient(&redis.RedisConfig{
			Mode:         "standalone",
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: redis: %w", err)
		}
		cacheOpts := []redis.CacheOption{redis.WithDefaultTTL(cfg.Redis.DefaultTTL)}
		if cfg.Redis.KeyPrefix != "" {
			cacheOpts = append(cacheOpts, redis.WithPrefix(cfg.Redis.KeyPrefix))
		}
		cache = redis.NewRedisCache(redisClient, logger, cacheOpts...)
		ingestSvc.WithCache(cache)
		retrievalSvc.WithCache(cache, cfg.Retrieval.CacheTTL, logger)
	}

	fetcher := infragithub.NewFetcher(infragithub.Config{
		APIBaseURL:      cfg.GitHub.APIBaseURL,
		Token:           cfg.GitHub.Token,
		RequestsPerHour: cfg.GitHub.RequestsPerHour,
		FetchTimeout:    cfg.GitHub.FetchTimeout,
		MaxTarballBytes: cfg.GitHub.MaxTarballBytes,
		ExcludeGlobs:    cfg.GitHub.ExcludeGlobs,
	}, objects, cfg.MinIO.Bucket, logger)
	githubSvc := appgithub.New(fetcher, githubRepos, ingestSvc, registry, molecules, logger)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Pool:      pool,
		MinIO:     minioClient,
		Redis:     redisClient,
		Objects:   objects,
		Registry:  registry,
		Molecules: molecules,
		Ingest:    ingestSvc,
		Retrieval: retrievalSvc,
		GitHub:    githubSvc,
	}, nil
}

// Close releases every pooled connection the App holds.
func (a *App) Close(ctx context.Context) {
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.MinIO != nil {
		if err := a.MinIO.Close(); err != nil {
			a.Logger.Warn("minio client close failed", logging.Err(err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("redis client close failed", logging.Err(err))
		}
	}
}
