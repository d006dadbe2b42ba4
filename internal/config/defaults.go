// Package config provides configuration loading, defaults, and validation for
// the tagwalker platform.
package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort = 8080
	DefaultServerMode = "debug"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "tagwalker"
	DefaultDBMaxConns = 25

	DefaultRedisAddr = "localhost:6379"
	DefaultRedisDB   = 0

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "tagwalker-group"

	DefaultMinIOEndpoint = "localhost:9000"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultGitHubAPIBaseURL      = "https://api.github.com"
	DefaultGitHubRequestsPerHour = 60

	DefaultAnchorBudgetFraction = 0.70
	DefaultBM25K1               = 1.2
	DefaultBM25B                = 0.75
	DefaultTagMatchBoost        = 2.0
)

// ─────────────────────────────────────────────────────────────────────────────
// ApplyDefaults fills zero-value fields in cfg with well-known defaults.
// It must be called after unmarshalling raw config data and before Validate()
// so that optional-but-defaulted fields are never seen as missing.
// ─────────────────────────────────────────────────────────────────────────────

// ApplyDefaults fills every zero-value field in cfg with the platform default.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	// DB is an int; 0 is a valid explicit value so we cannot distinguish "not
	// set" from "set to 0".  We leave it as-is (0 is also the default).
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = 5 * time.Minute
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.PresignExpiry == 0 {
		cfg.MinIO.PresignExpiry = time.Hour
	}

	// ── Watcher ───────────────────────────────────────────────────────────────
	if cfg.Watcher.DebounceInterval == 0 {
		cfg.Watcher.DebounceInterval = 500 * time.Millisecond
	}
	if cfg.Watcher.MaxPendingEvents == 0 {
		cfg.Watcher.MaxPendingEvents = 4096
	}
	if cfg.Watcher.InboxDir == "" {
		cfg.Watcher.InboxDir = "inbox"
	}
	if cfg.Watcher.ExternalDir == "" {
		cfg.Watcher.ExternalDir = "external"
	}

	// ── Ingest ────────────────────────────────────────────────────────────────
	if cfg.Ingest.MaxCompoundSizeBytes == 0 {
		cfg.Ingest.MaxCompoundSizeBytes = 10 << 20 // 10 MiB
	}
	if cfg.Ingest.MinMoleculeRunes == 0 {
		cfg.Ingest.MinMoleculeRunes = 8
	}
	if cfg.Ingest.SimHashThreshold == 0 {
		cfg.Ingest.SimHashThreshold = 3
	}
	if cfg.Ingest.UpsertBatchSize == 0 {
		cfg.Ingest.UpsertBatchSize = 50
	}
	if cfg.Ingest.BackoffBaseInterval == 0 {
		cfg.Ingest.BackoffBaseInterval = 50 * time.Millisecond
	}
	if cfg.Ingest.BackoffMaxRetries == 0 {
		cfg.Ingest.BackoffMaxRetries = 5
	}

	// ── Retrieval ─────────────────────────────────────────────────────────────
	if cfg.Retrieval.AnchorBudgetFraction == 0 {
		cfg.Retrieval.AnchorBudgetFraction = DefaultAnchorBudgetFraction
	}
	if cfg.Retrieval.BM25K1 == 0 {
		cfg.Retrieval.BM25K1 = DefaultBM25K1
	}
	if cfg.Retrieval.BM25B == 0 {
		cfg.Retrieval.BM25B = DefaultBM25B
	}
	if cfg.Retrieval.TagMatchBoost == 0 {
		cfg.Retrieval.TagMatchBoost = DefaultTagMatchBoost
	}
	if cfg.Retrieval.MaxNeighborHops == 0 {
		cfg.Retrieval.MaxNeighborHops = 2
	}
	if cfg.Retrieval.DefaultBudget == 0 {
		cfg.Retrieval.DefaultBudget = 20
	}
	if cfg.Retrieval.CacheTTL == 0 {
		cfg.Retrieval.CacheTTL = 30 * time.Second
	}
	if cfg.Retrieval.QueryTimeout == 0 {
		cfg.Retrieval.QueryTimeout = 3 * time.Second
	}

	// ── GitHub ────────────────────────────────────────────────────────────────
	if cfg.GitHub.APIBaseURL == "" {
		cfg.GitHub.APIBaseURL = DefaultGitHubAPIBaseURL
	}
	if cfg.GitHub.RequestsPerHour == 0 {
		cfg.GitHub.RequestsPerHour = DefaultGitHubRequestsPerHour
	}
	if cfg.GitHub.FetchTimeout == 0 {
		cfg.GitHub.FetchTimeout = 30 * time.Second
	}
	if cfg.GitHub.MaxTarballBytes == 0 {
		cfg.GitHub.MaxTarballBytes = 200 << 20 // 200 MiB
	}

	// ── Mirror ────────────────────────────────────────────────────────────────
	if cfg.Mirror.OutputDir == "" {
		cfg.Mirror.OutputDir = "mirror"
	}
	if cfg.Mirror.FlushInterval == 0 {
		cfg.Mirror.FlushInterval = 2 * time.Second
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}
