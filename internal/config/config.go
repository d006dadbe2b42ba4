// Package config defines all configuration structures for the tagwalker
// platform.  No I/O or parsing logic lives here — only plain data types and
// validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// Neo4jConfig holds Neo4j / knowledge-graph connection parameters. The graph
// stores Atom and Edge relations that the retrieval engine's neighbor-walk
// phase traverses.
type Neo4jConfig struct {
	URI                   string        `mapstructure:"uri"`
	User                  string        `mapstructure:"user"`
	Password              string        `mapstructure:"password"`
	MaxConnectionPoolSize int           `mapstructure:"max_connection_pool_size"`
	ConnectionTimeout     time.Duration `mapstructure:"connection_timeout"`
	Database              string        `mapstructure:"database"`
}

// RedisConfig holds Redis connection parameters. Redis backs both the
// retrieval result cache and the distributed lock used to serialize
// quarantine-then-replace re-ingestion across watcher instances.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Apache Kafka producer/consumer parameters. Ingestion and
// mirror-projection events flow through these topics.
type KafkaConfig struct {
	Brokers           []string `mapstructure:"brokers"`
	GroupID           string   `mapstructure:"group_id"`
	AutoOffsetReset   string   `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	TimeoutMS         int      `mapstructure:"timeout_ms"`
	ProducerRetries   int      `mapstructure:"producer_retries"`
	BatchSize         int      `mapstructure:"batch_size"`
	AutoCreateTopics  bool     `mapstructure:"auto_create_topics"`
	ReplicationFactor int      `mapstructure:"replication_factor"`
	NumPartitions     int      `mapstructure:"num_partitions"`
}

// OpenSearchConfig holds OpenSearch cluster connection parameters. The
// anchor phase of retrieval issues BM25 full-text queries against molecule
// content indexed here.
type OpenSearchConfig struct {
	Addresses          []string `mapstructure:"addresses"`
	User               string   `mapstructure:"user"`
	Password           string   `mapstructure:"password"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify"`
	BulkBatchSize      int      `mapstructure:"bulk_batch_size"`
	ScrollSize         int      `mapstructure:"scroll_size"`
	IndexPrefix        string   `mapstructure:"index_prefix"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters. The
// remote fetcher stages downloaded GitHub tarballs here, content-addressed by
// their hash, so a re-fetch of an unchanged ref never hits the network.
type MinIOConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Bucket        string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// WatcherConfig holds filesystem-watch debounce and provenance parameters.
type WatcherConfig struct {
	Roots             []string      `mapstructure:"roots"`
	DebounceInterval  time.Duration `mapstructure:"debounce_interval"`
	QuarantineOnSync  bool          `mapstructure:"quarantine_on_resync"`
	InboxDir          string        `mapstructure:"inbox_dir"`
	ExternalDir       string        `mapstructure:"external_dir"`
	MaxPendingEvents  int           `mapstructure:"max_pending_events"`
}

// IngestConfig holds sanitizer/atomizer tunables shared by the watcher,
// remote fetcher, and CLI ingestion paths.
type IngestConfig struct {
	MaxCompoundSizeBytes int64         `mapstructure:"max_compound_size_bytes"`
	MinMoleculeRunes     int           `mapstructure:"min_molecule_runes"`
	SimHashThreshold     int           `mapstructure:"simhash_threshold"`
	UpsertBatchSize      int           `mapstructure:"upsert_batch_size"`
	VerifyReadAfterWrite bool          `mapstructure:"verify_read_after_write"`
	BackoffBaseInterval  time.Duration `mapstructure:"backoff_base_interval"`
	BackoffMaxRetries    int           `mapstructure:"backoff_max_retries"`
}

// RetrievalConfig holds Tag-Walker ranking parameters.
type RetrievalConfig struct {
	AnchorBudgetFraction float64       `mapstructure:"anchor_budget_fraction"` // 0.70
	BM25K1               float64       `mapstructure:"bm25_k1"`
	BM25B                float64       `mapstructure:"bm25_b"`
	TagMatchBoost        float64       `mapstructure:"tag_match_boost"`
	MaxNeighborHops      int           `mapstructure:"max_neighbor_hops"`
	DefaultBudget        int           `mapstructure:"default_budget"`
	CacheTTL             time.Duration `mapstructure:"cache_ttl"`
	QueryTimeout         time.Duration `mapstructure:"query_timeout"`
}

// GitHubConfig holds the remote fetcher's GitHub tarball-ingestion
// parameters.
type GitHubConfig struct {
	APIBaseURL         string        `mapstructure:"api_base_url"`
	Token              string        `mapstructure:"token"` // empty => unauthenticated, 60 req/h
	RequestsPerHour    int           `mapstructure:"requests_per_hour"`
	FetchTimeout       time.Duration `mapstructure:"fetch_timeout"`
	MaxTarballBytes    int64         `mapstructure:"max_tarball_bytes"`
	ExcludeGlobs       []string      `mapstructure:"exclude_globs"`
}

// MirrorConfig holds the one-way filesystem mirror-projector parameters.
type MirrorConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	OutputDir     string        `mapstructure:"output_dir"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string `mapstructure:"format"` // "json" | "text"
	Output           string `mapstructure:"output"`
	EnableCaller     bool   `mapstructure:"enable_caller"`
	EnableStacktrace bool   `mapstructure:"enable_stacktrace"`
	SamplingRate     int    `mapstructure:"sampling_rate"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure for the entire platform.
// Every infrastructure component and application service reads its settings
// from the relevant sub-struct.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Neo4j      Neo4jConfig      `mapstructure:"neo4j"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Watcher    WatcherConfig    `mapstructure:"watcher"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	GitHub     GitHubConfig     `mapstructure:"github"`
	Mirror     MirrorConfig     `mapstructure:"mirror"`
	Log        LogConfig        `mapstructure:"log"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	// Database
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be ≥ 1, got %d", c.Database.MaxConns)
	}

	// Redis
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
	}

	// Kafka
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("config: kafka.group_id is required")
	}

	// Watcher
	if len(c.Watcher.Roots) == 0 {
		return fmt.Errorf("config: watcher.roots must contain at least one path")
	}
	if c.Watcher.DebounceInterval <= 0 {
		return fmt.Errorf("config: watcher.debounce_interval must be > 0")
	}

	// Ingest
	if c.Ingest.UpsertBatchSize < 1 {
		return fmt.Errorf("config: ingest.upsert_batch_size must be ≥ 1, got %d", c.Ingest.UpsertBatchSize)
	}
	if c.Ingest.BackoffMaxRetries < 0 {
		return fmt.Errorf("config: ingest.backoff_max_retries must be ≥ 0")
	}

	// Retrieval
	if c.Retrieval.AnchorBudgetFraction < 0 || c.Retrieval.AnchorBudgetFraction > 1 {
		return fmt.Errorf("config: retrieval.anchor_budget_fraction must be in [0, 1]")
	}
	if c.Retrieval.DefaultBudget < 1 {
		return fmt.Errorf("config: retrieval.default_budget must be ≥ 1, got %d", c.Retrieval.DefaultBudget)
	}

	// GitHub
	if c.GitHub.RequestsPerHour < 1 {
		return fmt.Errorf("config: github.requests_per_hour must be ≥ 1, got %d", c.GitHub.RequestsPerHour)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|text", c.Log.Format)
	}

	return nil
}
