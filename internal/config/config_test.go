package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newValidConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "password",
			DBName:   "db",
			MaxConns: 10,
		},
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			User:     "neo4j",
			Password: "password",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			GroupID: "group",
		},
		OpenSearch: OpenSearchConfig{
			Addresses: []string{"http://localhost:9200"},
		},
		MinIO: MinIOConfig{
			Endpoint:  "localhost:9000",
			AccessKey: "key",
			SecretKey: "secret",
			Bucket:    "bucket",
		},
		Watcher: WatcherConfig{
			Roots:            []string{"."},
			DebounceInterval: 500 * 1_000_000,
		},
		Ingest: IngestConfig{
			UpsertBatchSize: 50,
		},
		Retrieval: RetrievalConfig{
			AnchorBudgetFraction: 0.70,
			DefaultBudget:        20,
		},
		GitHub: GitHubConfig{
			RequestsPerHour: 60,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func TestConfig_Validate_ValidConfig(t *testing.T) {
	cfg := newValidConfig()
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_MissingDatabaseHost(t *testing.T) {
	cfg := newValidConfig()
	cfg.Database.Host = ""
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_InvalidLogLevel(t *testing.T) {
	cfg := newValidConfig()
	cfg.Log.Level = "invalid"
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_InvalidPort(t *testing.T) {
	cfg := newValidConfig()
	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_EmptyKafkaBrokers(t *testing.T) {
	cfg := newValidConfig()
	cfg.Kafka.Brokers = []string{}
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_EmptyWatcherRoots(t *testing.T) {
	cfg := newValidConfig()
	cfg.Watcher.Roots = nil
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_InvalidAnchorBudgetFraction(t *testing.T) {
	cfg := newValidConfig()
	cfg.Retrieval.AnchorBudgetFraction = 1.5
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_ZeroGitHubRequestsPerHour(t *testing.T) {
	cfg := newValidConfig()
	cfg.GitHub.RequestsPerHour = 0
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_MissingRedisAddr(t *testing.T) {
	cfg := newValidConfig()
	cfg.Redis.Addr = ""
	assert.Error(t, cfg.Validate())
}
