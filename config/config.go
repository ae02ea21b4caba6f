package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreDynamoDB = "dynamodb"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
	StoreNone     = "none"
)

// Seed sources.
const (
	SourceFS = "fs"
	SourceS3 = "s3"
)

// KV backends for markers, checksums and the run lease. KVStore keeps them
// in a state collection of the remote store.
const (
	KVStore  = "store"
	KVRedis  = "redis"
	KVMemory = "memory"
)

// Config holds every setting the seeder reads from flags, env and files.
type Config struct {
	Env  string
	Port string

	JWTSecret          string
	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string

	StoreBackend      string
	DDBTablePrefix    string
	DDBCreateTables   bool
	MongoURI          string
	MongoDB           string
	MongoTransactions bool

	SeedSource    string
	SeedDir       string
	SeedBucket    string
	SeedPrefix    string
	SeedExtension string

	ChecksumNamespace string
	PruneMissing      bool
	ChunkSize         int
	LookupConcurrency int
	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	RetryJitterMax    time.Duration

	KVBackend       string
	RedisURL        string
	KVPrefix        string
	StateCollection string
	LockTTL         time.Duration

	HistoryEnabled   bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	AWSRegion          string
	AWSEndpoint        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSUseSecrets      bool
	SecretsPrefix      string

	CloudWatchLogsEnabled bool
	LogGroup              string
	MetricsEnabled        bool
	MetricsNamespace      string
	SNSTopicARN           string
	KafkaBrokers          []string
	KafkaTopic            string
	SQSQueueURL           string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("port", "8090")
	v.SetDefault("rate_limit_rps", 5.0)
	v.SetDefault("rate_limit_burst", 10)

	v.SetDefault("store_backend", StoreDynamoDB)
	v.SetDefault("ddb_create_tables", false)
	v.SetDefault("mongo_db", "catalog")
	v.SetDefault("mongo_transactions", true)

	v.SetDefault("seed_source", SourceFS)
	v.SetDefault("seed_dir", "seed")
	v.SetDefault("seed_extension", "json")

	v.SetDefault("checksum_namespace", "seed.v1")
	v.SetDefault("chunk_size", 300)
	v.SetDefault("lookup_concurrency", 16)
	v.SetDefault("retry_max_attempts", 5)
	v.SetDefault("retry_initial_delay", 250*time.Millisecond)
	v.SetDefault("retry_jitter_max", 250*time.Millisecond)

	v.SetDefault("kv_backend", KVStore)
	v.SetDefault("state_collection", "seed_state")
	v.SetDefault("kv_prefix", "catalog-seeder")
	v.SetDefault("lock_ttl", 10*time.Minute)

	v.SetDefault("postgres_port", "5432")
	v.SetDefault("postgres_sslmode", "disable")

	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("secrets_prefix", "seeder")
	v.SetDefault("log_group", "/catalog/seeder")
	v.SetDefault("metrics_namespace", "CatalogSeeder")
	v.SetDefault("kafka_topic", "seed-runs")
}

// NewViper returns a viper instance with defaults and env binding.
// A config file is read when configFile is set.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	return v, nil
}

// LoadEnvFiles loads .env and .env.local when present.
func LoadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// FromViper builds a Config from v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Env:            v.GetString("env"),
		Port:           v.GetString("port"),
		JWTSecret:      v.GetString("jwt_secret"),
		RateLimitRPS:   v.GetFloat64("rate_limit_rps"),
		RateLimitBurst: v.GetInt("rate_limit_burst"),

		CORSAllowedOrigins: splitList(v.GetString("cors_allowed_origins")),

		StoreBackend:      strings.ToLower(v.GetString("store_backend")),
		DDBTablePrefix:    v.GetString("ddb_table_prefix"),
		DDBCreateTables:   v.GetBool("ddb_create_tables"),
		MongoURI:          v.GetString("mongo_uri"),
		MongoDB:           v.GetString("mongo_db"),
		MongoTransactions: v.GetBool("mongo_transactions"),

		SeedSource:    strings.ToLower(v.GetString("seed_source")),
		SeedDir:       v.GetString("seed_dir"),
		SeedBucket:    v.GetString("seed_bucket"),
		SeedPrefix:    v.GetString("seed_prefix"),
		SeedExtension: v.GetString("seed_extension"),

		ChecksumNamespace: v.GetString("checksum_namespace"),
		PruneMissing:      v.GetBool("prune_missing"),
		ChunkSize:         v.GetInt("chunk_size"),
		LookupConcurrency: v.GetInt("lookup_concurrency"),
		RetryMaxAttempts:  v.GetInt("retry_max_attempts"),
		RetryInitialDelay: v.GetDuration("retry_initial_delay"),
		RetryJitterMax:    v.GetDuration("retry_jitter_max"),

		KVBackend:       strings.ToLower(v.GetString("kv_backend")),
		RedisURL:        v.GetString("redis_url"),
		KVPrefix:        v.GetString("kv_prefix"),
		StateCollection: v.GetString("state_collection"),
		LockTTL:         v.GetDuration("lock_ttl"),

		HistoryEnabled:   v.GetBool("history_enabled"),
		PostgresHost:     v.GetString("postgres_host"),
		PostgresPort:     v.GetString("postgres_port"),
		PostgresUser:     v.GetString("postgres_user"),
		PostgresPassword: v.GetString("postgres_password"),
		PostgresDB:       v.GetString("postgres_db"),
		PostgresSSLMode:  v.GetString("postgres_sslmode"),

		AWSRegion:          v.GetString("aws_region"),
		AWSEndpoint:        v.GetString("aws_endpoint"),
		AWSAccessKeyID:     v.GetString("aws_access_key_id"),
		AWSSecretAccessKey: v.GetString("aws_secret_access_key"),
		AWSUseSecrets:      v.GetBool("aws_use_secrets"),
		SecretsPrefix:      v.GetString("secrets_prefix"),

		CloudWatchLogsEnabled: v.GetBool("cloudwatch_logs_enabled"),
		LogGroup:              v.GetString("log_group"),
		MetricsEnabled:        v.GetBool("metrics_enabled"),
		MetricsNamespace:      v.GetString("metrics_namespace"),
		SNSTopicARN:           v.GetString("sns_topic_arn"),
		KafkaBrokers:          splitList(v.GetString("kafka_brokers")),
		KafkaTopic:            v.GetString("kafka_topic"),
		SQSQueueURL:           v.GetString("sqs_queue_url"),
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreDynamoDB, StoreMemory, StoreNone:
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for the mongo store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.SeedSource {
	case SourceFS:
		if c.SeedDir == "" {
			return fmt.Errorf("SEED_DIR is required for the fs source")
		}
	case SourceS3:
		if c.SeedBucket == "" {
			return fmt.Errorf("SEED_BUCKET is required for the s3 source")
		}
	default:
		return fmt.Errorf("unknown SEED_SOURCE %q", c.SeedSource)
	}

	switch c.KVBackend {
	case KVStore:
	case KVMemory:
		if c.StoreBackend == StoreDynamoDB || c.StoreBackend == StoreMongo {
			return fmt.Errorf("KV_BACKEND=memory would forget run markers and checksums between runs against %s; use %q or %q",
				c.StoreBackend, KVStore, KVRedis)
		}
	case KVRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis kv backend")
		}
	default:
		return fmt.Errorf("unknown KV_BACKEND %q", c.KVBackend)
	}

	if c.ChunkSize < 1 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be positive, got %d", c.RetryMaxAttempts)
	}
	if c.HistoryEnabled && (c.PostgresUser == "" || c.PostgresDB == "") {
		return fmt.Errorf("POSTGRES_USER and POSTGRES_DB are required when history is enabled")
	}
	return nil
}

// ValidateServer checks the settings the admin API needs on top of Validate.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

// NeedsAWS reports whether any configured component talks to AWS.
func (c *Config) NeedsAWS() bool {
	return c.StoreBackend == StoreDynamoDB || c.SeedSource == SourceS3 || c.AWSUseSecrets ||
		c.CloudWatchLogsEnabled || c.MetricsEnabled || c.SNSTopicARN != "" || c.SQSQueueURL != ""
}

// SecretGetter reads a named secret.
type SecretGetter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// ApplySecrets overrides credentials with values from the secret store under
// SecretsPrefix. Missing secrets keep the env value.
func (c *Config) ApplySecrets(ctx context.Context, sm SecretGetter) {
	targets := map[string]*string{
		"JWT_SECRET":        &c.JWTSecret,
		"MONGO_URI":         &c.MongoURI,
		"REDIS_URL":         &c.RedisURL,
		"POSTGRES_PASSWORD": &c.PostgresPassword,
	}
	for name, dst := range targets {
		if v, err := sm.GetSecret(ctx, c.SecretsPrefix+"/"+name); err == nil && v != "" {
			*dst = v
		}
	}
}
