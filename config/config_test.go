package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets map[string]string

func (f fakeSecrets) GetSecret(_ context.Context, name string) (string, error) {
	if v, ok := f[name]; ok {
		return v, nil
	}
	return "", errors.New("secret not found")
}

func TestFromViper_Defaults(t *testing.T) {
	v, err := NewViper("")
	require.NoError(t, err)

	cfg := FromViper(v)
	assert.Equal(t, StoreDynamoDB, cfg.StoreBackend)
	assert.Equal(t, SourceFS, cfg.SeedSource)
	assert.Equal(t, KVStore, cfg.KVBackend)
	assert.Equal(t, "catalog-seeder", cfg.KVPrefix)
	assert.Equal(t, "seed_state", cfg.StateCollection)
	assert.Equal(t, "seed.v1", cfg.ChecksumNamespace)
	assert.Equal(t, 300, cfg.ChunkSize)
	assert.Equal(t, 5, cfg.RetryMaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryInitialDelay)
	assert.Equal(t, 10*time.Minute, cfg.LockTTL)
	assert.NoError(t, cfg.Validate())
}

func TestFromViper_EnvOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("CHUNK_SIZE", "50")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RETRY_INITIAL_DELAY", "1s")

	v, err := NewViper("")
	require.NoError(t, err)
	cfg := FromViper(v)

	assert.Equal(t, StoreMongo, cfg.StoreBackend)
	assert.Equal(t, 50, cfg.ChunkSize)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, time.Second, cfg.RetryInitialDelay)
	assert.NoError(t, cfg.Validate())
}

func TestNewViper_ReadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeder.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed_source: s3\nseed_bucket: seeds\nlookup_concurrency: 4\n"), 0o600))

	v, err := NewViper(path)
	require.NoError(t, err)
	cfg := FromViper(v)

	assert.Equal(t, SourceS3, cfg.SeedSource)
	assert.Equal(t, "seeds", cfg.SeedBucket)
	assert.Equal(t, 4, cfg.LookupConcurrency)
	assert.True(t, cfg.NeedsAWS())
}

func TestNewViper_MissingConfigFile(t *testing.T) {
	_, err := NewViper(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		v, _ := NewViper("")
		return FromViper(v)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown store", func(c *Config) { c.StoreBackend = "sqlite" }, "unknown STORE_BACKEND"},
		{"mongo without uri", func(c *Config) { c.StoreBackend = StoreMongo }, "MONGO_URI"},
		{"s3 without bucket", func(c *Config) { c.SeedSource = SourceS3 }, "SEED_BUCKET"},
		{"redis without url", func(c *Config) { c.KVBackend = KVRedis }, "REDIS_URL"},
		{"memory kv with dynamodb", func(c *Config) { c.KVBackend = KVMemory }, "KV_BACKEND=memory"},
		{"zero chunk", func(c *Config) { c.ChunkSize = 0 }, "CHUNK_SIZE"},
		{"history without db", func(c *Config) { c.HistoryEnabled = true }, "POSTGRES_USER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_MemoryKVWithNonDurableStore(t *testing.T) {
	v, _ := NewViper("")
	cfg := FromViper(v)
	cfg.KVBackend = KVMemory

	for _, store := range []string{StoreMemory, StoreNone} {
		cfg.StoreBackend = store
		assert.NoError(t, cfg.Validate(), store)
	}
}

func TestValidateServer_RequiresJWTSecret(t *testing.T) {
	v, _ := NewViper("")
	cfg := FromViper(v)
	assert.ErrorContains(t, cfg.ValidateServer(), "JWT_SECRET")

	cfg.JWTSecret = "s3cret"
	assert.NoError(t, cfg.ValidateServer())
}

func TestApplySecrets(t *testing.T) {
	cfg := &Config{SecretsPrefix: "seeder", JWTSecret: "from-env", RedisURL: "redis://env:6379"}
	cfg.ApplySecrets(context.Background(), fakeSecrets{
		"seeder/JWT_SECRET": "from-secrets",
		"seeder/MONGO_URI":  "mongodb://secret",
	})

	assert.Equal(t, "from-secrets", cfg.JWTSecret)
	assert.Equal(t, "mongodb://secret", cfg.MongoURI)
	assert.Equal(t, "redis://env:6379", cfg.RedisURL)
}
