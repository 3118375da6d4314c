package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

// unsetEnv clears keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	unsetEnv(t, "ENV", "PORT", "SERVER_PORT", "STORE_DRIVER", "HASH_COST",
		"REDACT_PASSWORD_HASH", "CORS_ALLOWED_ORIGINS", "STORAGE_BACKEND", "MQ_BACKEND", "MQ_CHANNEL")

	cfg := LoadConfig()
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, 10, cfg.HashCost)
	assert.False(t, cfg.RedactPasswordHash)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, StoreDriverMongo, cfg.Store.Driver)
	assert.Empty(t, cfg.Storage.Backend)
	assert.Empty(t, cfg.MQ.Backend)
	assert.Equal(t, "user-events", cfg.MQ.Channel)
}

func TestLoadConfigOverrides(t *testing.T) {
	unsetEnv(t, "ENV")
	t.Setenv("PORT", "9090")
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DB_SSL", "true")
	t.Setenv("REDACT_PASSWORD_HASH", "1")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("STORAGE_BACKEND", "MINIO")
	t.Setenv("STORAGE_PUBLIC_URL", "https://cdn.example.com/assets/")
	t.Setenv("RABBITMQ_QUEUE_DURABLE", "not-a-bool")

	cfg := LoadConfig()
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.True(t, cfg.Store.Database.UseSSL)
	assert.True(t, cfg.RedactPasswordHash)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, StorageBackendMinio, cfg.Storage.Backend)
	assert.Equal(t, "https://cdn.example.com/assets", cfg.Storage.PublicURL)
	assert.True(t, cfg.MQ.RabbitMQ.QueueDurable)
}

func TestServerPortFallback(t *testing.T) {
	unsetEnv(t, "ENV", "PORT")
	t.Setenv("SERVER_PORT", "7070")

	assert.Equal(t, 7070, LoadConfig().ServerPort)
}

func TestMalformedIntFallsBack(t *testing.T) {
	unsetEnv(t, "ENV", "PORT")
	t.Setenv("HASH_COST", "abc")
	t.Setenv("SERVER_PORT", " 7070 ")

	cfg := LoadConfig()
	assert.Equal(t, 10, cfg.HashCost)
	assert.Equal(t, 7070, cfg.ServerPort)

	t.Setenv("PORT", "80x")
	assert.Equal(t, 7070, LoadConfig().ServerPort)
}

func TestObjectURL(t *testing.T) {
	assert.Equal(t, "/assets/users/a/b.png", StorageConfig{}.ObjectURL("users/a/b.png"))
	assert.Equal(t, "https://cdn.example.com/users/a/b.png",
		StorageConfig{PublicURL: "https://cdn.example.com"}.ObjectURL("users/a/b.png"))
}
