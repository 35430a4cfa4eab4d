package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "postgres", cfg.Store)
	assert.Equal(t, 3*time.Second, cfg.LockTimeout)
	assert.Equal(t, "transaction_completed", cfg.KafkaTopic)
	assert.Nil(t, cfg.KafkaBrokers)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("STORE", "memory")
	t.Setenv("LOCK_TIMEOUT_MS", "250")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")

	cfg := Load()

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
}

func TestLoadIgnoresInvalidTimeout(t *testing.T) {
	t.Setenv("LOCK_TIMEOUT_MS", "not-a-number")

	cfg := Load()
	assert.Equal(t, 3*time.Second, cfg.LockTimeout)
}
