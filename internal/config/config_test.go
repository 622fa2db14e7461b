package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMemoryStoreSkipsDatabase(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "Memory")

	cfg := Load()
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 60, cfg.AccessTTLMin)
	assert.Equal(t, 30, cfg.RefreshTTLDays)
	assert.Empty(t, cfg.DB.Host)
}

func TestLoadCoreConfig(t *testing.T) {
	t.Setenv("PLATFORM_FEE_CREDITS", "3")
	t.Setenv("CANCEL_CUTOFF", "2h")
	t.Setenv("TX_MAX_ATTEMPTS", "0")
	t.Setenv("MODERATION_BANNED_TERMS", " cash , , drugs")

	c := LoadCoreConfig()
	assert.Equal(t, int64(3), c.PlatformFee)
	assert.Equal(t, 2*time.Hour, c.CancelCutoff)
	assert.Equal(t, 24*time.Hour, c.CompletionGrace)
	assert.Equal(t, 1, c.TxMaxAttempts)
	assert.Equal(t, []string{"cash", "drugs"}, c.BannedTerms)
	assert.Equal(t, int64(20), c.SignupBonus)
}

func TestLoadQueueConfig(t *testing.T) {
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://broker:5672/")
	t.Setenv("QUEUE_DRIVER", "bogus")
	t.Setenv("RELAY_BATCH_SIZE", "-4")

	c := LoadQueueConfig()
	assert.Equal(t, "amqp://broker:5672/", c.URL)
	assert.Equal(t, QueueAMQP, c.Driver)
	assert.Equal(t, 100, c.BatchSize)
	assert.Equal(t, "carpool.events.parked", c.ParkedQueue)
}

func TestRateLimitTTLFloor(t *testing.T) {
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "1m")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_ENABLED", "off")

	c := LoadRateLimitConfig()
	assert.False(t, c.Enabled)
	assert.Equal(t, 5*time.Minute, c.TTL)
}

func TestLoadDotenvKeepsExistingValues(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("CARPOOL_TEST_A=from-file\nCARPOOL_TEST_B=from-file\n"), 0o600))
	t.Setenv("CARPOOL_TEST_A", "from-env")
	t.Setenv("CARPOOL_TEST_B", "")
	os.Unsetenv("CARPOOL_TEST_B")

	LoadDotenv(file, filepath.Join(dir, "missing.env"))
	assert.Equal(t, "from-env", os.Getenv("CARPOOL_TEST_A"))
	assert.Equal(t, "from-file", os.Getenv("CARPOOL_TEST_B"))
	os.Unsetenv("CARPOOL_TEST_B")
}
