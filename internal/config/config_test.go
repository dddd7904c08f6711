package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Success loading from env", func(t *testing.T) {
		// t.Setenv sets the environment variable for the duration of the test
		// and automatically restores it afterwards.
		t.Setenv("APP_ENV", "test")
		t.Setenv("DEVICE_ID", "till-01")
		t.Setenv("STORE_PATH", "/var/lib/pos/pos.db")
		t.Setenv("DB_HOST", "localhost")
		t.Setenv("DB_USER", "testuser")
		t.Setenv("DB_PASSWORD", "testpass")
		t.Setenv("DB_NAME", "testdb")
		t.Setenv("DB_PORT", "6543")
		t.Setenv("LAN_HUB_URL", "ws://10.0.0.2:8765/lan")
		t.Setenv("DISPATCH_MAX_BACKOFF", "1m")
		t.Setenv("DISPATCH_JITTER", "0")

		cfg := LoadConfig()

		assert.NotNil(t, cfg)
		assert.Equal(t, "test", cfg.AppEnv)
		assert.Equal(t, "till-01", cfg.DeviceID)
		assert.Equal(t, "/var/lib/pos/pos.db", cfg.StorePath)
		assert.Equal(t, "localhost", cfg.DBHost)
		assert.Equal(t, "testuser", cfg.DBUser)
		assert.Equal(t, "testpass", cfg.DBPassword)
		assert.Equal(t, "testdb", cfg.DBName)
		assert.Equal(t, "6543", cfg.DBPort)
		assert.Equal(t, "ws://10.0.0.2:8765/lan", cfg.LanHubURL)
		assert.Equal(t, time.Minute, cfg.DispatchMaxBackoff)
		assert.Equal(t, 0.0, cfg.DispatchJitter)
		assert.True(t, cfg.RemoteEnabled())
	})

	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("DB_HOST", "")
		t.Setenv("STORE_PATH", "")
		t.Setenv("DB_PORT", "")
		t.Setenv("CACHE_REFRESH_INTERVAL", "not-a-duration")
		t.Setenv("DISPATCH_JITTER", "-1")

		cfg := LoadConfig()

		assert.False(t, cfg.RemoteEnabled())
		assert.Equal(t, "data/pos.db", cfg.StorePath)
		assert.Equal(t, "5432", cfg.DBPort)
		assert.Equal(t, time.Hour, cfg.CacheRefreshInterval)
		assert.Equal(t, 5*time.Second, cfg.DispatchPollInterval)
		assert.Equal(t, 0.2, cfg.DispatchJitter)
		assert.Equal(t, "9090", cfg.MetricsPort)
	})
}
