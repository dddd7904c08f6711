package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	DeviceID string

	StorePath        string
	LocalStoragePath string

	// Remote backend. An empty DBHost runs the terminal without a remote
	// source: caches stay as they are and nothing is refreshed.
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	LanHubURL          string
	MetricsPort        string
	OfflineTokenSecret string

	CacheRefreshInterval  time.Duration
	DispatchPollInterval  time.Duration
	DispatchMaxBackoff    time.Duration
	DispatchJitter        float64
	DispatchRatePerSecond float64
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		AppEnv:   os.Getenv("APP_ENV"),
		DeviceID: getEnv("DEVICE_ID", hostname()),

		StorePath:        getEnv("STORE_PATH", "data/pos.db"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "data/local_storage.db"),

		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     getEnv("DB_PORT", "5432"),

		LanHubURL:          getEnv("LAN_HUB_URL", "ws://localhost:8765/lan"),
		MetricsPort:        getEnv("METRICS_PORT", "9090"),
		OfflineTokenSecret: os.Getenv("OFFLINE_TOKEN_SECRET"),

		CacheRefreshInterval:  getDuration("CACHE_REFRESH_INTERVAL", time.Hour),
		DispatchPollInterval:  getDuration("DISPATCH_POLL_INTERVAL", 5*time.Second),
		DispatchMaxBackoff:    getDuration("DISPATCH_MAX_BACKOFF", 30*time.Second),
		DispatchJitter:        getFloat("DISPATCH_JITTER", 0.2),
		DispatchRatePerSecond: getFloat("DISPATCH_RATE_PER_SECOND", 10),
	}
}

// RemoteEnabled reports whether a backend database is configured.
func (c *Config) RemoteEnabled() bool {
	return c.DBHost != ""
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getFloat(key string, def float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || f < 0 {
		return def
	}
	return f
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "pos-terminal"
	}
	return h
}
