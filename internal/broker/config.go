package broker

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds the broker's environment-derived settings (spec §6
// "Broker environment").
type Config struct {
	Host                string
	Port                string
	DispatchInterval    time.Duration
	SyncInterval        time.Duration
	PersistentDir       string
}

// LoadConfig reads PUB_* env vars, falling back to the documented
// defaults, in the teacher's getEnv/getEnvInt style (cmd/main.go).
func LoadConfig() Config {
	return Config{
		Host:             getEnv("PUB_HOST", "127.0.0.1"),
		Port:             getEnv("PUB_PORT", "3000"),
		DispatchInterval: time.Duration(getEnvInt("PUB_INTERVAL_CONSUMER", 10)) * time.Millisecond,
		SyncInterval:     time.Duration(getEnvInt("PUB_INTERVAL_SYNC_FILE", 1000)) * time.Millisecond,
		PersistentDir:    getEnv("PUB_PERSISTENT_DIR", defaultPersistentDir()),
	}
}

func defaultPersistentDir() string {
	base := os.TempDir()
	return filepath.Join(base, "exchange_manager", "journal")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
