// Package config reads the process's environment into a typed Config,
// following a default-then-override idiom.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/hamed0406/uptimechecker/internal/domain"
)

type Config struct {
	Addr   string // debug/health bind address
	LogDir string

	DatabaseURL            string // DATABASE_NODE_URLS equivalent for the pgx DSN
	DatabaseConnections    int
	DatabaseConcurrentReqs int

	SelfIP string
	Region domain.Region

	CurrentBucketsCount  int32
	CurrentBucketVersion int16
	ReplicationFactor    int32

	HeartbeatInterval time.Duration

	MaxConcurrentHealthChecks int

	RetryAttempts int
	RetryBackoff  time.Duration
}

func FromEnv() Config {
	addr := getEnv("API_ADDR", "127.0.0.1:8080")
	logDir := getEnv("LOG_DIR", "logs")
	dsn := os.Getenv("DATABASE_NODE_URLS")
	selfIP := os.Getenv("SELF_IP")

	region, err := domain.ParseRegion(getEnv("REGION", "fsn1"))
	if err != nil {
		region = domain.RegionFsn1
	}

	return Config{
		Addr:   addr,
		LogDir: logDir,

		DatabaseURL:            dsn,
		DatabaseConnections:    getEnvInt("DATABASE_CONNECTIONS", 10),
		DatabaseConcurrentReqs: getEnvInt("DATABASE_CONCURRENT_REQUESTS", 32),

		SelfIP: selfIP,
		Region: region,

		CurrentBucketsCount:  int32(getEnvInt("CURRENT_BUCKETS_COUNT", 1024)),
		CurrentBucketVersion: int16(getEnvInt("CURRENT_BUCKET_VERSION", 1)),
		ReplicationFactor:    int32(getEnvInt("REPLICATION_FACTOR", 2)),

		HeartbeatInterval: time.Duration(getEnvInt("HEARTBEAT_INTERVAL_SECONDS", 15)) * time.Second,

		MaxConcurrentHealthChecks: getEnvInt("MAX_CONCURRENT_HEALTH_CHECKS", 100),

		RetryAttempts: getEnvInt("RETRY_ATTEMPTS", 3),
		RetryBackoff:  time.Duration(getEnvInt("RETRY_BACKOFF_MS", 50)) * time.Millisecond,
	}
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
	if err != nil || n <= 0 {
		return def
	}
	return n
}
