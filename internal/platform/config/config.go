package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr        string
	DatabaseURL string

	Redis RedisConfig

	// Keycloak bearer-only verification. RealmPublicKey is the PEM-encoded
	// RSA public key of the realm; when empty the server refuses to start.
	KeycloakRealmPublicKey string

	// Profile image storage.
	S3Bucket      string
	AWSRegion     string
	PresignExpiry time.Duration

	// Search cache TTL; zero disables caching even when Redis is configured.
	SearchCacheTTL time.Duration
}

// RedisConfig captures Redis connection settings. An empty URL means Redis is
// not configured and the dependent features degrade gracefully.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:                   envOr("USERS_API_ADDR", ":8080"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		KeycloakRealmPublicKey: os.Getenv("KEYCLOAK_REALM_PUBLIC_KEY"),
		S3Bucket:               os.Getenv("PROFILE_IMAGE_BUCKET"),
		AWSRegion:              envOr("AWS_REGION", "us-east-1"),
		PresignExpiry:          envDuration("PRESIGN_EXPIRY", 5*time.Minute),
		SearchCacheTTL:         envDuration("SEARCH_CACHE_TTL", 30*time.Second),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
