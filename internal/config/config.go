// Package config loads the service configuration from the environment.
package config

import (
	"time"

	"postdeck/internal/media"
	"postdeck/pkg/config"
)

// Config is the full service configuration.
type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string

	// EncryptionKey field-encrypts stored platform tokens. Empty disables
	// encryption (development only).
	EncryptionKey string

	// RedisAddr enables the redis request-token cache; empty falls back to
	// the in-process cache.
	RedisAddr     string
	RedisPassword string

	TwitterConsumerKey    string
	TwitterConsumerSecret string

	// BaseURL is the externally reachable address OAuth callbacks land on.
	BaseURL string

	SchedulerInterval time.Duration
	MediaFetchTimeout time.Duration

	S3 media.S3Config

	AIAPIURL string
	AIAPIKey string
	AIModel  string
}

// Load reads the configuration from the environment.
func Load() Config {
	return Config{
		Port:          config.GetEnv("PORT", "18030"),
		DatabaseURL:   config.RequireEnv("DATABASE_URL"),
		JWTSecret:     config.RequireEnv("JWT_SECRET"),
		EncryptionKey: config.GetEnv("ENCRYPTION_KEY", ""),

		RedisAddr:     config.GetEnv("REDIS_ADDR", ""),
		RedisPassword: config.GetEnv("REDIS_PASSWORD", ""),

		TwitterConsumerKey:    config.GetEnv("TWITTER_CONSUMER_KEY", ""),
		TwitterConsumerSecret: config.GetEnv("TWITTER_CONSUMER_SECRET", ""),

		BaseURL: config.GetEnv("BASE_URL", "http://localhost:18030"),

		SchedulerInterval: config.GetEnvDuration("SCHEDULER_INTERVAL", time.Minute),
		MediaFetchTimeout: config.GetEnvDuration("MEDIA_FETCH_TIMEOUT", 20*time.Second),

		S3: media.S3Config{
			Bucket:    config.GetEnv("S3_BUCKET", ""),
			Prefix:    config.GetEnv("S3_PREFIX", "media"),
			Region:    config.GetEnv("S3_REGION", "us-east-1"),
			Endpoint:  config.GetEnv("S3_ENDPOINT", ""),
			AccessKey: config.GetEnv("S3_ACCESS_KEY", ""),
			SecretKey: config.GetEnv("S3_SECRET_KEY", ""),
			PublicURL: config.GetEnv("S3_PUBLIC_URL", ""),
		},

		AIAPIURL: config.GetEnv("AI_API_URL", ""),
		AIAPIKey: config.GetEnv("AI_API_KEY", ""),
		AIModel:  config.GetEnv("AI_MODEL", "gpt-4o-mini"),
	}
}
