package storage

import "time"

// Config for the storage backends (Postgres, S3, Redis)
type Config struct {
	// PostgreSQL config
	PostgresURL      string
	PostgresMaxConns int
	PostgresMinConns int
	PostgresTimeout  time.Duration

	// S3 config (uploaded file content and generated PDFs)
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool

	// Redis config (CMS L2 cache)
	RedisURL      string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int

	// Cache config
	CacheEnabled bool
	CacheTTL     time.Duration
	L1CacheSize  int // Entries
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		RedisDB:          0,
		RedisPoolSize:    10,
		CacheEnabled:     true,
		CacheTTL:         5 * time.Minute,
		L1CacheSize:      2048,
	}
}
