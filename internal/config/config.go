package config

import (
	"fmt"
	"time"
)

const (
	StorageLocal    = "local"
	StorageSupabase = "supabase"
	StorageMinio    = "minio"
)

// Config holds the reference backend settings.
type Config struct {
	// Auth
	JWTSecret string

	// Supabase
	SupabaseURL            string
	SupabasePublishableKey string
	SupabaseStorageBucket  string

	// MinIO
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Storage
	StorageBackend string
	StoragePath    string

	// Renderer
	RendererBaseURL string
	RenderWorkers   int
	RenderTimeout   time.Duration

	// Database
	DatabaseURL string

	// Server
	Port        string
	Environment string
}

func Load() (*Config, error) {
	cfg := &Config{
		JWTSecret: getEnv("JWT_SECRET", ""),

		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabasePublishableKey: getEnv("SUPABASE_PUBLISHABLE_KEY", ""),
		SupabaseStorageBucket:  getEnv("SUPABASE_STORAGE_BUCKET", "videos"),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "videos"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		StorageBackend: getEnv("STORAGE_BACKEND", StorageLocal),
		StoragePath:    getEnv("STORAGE_PATH", "./data"),

		RendererBaseURL: getEnv("RENDERER_BASE_URL", "http://localhost:8000"),
		RenderWorkers:   getEnvInt("RENDER_WORKERS", 2),
		RenderTimeout:   getEnvDuration("RENDER_TIMEOUT", 10*time.Minute),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.RenderWorkers < 1 {
		return fmt.Errorf("RENDER_WORKERS must be at least 1")
	}
	switch c.StorageBackend {
	case StorageLocal:
	case StorageSupabase:
		if c.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required for the supabase storage backend")
		}
		if c.SupabasePublishableKey == "" {
			return fmt.Errorf("SUPABASE_PUBLISHABLE_KEY is required for the supabase storage backend")
		}
	case StorageMinio:
		if c.MinioEndpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT is required for the minio storage backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	return nil
}

// EventsEnabled reports whether job events can be published to Supabase.
func (c *Config) EventsEnabled() bool {
	return c.SupabaseURL != "" && c.SupabasePublishableKey != ""
}
