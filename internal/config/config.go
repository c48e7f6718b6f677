package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendFS       = "fs"
	BackendPostgres = "postgres"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	StorageBackend string   `mapstructure:"STORAGE_BACKEND"`
	StorageDir     string   `mapstructure:"STORAGE_DIR"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	BlobTier       bool     `mapstructure:"BLOB_TIER_ENABLED"`
	S3Bucket       string   `mapstructure:"S3_BUCKET"`
	S3Region       string   `mapstructure:"S3_REGION"`
	S3Endpoint     string   `mapstructure:"S3_ENDPOINT"`
	S3PathStyle    bool     `mapstructure:"S3_PATH_STYLE"`
	GeminiAPIKey   string   `mapstructure:"GEMINI_API_KEY"`
	GeminiModel    string   `mapstructure:"GEMINI_MODEL"`
	OpenAIAPIKey   string   `mapstructure:"OPENAI_API_KEY"`
	AuthSigningKey string   `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORAGE_BACKEND", BackendFS)
	v.SetDefault("STORAGE_DIR", "./data")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("STORAGE_BACKEND")
	v.BindEnv("STORAGE_DIR")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("BLOB_TIER_ENABLED")
	v.BindEnv("S3_BUCKET")
	v.BindEnv("S3_REGION")
	v.BindEnv("S3_ENDPOINT")
	v.BindEnv("S3_PATH_STYLE")
	v.BindEnv("GEMINI_API_KEY")
	v.BindEnv("GEMINI_MODEL")
	v.BindEnv("OPENAI_API_KEY")
	v.BindEnv("AUTH_SIGNING_KEY")
	v.BindEnv("CORS_ORIGINS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Production refuses
// to start without real authentication; the postgres backend refuses to
// start without a connection string.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendMemory, BackendFS, BackendPostgres:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q, %q, or %q, got %q",
			BackendMemory, BackendFS, BackendPostgres, c.StorageBackend)
	}
	if c.StorageBackend == BackendPostgres && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND is %q", BackendPostgres)
	}
	if c.StorageBackend == BackendFS && c.StorageDir == "" {
		return fmt.Errorf("STORAGE_DIR is required when STORAGE_BACKEND is %q", BackendFS)
	}
	if c.IsProduction() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required in production. " +
			"Refusing to start with unauthenticated access to clinical records")
	}
	if c.BlobTier && c.S3Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required when BLOB_TIER_ENABLED is true")
	}
	return nil
}
