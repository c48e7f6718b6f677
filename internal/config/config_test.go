package config

import "testing"

func validConfig() *Config {
	return &Config{
		Port:           "8000",
		Env:            "development",
		StorageBackend: BackendFS,
		StorageDir:     "./data",
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.StorageBackend = "redis" }},
		{"postgres without url", func(c *Config) { c.StorageBackend = BackendPostgres }},
		{"fs without dir", func(c *Config) { c.StorageDir = "" }},
		{"production without signing key", func(c *Config) { c.Env = "production" }},
		{"blob tier without bucket", func(c *Config) { c.BlobTier = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			tc.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateProductionWithSigningKey(t *testing.T) {
	c := validConfig()
	c.Env = "production"
	c.AuthSigningKey = "secret"
	if err := c.Validate(); err != nil {
		t.Errorf("production config rejected: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.StorageBackend != BackendFS {
		t.Errorf("backend = %q", cfg.StorageBackend)
	}
	if cfg.GeminiModel != "gemini-1.5-flash" {
		t.Errorf("model = %q", cfg.GeminiModel)
	}
	if len(cfg.CORSOrigins) == 0 {
		t.Error("no default CORS origins")
	}
}
