package config

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("Database.MaxOpenConns = %d, want 25", cfg.Database.MaxOpenConns)
	}
	if cfg.Models.Dir != "./models" {
		t.Errorf("Models.Dir = %q, want ./models", cfg.Models.Dir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("SERVER_READ_TIMEOUT", "5s")
	t.Setenv("MODELS_DIR", "/var/models")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("Database.Host = %q, want db.internal", cfg.Database.Host)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.Models.Dir != "/var/models" {
		t.Errorf("Models.Dir = %q, want /var/models", cfg.Models.Dir)
	}
	// Unparseable integers fall back to the default.
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("Database.MaxOpenConns = %d, want fallback 25", cfg.Database.MaxOpenConns)
	}
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		cfg, _ := LoadConfig()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid defaults", mutate: func(c *Config) {}, wantErr: false},
		{name: "port zero", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "port out of range", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "missing db host", mutate: func(c *Config) { c.Database.Host = "" }, wantErr: true},
		{name: "missing models dir", mutate: func(c *Config) { c.Models.Dir = "" }, wantErr: true},
		{name: "idle exceeds open", mutate: func(c *Config) { c.Database.MaxIdleConns = 50 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
