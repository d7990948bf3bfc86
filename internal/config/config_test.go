package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate corre el test en un dir vacío para que no levante config.yaml/.env reales.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, k := range []string{
		"CONFIG_FILE", "PORT", "LOG_LEVEL", "LOG_FORMAT", "STORAGE_DRIVER", "DB_DSN",
		"DATA_SERVICE_URL", "DATA_SERVICE_API_KEY", "AUTH_MODE", "AUTH_JWT_SECRET",
		"RATE_RPS", "RATE_BURST", "SWAGGER_ENABLED", "METRICS_ENABLED", "PHOTOS_BUCKET",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Storage.Driver != "memory" || cfg.Auth.Mode != "dev" {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
	if cfg.Photos.Enabled() {
		t.Fatalf("photos must be disabled without a bucket")
	}
}

func TestLoad_YAMLThenEnvOverrides(t *testing.T) {
	dir := isolate(t)

	yml := `
server:
  port: "9000"
  read_timeout: 3s
log:
  level: debug
  format: json
storage:
  driver: rest
  url: https://data.example.com/
  api_key: anon
  service_key: service
rate:
  burst: 5
`
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7000")
	t.Setenv("LOG_LEVEL", "WARNING")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != "7000" {
		t.Fatalf("env must override yaml port, got %q", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 3*time.Second {
		t.Fatalf("read_timeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.Log.Level != "warn" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log config %#v", cfg.Log)
	}
	if cfg.Storage.URL != "https://data.example.com" {
		t.Fatalf("url should be trimmed, got %q", cfg.Storage.URL)
	}
	if cfg.Rate.Burst != 5 || cfg.Rate.RPS != 10 {
		t.Fatalf("unexpected rate %#v", cfg.Rate)
	}
}

func TestLoad_DotEnvDoesNotOverrideProcessEnv(t *testing.T) {
	dir := isolate(t)

	env := "STORAGE_DRIVER=postgres\nDB_DSN=postgres://x\nPORT=1111\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "2222")
	// godotenv escribe en el entorno del proceso; limpiamos al terminar
	t.Cleanup(func() {
		os.Unsetenv("STORAGE_DRIVER")
		os.Unsetenv("DB_DSN")
	})
	os.Unsetenv("STORAGE_DRIVER")
	os.Unsetenv("DB_DSN")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Storage.Driver != "postgres" || cfg.Storage.DSN != "postgres://x" {
		t.Fatalf(".env values not applied: %#v", cfg.Storage)
	}
	if cfg.Server.Port != "2222" {
		t.Fatalf("process env must win over .env, got %q", cfg.Server.Port)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)
	t.Setenv("CONFIG_FILE", "nope.yaml")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
		want string
	}{
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }, "LOG_LEVEL"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "LOG_FORMAT"},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = "postgres" }, "DB_DSN"},
		{"rest without url", func(c *Config) { c.Storage.Driver = "rest" }, "DATA_SERVICE_URL"},
		{"rest without service key", func(c *Config) {
			c.Storage.Driver = "rest"
			c.Storage.URL = "https://data.example.com"
			c.Storage.APIKey = "anon"
		}, "DATA_SERVICE_SERVICE_KEY"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }, "STORAGE_DRIVER"},
		{"jwt without secret", func(c *Config) { c.Auth.Mode = "jwt" }, "AUTH_JWT_SECRET"},
		{"remote without url", func(c *Config) { c.Auth.Mode = "remote" }, "AUTH_IDENTITY_URL"},
		{"unknown auth", func(c *Config) { c.Auth.Mode = "oauth" }, "AUTH_MODE"},
		{"burst", func(c *Config) { c.Rate.Burst = 0 }, "RATE_BURST"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mut(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestLoad_InvalidNumberFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("RATE_BURST", "many")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "RATE_BURST") {
		t.Fatalf("expected RATE_BURST parse error, got %v", err)
	}
}
