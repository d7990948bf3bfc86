package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultFile = "config.yaml"

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Photos  PhotosConfig  `yaml:"photos"`
	Rate    RateConfig    `yaml:"rate"`

	SwaggerEnabled bool `yaml:"swagger_enabled"`
	MetricsEnabled bool `yaml:"metrics_enabled"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text|json
	App    string `yaml:"app"`
}

// StorageConfig: driver memory|postgres|rest.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`

	// rest: servicio de datos hospedado (dialecto PostgREST)
	URL        string        `yaml:"url"`
	APIKey     string        `yaml:"api_key"`
	ServiceKey string        `yaml:"service_key"`
	MaxRetries uint64        `yaml:"max_retries"`
	Timeout    time.Duration `yaml:"timeout"`
}

// AuthConfig: mode dev|jwt|remote.
type AuthConfig struct {
	Mode        string `yaml:"mode"`
	JWTSecret   string `yaml:"jwt_secret"`
	JWTAudience string `yaml:"jwt_audience"`
	IdentityURL string `yaml:"identity_url"`
	APIKey      string `yaml:"api_key"`
}

// PhotosConfig vacío (sin bucket) deshabilita las subidas.
type PhotosConfig struct {
	Bucket        string        `yaml:"bucket"`
	Region        string        `yaml:"region"`
	Endpoint      string        `yaml:"endpoint"`
	AccessKey     string        `yaml:"access_key"`
	SecretKey     string        `yaml:"secret_key"`
	PublicBaseURL string        `yaml:"public_base_url"`
	URLExpiry     time.Duration `yaml:"url_expiry"`
}

func (p PhotosConfig) Enabled() bool { return strings.TrimSpace(p.Bucket) != "" }

type RateConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    20 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log:     LogConfig{Level: "info", Format: "text", App: "medication-adherence"},
		Storage: StorageConfig{Driver: "memory", MaxRetries: 2, Timeout: 10 * time.Second},
		Auth:    AuthConfig{Mode: "dev", JWTAudience: "authenticated"},
		Photos:  PhotosConfig{Region: "us-east-1", URLExpiry: 5 * time.Minute},
		Rate:    RateConfig{RPS: 10, Burst: 20},

		SwaggerEnabled: true,
		MetricsEnabled: true,
	}
}

// Load: defaults -> YAML (CONFIG_FILE o config.yaml si existe) -> .env -> env vars.
// Un CONFIG_FILE explícito que no existe es error; el default es opcional.
func Load() (Config, error) {
	cfg := Defaults()

	path, explicit := os.LookupEnv("CONFIG_FILE")
	if !explicit || strings.TrimSpace(path) == "" {
		path = DefaultFile
	}
	if err := loadFile(path, &cfg); err != nil {
		if !(errors.Is(err, os.ErrNotExist) && !explicit) {
			return cfg, err
		}
	}

	// .env no pisa variables ya definidas
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	normalize(&cfg)
	return cfg, cfg.Validate()
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.Log.App, "APP_NAME")

	setString(&cfg.Storage.Driver, "STORAGE_DRIVER")
	setString(&cfg.Storage.DSN, "DB_DSN")
	setString(&cfg.Storage.URL, "DATA_SERVICE_URL")
	setString(&cfg.Storage.APIKey, "DATA_SERVICE_API_KEY")
	setString(&cfg.Storage.ServiceKey, "DATA_SERVICE_SERVICE_KEY")

	setString(&cfg.Auth.Mode, "AUTH_MODE")
	setString(&cfg.Auth.JWTSecret, "AUTH_JWT_SECRET")
	setString(&cfg.Auth.JWTAudience, "AUTH_JWT_AUDIENCE")
	setString(&cfg.Auth.IdentityURL, "AUTH_IDENTITY_URL")
	setString(&cfg.Auth.APIKey, "AUTH_API_KEY")

	setString(&cfg.Photos.Bucket, "PHOTOS_BUCKET")
	setString(&cfg.Photos.Region, "PHOTOS_REGION")
	setString(&cfg.Photos.Endpoint, "PHOTOS_ENDPOINT")
	setString(&cfg.Photos.AccessKey, "PHOTOS_ACCESS_KEY")
	setString(&cfg.Photos.SecretKey, "PHOTOS_SECRET_KEY")
	setString(&cfg.Photos.PublicBaseURL, "PHOTOS_PUBLIC_BASE_URL")

	if v, ok := lookup("DATA_SERVICE_MAX_RETRIES"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("DATA_SERVICE_MAX_RETRIES: %w", err)
		}
		cfg.Storage.MaxRetries = n
	}
	if v, ok := lookup("RATE_RPS"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_RPS: %w", err)
		}
		cfg.Rate.RPS = f
	}
	if v, ok := lookup("RATE_BURST"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_BURST: %w", err)
		}
		cfg.Rate.Burst = n
	}
	for key, dst := range map[string]*bool{
		"SWAGGER_ENABLED": &cfg.SwaggerEnabled,
		"METRICS_ENABLED": &cfg.MetricsEnabled,
	} {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}
	return nil
}

func normalize(cfg *Config) {
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "warning" {
		cfg.Log.Level = "warn"
	}
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	cfg.Auth.Mode = strings.ToLower(strings.TrimSpace(cfg.Auth.Mode))
	cfg.Storage.URL = strings.TrimRight(strings.TrimSpace(cfg.Storage.URL), "/")
	cfg.Auth.IdentityURL = strings.TrimRight(strings.TrimSpace(cfg.Auth.IdentityURL), "/")
}

func (c Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New("LOG_FORMAT must be text or json")
	}
	if strings.TrimSpace(c.Server.Port) == "" {
		return errors.New("PORT must not be empty")
	}

	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return errors.New("DB_DSN is required for the postgres driver")
		}
	case "rest":
		if c.Storage.URL == "" || strings.TrimSpace(c.Storage.APIKey) == "" {
			return errors.New("DATA_SERVICE_URL and DATA_SERVICE_API_KEY are required for the rest driver")
		}
		// con el token del cuidador el backend filtra las filas del paciente
		if strings.TrimSpace(c.Storage.ServiceKey) == "" {
			return errors.New("DATA_SERVICE_SERVICE_KEY is required for the rest driver")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be memory, postgres or rest (got %q)", c.Storage.Driver)
	}

	switch c.Auth.Mode {
	case "dev":
	case "jwt":
		if strings.TrimSpace(c.Auth.JWTSecret) == "" {
			return errors.New("AUTH_JWT_SECRET is required when AUTH_MODE=jwt")
		}
	case "remote":
		if c.Auth.IdentityURL == "" || strings.TrimSpace(c.Auth.APIKey) == "" {
			return errors.New("AUTH_IDENTITY_URL and AUTH_API_KEY are required when AUTH_MODE=remote")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be dev, jwt or remote (got %q)", c.Auth.Mode)
	}

	if c.Rate.RPS < 0 {
		return errors.New("RATE_RPS must be >= 0")
	}
	if c.Rate.Burst < 1 {
		return errors.New("RATE_BURST must be >= 1")
	}
	return nil
}

func lookup(k string) (string, bool) {
	v, ok := os.LookupEnv(k)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setString(dst *string, k string) {
	if v, ok := lookup(k); ok {
		*dst = v
	}
}
