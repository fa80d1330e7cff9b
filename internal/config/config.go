package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultSecretKey is the placeholder secret; refused in production.
const DefaultSecretKey = "your-secret-key-here"

type Config struct {
	Environment string `yaml:"environment"`

	Server struct {
		Port                int      `yaml:"port"`
		ReadTimeoutSeconds  int      `yaml:"readTimeoutSeconds"`
		WriteTimeoutSeconds int      `yaml:"writeTimeoutSeconds"`
		IdleTimeoutSeconds  int      `yaml:"idleTimeoutSeconds"`
		MaxUploadMB         int      `yaml:"maxUploadMB"`
		AllowedOrigins      []string `yaml:"allowedOrigins"`
		RateLimitCapacity   int      `yaml:"rateLimitCapacity"`
		RateLimitRefill     float64  `yaml:"rateLimitRefill"`
		TrustProxy          bool     `yaml:"trustProxy"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Database struct {
		Driver      string `yaml:"driver"` // mysql | postgres
		Host        string `yaml:"host"`
		Port        int    `yaml:"port"`
		User        string `yaml:"user"`
		Password    string `yaml:"password"`
		Name        string `yaml:"name"`
		SSLMode     string `yaml:"sslMode"`
		AutoMigrate bool   `yaml:"autoMigrate"`
	} `yaml:"database"`

	Redis struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
	} `yaml:"redis"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Auth struct {
		SecretKey       string `yaml:"secretKey"`
		TokenTTLMinutes int    `yaml:"tokenTTLMinutes"`
	} `yaml:"auth"`

	AI struct {
		Provider        string  `yaml:"provider"` // gemini | vertex | openai | none
		APIKey          string  `yaml:"apiKey"`
		Model           string  `yaml:"model"`
		ProjectID       string  `yaml:"projectID"`
		Region          string  `yaml:"region"`
		Temperature     float32 `yaml:"temperature"`
		MaxOutputTokens int     `yaml:"maxOutputTokens"`
		MaxReportChars  int     `yaml:"maxReportChars"`
		Fallback        bool    `yaml:"fallback"`
	} `yaml:"ai"`

	Queue struct {
		Backend            string `yaml:"backend"` // redis | memory
		Workers            int    `yaml:"workers"`
		InlineWorkers      bool   `yaml:"inlineWorkers"`
		TaskTimeoutMinutes int    `yaml:"taskTimeoutMinutes"`
		StatusTTLHours     int    `yaml:"statusTTLHours"`
	} `yaml:"queue"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var c Config
	c.Environment = "development"

	c.Server.Port = 8000
	c.Server.ReadTimeoutSeconds = 30
	c.Server.WriteTimeoutSeconds = 120
	c.Server.IdleTimeoutSeconds = 60
	c.Server.MaxUploadMB = 20
	c.Server.AllowedOrigins = []string{
		"http://localhost:3000",
		"http://localhost:3001",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:3001",
	}
	c.Server.RateLimitCapacity = 60
	c.Server.RateLimitRefill = 10

	c.Log.Level = "info"

	c.Database.Driver = "mysql"
	c.Database.Host = "localhost"
	// 0: resolved per driver in Load
	c.Database.Port = 0
	c.Database.User = "root"
	c.Database.Name = "bloodreport_ai"
	c.Database.SSLMode = "disable"
	c.Database.AutoMigrate = true

	c.Redis.Enabled = true
	c.Redis.URL = "redis://localhost:6379/0"

	c.Minio.Endpoint = "localhost:9000"
	c.Minio.BucketName = "blood-reports"
	c.Minio.Region = "us-east-1"

	c.Auth.SecretKey = DefaultSecretKey
	c.Auth.TokenTTLMinutes = 30

	c.AI.Provider = "gemini"
	c.AI.Model = "gemini-1.5-flash"
	c.AI.Region = "us-central1"
	c.AI.Temperature = 0.7
	c.AI.MaxOutputTokens = 2048
	c.AI.MaxReportChars = 3000
	c.AI.Fallback = true

	c.Queue.Backend = "redis"
	c.Queue.Workers = 2
	c.Queue.InlineWorkers = true
	c.Queue.TaskTimeoutMinutes = 30
	c.Queue.StatusTTLHours = 24
	return &c
}

// Load baca .env, file config yaml (opsional), lalu override dari environment.
func Load(path string) (*Config, error) {
	// .env is optional outside development
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.Environment = strings.ToLower(cfg.Environment)
	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	cfg.AI.Provider = strings.ToLower(cfg.AI.Provider)
	cfg.Queue.Backend = strings.ToLower(cfg.Queue.Backend)
	if cfg.Database.Port == 0 {
		cfg.Database.Port = defaultDBPort(cfg.Database.Driver)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultDBPort(driver string) int {
	if driver == "postgres" {
		return 5432
	}
	return 3306
}

func (c *Config) applyEnv() error {
	setString(&c.Environment, "ENVIRONMENT")
	setString(&c.Auth.SecretKey, "SECRET_KEY")
	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.AI.Provider, "AI_PROVIDER")
	setString(&c.Queue.Backend, "QUEUE_BACKEND")

	// provider-specific keys only apply to their own provider
	switch strings.ToLower(c.AI.Provider) {
	case "gemini":
		setString(&c.AI.APIKey, "GEMINI_API_KEY")
	case "openai":
		setString(&c.AI.APIKey, "OPENAI_API_KEY")
	}

	if err := setInt(&c.Database.Port, "DB_PORT"); err != nil {
		return err
	}
	return setInt(&c.Server.Port, "SERVER_PORT")
}

// Validate checks enum-like fields and production safety.
func (c *Config) Validate() error {
	switch c.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("invalid environment value: %s", c.Environment)
	}
	switch c.Database.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	switch c.AI.Provider {
	case "gemini", "vertex", "openai", "none":
	default:
		return fmt.Errorf("unsupported ai provider: %s", c.AI.Provider)
	}
	switch c.Queue.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported queue backend: %s", c.Queue.Backend)
	}
	if c.Queue.Backend == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("queue backend redis requires redis.enabled")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.IsProduction() && (c.Auth.SecretKey == "" || c.Auth.SecretKey == DefaultSecretKey) {
		return fmt.Errorf("SECRET_KEY must be set in production")
	}
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = 1
	}
	return nil
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection URL.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Database.User, c.Database.Password),
		Host:   fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:   "/" + c.Database.Name,
	}
	q := u.Query()
	q.Set("sslmode", c.Database.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Config) IsDevelopment() bool { return c.Environment == "development" }

func (c *Config) IsProduction() bool { return c.Environment == "production" }

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}
