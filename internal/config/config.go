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

const (
	BackendModeREST   = "rest"
	BackendModeDirect = "direct"

	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"

	AIProviderSimulated = "simulated"
	AIProviderOpenAI    = "openai"
)

type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"readTimeout"`
		WriteTimeout time.Duration `yaml:"writeTimeout"`
		IdleTimeout  time.Duration `yaml:"idleTimeout"`
	} `yaml:"server"`

	Functions struct {
		Port          int           `yaml:"port"`
		AnalyzeName   string        `yaml:"analyzeName"`
		ReportName    string        `yaml:"reportName"`
		ReportExpiry  time.Duration `yaml:"reportExpiry"`
		MaxTextBytes  int64         `yaml:"maxTextBytes"`
		AllowedOrigin []string      `yaml:"allowedOrigins"`
	} `yaml:"functions"`

	Log struct {
		Mode string `yaml:"mode"`
	} `yaml:"log"`

	Backend struct {
		URL     string        `yaml:"url"`
		AnonKey string        `yaml:"anonKey"`
		Bucket  string        `yaml:"bucket"`
		Table   string        `yaml:"table"`
		Mode    string        `yaml:"mode"`
		Timeout time.Duration `yaml:"timeout"`
		Breaker struct {
			MinRequests  uint32        `yaml:"minRequests"`
			FailureRatio float64       `yaml:"failureRatio"`
			OpenTimeout  time.Duration `yaml:"openTimeout"`
		} `yaml:"breaker"`
	} `yaml:"backend"`

	Session struct {
		CookieName   string        `yaml:"cookieName"`
		CookieSecure bool          `yaml:"cookieSecure"`
		RestoreWait  time.Duration `yaml:"restoreWait"`
		IdleTTL      time.Duration `yaml:"idleTTL"`
		AnonymousTTL time.Duration `yaml:"anonymousTTL"`
		MaxActive    int           `yaml:"maxActive"`
		TokenTTL     time.Duration `yaml:"tokenTTL"`
		Redis        struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"session"`

	Database struct {
		Driver   string `yaml:"driver"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint     string `yaml:"endpoint"`
		AccessKey    string `yaml:"accessKey"`
		SecretKey    string `yaml:"secretKey"`
		BucketName   string `yaml:"bucketName"`
		ReportBucket string `yaml:"reportBucket"`
		Region       string `yaml:"region"`
		UseSSL       bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	AI struct {
		Provider string `yaml:"provider"`
		APIKey   string `yaml:"apiKey"`
		Model    string `yaml:"model"`
	} `yaml:"ai"`

	Auth struct {
		JWTSecret string `yaml:"jwtSecret"`
	} `yaml:"auth"`

	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rateLimit"`
}

// Default returns a config usable against a local backend stack.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 60 * time.Second
	c.Server.IdleTimeout = 60 * time.Second

	c.Functions.Port = 8090
	c.Functions.AnalyzeName = "analyze-evidence"
	c.Functions.ReportName = "generate-report"
	c.Functions.ReportExpiry = 24 * time.Hour
	c.Functions.MaxTextBytes = 1 << 20
	c.Functions.AllowedOrigin = []string{"*"}

	c.Log.Mode = "development"

	c.Backend.URL = "http://localhost:54321"
	c.Backend.Bucket = "evidence-files"
	c.Backend.Table = "evidence"
	c.Backend.Mode = BackendModeREST
	c.Backend.Timeout = 30 * time.Second
	c.Backend.Breaker.MinRequests = 5
	c.Backend.Breaker.FailureRatio = 0.6
	c.Backend.Breaker.OpenTimeout = 30 * time.Second

	c.Session.CookieName = "reclaim_sid"
	c.Session.RestoreWait = 1500 * time.Millisecond
	c.Session.IdleTTL = 30 * time.Minute
	c.Session.AnonymousTTL = 5 * time.Minute
	c.Session.MaxActive = 10000
	c.Session.TokenTTL = 7 * 24 * time.Hour
	c.Session.Redis.Prefix = "reclaim:session:"

	c.Database.Driver = DriverPostgres
	c.Database.Host = "localhost"
	c.Database.Port = 5432
	c.Database.User = "postgres"
	c.Database.Name = "reclaim"
	c.Database.SSLMode = "disable"

	c.Minio.Endpoint = "localhost:9000"
	c.Minio.BucketName = "evidence-files"
	c.Minio.ReportBucket = "evidence-reports"
	c.Minio.Region = "us-east-1"

	c.AI.Provider = AIProviderSimulated
	c.AI.Model = "gpt-4o-mini"

	c.RateLimit.RPS = 2
	c.RateLimit.Burst = 10
	return &c
}

// Load reads .env (if any), the yaml file at path (a missing file keeps the
// defaults), then applies environment overrides.
func Load(path string) (*Config, error) {
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
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(c *Config) {
	setString(&c.Backend.URL, "BACKEND_URL")
	setString(&c.Backend.AnonKey, "BACKEND_ANON_KEY")
	setString(&c.Backend.Mode, "BACKEND_MODE")
	setString(&c.Auth.JWTSecret, "AUTH_JWT_SECRET")
	setString(&c.AI.APIKey, "OPENAI_API_KEY")
	setString(&c.AI.Provider, "AI_PROVIDER")
	setString(&c.Database.Password, "DATABASE_PASSWORD")
	setString(&c.Database.Host, "DATABASE_HOST")
	setString(&c.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Session.Redis.Addr, "REDIS_ADDR")
	setString(&c.Session.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Log.Mode, "LOG_MODE")
	setInt(&c.Server.Port, "SERVER_PORT")
	setInt(&c.Functions.Port, "FUNCTIONS_PORT")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

// Validate rejects configurations that cannot start.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 {
		errs = append(errs, errors.New("server.port must be positive"))
	}
	if strings.TrimSpace(c.Backend.URL) == "" {
		errs = append(errs, errors.New("backend.url is required"))
	}
	switch c.Backend.Mode {
	case BackendModeREST, BackendModeDirect:
	default:
		errs = append(errs, fmt.Errorf("backend.mode %q: want %q or %q", c.Backend.Mode, BackendModeREST, BackendModeDirect))
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverMySQL:
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: want %q or %q", c.Database.Driver, DriverPostgres, DriverMySQL))
	}
	switch c.AI.Provider {
	case AIProviderSimulated:
	case AIProviderOpenAI:
		if c.AI.APIKey == "" {
			errs = append(errs, errors.New("ai.apiKey is required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("ai.provider %q: want %q or %q", c.AI.Provider, AIProviderSimulated, AIProviderOpenAI))
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("rateLimit.rps and rateLimit.burst must be positive"))
	}
	return errors.Join(errs...)
}

// MySQLDSN builds the go-sql-driver DSN.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// DSN picks the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.Database.Driver == DriverMySQL {
		return c.MySQLDSN()
	}
	return c.PostgresDSN()
}
