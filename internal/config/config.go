package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DriverSupabase = "supabase"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port           string `yaml:"port" env:"PORT" env-default:"8080"`
	Environment    string `yaml:"environment" env:"ENVIRONMENT" env-default:"development"`
	LogLevel       string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	FrontendURL    string `yaml:"frontend_url" env:"FRONTEND_URL" env-default:"http://localhost:3000"`
	DatabaseDriver string `yaml:"database_driver" env:"DATABASE_DRIVER" env-default:"supabase"`

	Supabase   SupabaseConfig   `yaml:"supabase"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Mongo      MongoConfig      `yaml:"mongo"`
	Redis      RedisConfig      `yaml:"redis"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Cloudinary CloudinaryConfig `yaml:"cloudinary"`
	Auth       AuthConfig       `yaml:"auth"`
	Payments   PaymentsConfig   `yaml:"payments"`
}

type SupabaseConfig struct {
	URL     string `yaml:"url" env:"SUPABASE_URL"`
	AnonKey string `yaml:"anon_key" env:"SUPABASE_URL_ANON_KEY"`
}

type PostgresConfig struct {
	URL           string `yaml:"url" env:"DATABASE_URL"`
	RunMigrations bool   `yaml:"run_migrations" env:"DB_RUN_MIGRATIONS" env-default:"false"`
	MaxOpenConns  int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"10"`
}

type MongoConfig struct {
	URI      string `yaml:"uri" env:"MONGODB_URI"`
	Password string `yaml:"password" env:"MONGODB_PASSWORD"`
	Database string `yaml:"database" env:"MONGODB_DATABASE" env-default:"rondpoint"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	TTL      time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"60s"`
}

type RabbitMQConfig struct {
	URL string `yaml:"url" env:"RABBITMQ_URL"`
}

type CloudinaryConfig struct {
	CloudName string `yaml:"cloud_name" env:"CLOUDINARY_CLOUD_NAME"`
	APIKey    string `yaml:"api_key" env:"CLOUDINARY_API_KEY"`
	APISecret string `yaml:"api_secret" env:"CLOUDINARY_API_SECRET"`
}

// AuthConfig picks the token verifier. A JWT secret selects HMAC, otherwise
// the Supabase JWKS endpoint is used.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"SUPABASE_JWT_SECRET"`
	JWKSURL   string `yaml:"jwks_url" env:"SUPABASE_JWKS_URL"`
	Audience  string `yaml:"audience" env:"JWT_AUDIENCE" env-default:"authenticated"`
}

type PaymentsConfig struct {
	WebhookSecret  string `yaml:"webhook_secret" env:"PAYMENT_WEBHOOK_SECRET"`
	SandboxOutcome string `yaml:"sandbox_outcome" env:"PAYMENT_SANDBOX_OUTCOME" env-default:"completed"`
}

// LoadConfig reads CONFIG_PATH when set, then lets the environment override it.
func LoadConfig() (*Config, error) {
	var cfg Config
	var err error
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the selected driver cannot run without.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverSupabase:
		if c.Supabase.URL == "" {
			return fmt.Errorf("SUPABASE_URL is required")
		}
		if c.Supabase.AnonKey == "" {
			return fmt.Errorf("SUPABASE_URL_ANON_KEY is required")
		}
		if c.Mongo.URI == "" {
			return fmt.Errorf("MONGODB_URI is required")
		}
	case DriverPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
		if c.Mongo.URI == "" {
			return fmt.Errorf("MONGODB_URI is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.Auth.JWTSecret == "" && c.JWKSURL() == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET or SUPABASE_JWKS_URL is required")
	}
	if c.IsProduction() && c.Payments.WebhookSecret == "" {
		return fmt.Errorf("PAYMENT_WEBHOOK_SECRET is required in production")
	}
	return nil
}

// JWKSURL falls back to the project's well-known key set.
func (c *Config) JWKSURL() string {
	if c.Auth.JWKSURL != "" {
		return c.Auth.JWKSURL
	}
	if c.Supabase.URL == "" {
		return ""
	}
	return strings.TrimRight(c.Supabase.URL, "/") + "/auth/v1/.well-known/jwks.json"
}

// MongoURI fills the <password> placeholder Atlas connection strings carry.
func (c *Config) MongoURI() string {
	return strings.Replace(c.Mongo.URI, "<password>", c.Mongo.Password, 1)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
