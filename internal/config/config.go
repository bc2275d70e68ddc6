// Package config loads the authd process configuration from a YAML file
// and the environment, and maps it onto [authcore.Config].
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/trackforge/authcore"
)

// Environments understood by cmd/authd when it picks a log handler.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Config is the root process configuration.
//
// Sources, highest priority first:
//  1. the explicit path given to Load (the --config flag);
//  2. the file named by CONFIG_PATH;
//  3. ./local.yaml;
//  4. environment variables only.
//
// Environment variables always overlay values read from a file, and a .env
// file in the working directory is loaded into the environment first.
type Config struct {
	Env      string         `yaml:"env" env:"APP_ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	Password PasswordConfig `yaml:"password"`
	Security SecurityConfig `yaml:"security"`
	DB       DBConfig       `yaml:"db"`
	Redis    RedisConfig    `yaml:"redis"`
	Audit    AuditConfig    `yaml:"audit"`
	Sentry   SentryConfig   `yaml:"sentry"`
	Log      LogConfig      `yaml:"log"`
}

// HTTPConfig is the listener of the HTTP server.
type HTTPConfig struct {
	Host            string        `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port            string        `yaml:"port" env:"HTTP_PORT" env-default:"8000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Addr returns host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// AuthConfig holds token signing and lifetimes. An empty private key makes
// the engine fall back to HS256 over Secret.
type AuthConfig struct {
	Algorithm       string        `yaml:"jwt_algorithm" env:"JWT_ALGORITHM" env-default:"RS256"`
	Secret          string        `yaml:"secret_key" env:"SECRET_KEY"`
	PrivateKey      string        `yaml:"jwt_private_key" env:"JWT_PRIVATE_KEY"`
	PublicKey       string        `yaml:"jwt_public_key" env:"JWT_PUBLIC_KEY"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"168h"`
	Issuer          string        `yaml:"issuer" env:"JWT_ISSUER" env-default:"trackforge"`
}

// PasswordConfig holds the Argon2id cost.
type PasswordConfig struct {
	MemoryKiB     uint32 `yaml:"memory_kib" env:"ARGON2_MEMORY_KIB" env-default:"65536"`
	Time          uint32 `yaml:"time" env:"ARGON2_TIME" env-default:"3"`
	Parallelism   uint8  `yaml:"parallelism" env:"ARGON2_PARALLELISM" env-default:"4"`
	MaxConcurrent int    `yaml:"max_concurrent" env:"ARGON2_MAX_CONCURRENT" env-default:"0"`
}

// SecurityConfig holds lockout and rate limit thresholds.
type SecurityConfig struct {
	LockoutThreshold      int           `yaml:"account_lockout_threshold" env:"ACCOUNT_LOCKOUT_THRESHOLD" env-default:"5"`
	LockoutDuration       time.Duration `yaml:"account_lockout_duration" env:"ACCOUNT_LOCKOUT_DURATION" env-default:"15m"`
	LoginRateLimit        int           `yaml:"login_rate_limit_per_minute" env:"LOGIN_RATE_LIMIT_PER_MINUTE" env-default:"5"`
	RateLimit             int           `yaml:"rate_limit_per_minute" env:"RATE_LIMIT_PER_MINUTE" env-default:"100"`
	TrustForwardedHeaders bool          `yaml:"trust_forwarded_headers" env:"TRUST_FORWARDED_HEADERS" env-default:"false"`
}

// DBConfig points at PostgreSQL. An empty URL selects the in-memory user
// repository.
type DBConfig struct {
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL"`
	MaxConns    int32  `yaml:"max_conns" env:"DATABASE_POOL_SIZE" env-default:"20"`
	Migrate     bool   `yaml:"migrate" env:"DATABASE_MIGRATE" env-default:"true"`
}

// RedisConfig points at the Redis used for sessions, revocations and rate
// limits.
type RedisConfig struct {
	URL      string `yaml:"redis_url" env:"REDIS_URL" env-default:"redis://localhost:6379/0"`
	Password string `yaml:"redis_password" env:"REDIS_PASSWORD"`
}

// AuditConfig toggles the asynchronous audit stream, written to the log.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled" env:"AUDIT_ENABLED" env-default:"true"`
	BufferSize int  `yaml:"buffer_size" env:"AUDIT_BUFFER_SIZE" env-default:"1024"`
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN string `yaml:"dsn" env:"SENTRY_DSN"`
}

// LogConfig overrides the level picked from Env.
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

// MustLoad is Load that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load reads the configuration with the priority documented on [Config].
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	var cfg Config

	readFile := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file does not exist: %s", p)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}
		return &cfg, nil
	}

	if path != "" {
		return readFile(path)
	}

	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return readFile(envPath)
	}

	if _, err := os.Stat("local.yaml"); err == nil {
		return readFile("local.yaml")
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}

	return &cfg, nil
}

// ToAuthConfig maps the process settings onto [authcore.Config], starting
// from [authcore.DefaultConfig] for everything not configurable here.
func (c *Config) ToAuthConfig() authcore.Config {
	out := authcore.DefaultConfig()

	out.JWT.Algorithm = c.Auth.Algorithm
	if c.Auth.Secret != "" {
		out.JWT.Secret = []byte(c.Auth.Secret)
	}
	if c.Auth.PrivateKey != "" {
		out.JWT.PrivateKey = []byte(c.Auth.PrivateKey)
	}
	if c.Auth.PublicKey != "" {
		out.JWT.PublicKey = []byte(c.Auth.PublicKey)
	}
	out.JWT.AccessTTL = c.Auth.AccessTokenTTL
	out.JWT.RefreshTTL = c.Auth.RefreshTokenTTL
	out.JWT.Issuer = c.Auth.Issuer

	out.Password.Memory = c.Password.MemoryKiB
	out.Password.Time = c.Password.Time
	out.Password.Parallelism = c.Password.Parallelism
	out.Password.MaxConcurrent = c.Password.MaxConcurrent

	out.Lockout.Threshold = c.Security.LockoutThreshold
	out.Lockout.Duration = c.Security.LockoutDuration

	out.RateLimit.LoginMaxRequests = c.Security.LoginRateLimit
	out.RateLimit.LoginWindow = time.Minute
	out.RateLimit.APIMaxRequests = c.Security.RateLimit
	out.RateLimit.APIWindow = time.Minute

	out.Audit.Enabled = c.Audit.Enabled
	out.Audit.BufferSize = c.Audit.BufferSize

	return out
}
