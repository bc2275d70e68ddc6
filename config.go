package authcore

import (
	"errors"
	"runtime"
	"time"

	"github.com/trackforge/authcore/jwt"
	"github.com/trackforge/authcore/password"
)

// Config holds every tunable of the Engine. Start from [DefaultConfig] and
// override fields; [Builder.Build] calls [Config.Validate].
type Config struct {
	JWT       JWTConfig
	Session   SessionConfig
	Password  PasswordConfig
	Lockout   LockoutConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig selects the signing algorithm and token lifetimes.
//
// RS256 and EdDSA need PrivateKey (PEM). Without it the Engine falls back to
// HS256 over Secret, and to a random per-process secret when Secret is empty.
type JWTConfig struct {
	Algorithm  string // "HS256" (default), "RS256", "EdDSA"
	Secret     []byte
	PrivateKey []byte
	PublicKey  []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Leeway     time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig sets the Redis key namespaces.
type SessionConfig struct {
	RedisPrefix     string
	BlacklistPrefix string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the Argon2id parameters.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
	// MaxConcurrent bounds simultaneous hash computations. 0 means GOMAXPROCS.
	MaxConcurrent int
}

/*
====================================
SECURITY CONFIG
====================================
*/

// LockoutConfig locks an account for Duration once FailedLoginAttempts
// reaches Threshold. A zero Threshold disables lockout.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

// RateLimitConfig sizes the sliding windows used by AllowLogin and AllowRequest.
type RateLimitConfig struct {
	RedisPrefix      string
	LoginMaxRequests int
	LoginWindow      time.Duration
	APIMaxRequests   int
	APIWindow        time.Duration
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults: 15 minute access tokens,
// 7 day refresh tokens, lockout after 5 failures for 15 minutes, 5 logins per
// minute per IP and 100 API requests per minute.
func DefaultConfig() Config {
	pw := password.DefaultConfig()

	return Config{
		JWT: JWTConfig{
			Algorithm:  string(jwt.HS256),
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Session: SessionConfig{
			RedisPrefix:     "session",
			BlacklistPrefix: "blacklist",
		},
		Password: PasswordConfig{
			Memory:         pw.Memory,
			Time:           pw.Time,
			Parallelism:    pw.Parallelism,
			SaltLength:     pw.SaltLength,
			KeyLength:      pw.KeyLength,
			UpgradeOnLogin: true,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RedisPrefix:      "ratelimit",
			LoginMaxRequests: 5,
			LoginWindow:      time.Minute,
			APIMaxRequests:   100,
			APIWindow:        time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c PasswordConfig) hasherConfig() password.Config {
	return password.Config{
		Memory:      c.Memory,
		Time:        c.Time,
		Parallelism: c.Parallelism,
		SaltLength:  c.SaltLength,
		KeyLength:   c.KeyLength,
	}
}

func (c PasswordConfig) concurrency() int64 {
	if c.MaxConcurrent > 0 {
		return int64(c.MaxConcurrent)
	}
	return int64(runtime.GOMAXPROCS(0))
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must exceed AccessTTL")
	}
	switch jwt.Algorithm(c.JWT.Algorithm) {
	case "", jwt.HS256, jwt.RS256, jwt.EdDSA:
	default:
		return errors.New("JWT Algorithm must be HS256, RS256 or EdDSA")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	if c.Password.MaxConcurrent < 0 {
		return errors.New("Password MaxConcurrent must be >= 0")
	}

	if c.Lockout.Threshold < 0 {
		return errors.New("Lockout Threshold must be >= 0")
	}
	if c.Lockout.Threshold > 0 && c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0 when Threshold is set")
	}

	if c.RateLimit.LoginMaxRequests < 0 || c.RateLimit.APIMaxRequests < 0 {
		return errors.New("RateLimit max requests must be >= 0")
	}
	if c.RateLimit.LoginMaxRequests > 0 && c.RateLimit.LoginWindow <= 0 {
		return errors.New("RateLimit LoginWindow must be > 0")
	}
	if c.RateLimit.APIMaxRequests > 0 && c.RateLimit.APIWindow <= 0 {
		return errors.New("RateLimit APIWindow must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Session.RedisPrefix != "" && c.Session.RedisPrefix == c.Session.BlacklistPrefix {
		return errors.New("Session RedisPrefix and BlacklistPrefix must differ")
	}

	return nil
}
