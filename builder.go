package authcore

import (
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/semaphore"

	internalaudit "github.com/trackforge/authcore/internal/audit"
	"github.com/trackforge/authcore/internal/limiters"
	"github.com/trackforge/authcore/internal/rate"
	"github.com/trackforge/authcore/jwt"
	"github.com/trackforge/authcore/password"
	"github.com/trackforge/authcore/revocation"
	"github.com/trackforge/authcore/session"
)

// Builder assembles an [Engine]. Configure it once during start-up and call
// Build exactly once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users     UserRepository
	auditSink AuditSink
	logger    *slog.Logger

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client shared by the session store, the blacklist and
// the rate limiter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserRepository sets the user record store.
func (b *Builder) WithUserRepository(users UserRepository) *Builder {
	b.users = users
	return b
}

// WithAuditSink sets the sink behind the audit dispatcher. It only takes
// effect when Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the stores.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user repository required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- PASSWORD HASHER --------
	hasher, err := password.NewArgon2(cfg.Password.hasherConfig())
	if err != nil {
		return nil, err
	}

	// -------- JWT MANAGER --------
	tokens, err := jwt.NewManager(jwt.Config{
		Algorithm:  jwt.Algorithm(cfg.JWT.Algorithm),
		Secret:     cfg.JWT.Secret,
		PrivateKey: cfg.JWT.PrivateKey,
		PublicKey:  cfg.JWT.PublicKey,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Issuer:     cfg.JWT.Issuer,
		Leeway:     cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}
	if tokens.Fallback() {
		logger.Warn("jwt signing fell back to HS256",
			slog.String("requested", cfg.JWT.Algorithm),
			slog.Bool("random_secret", len(cfg.JWT.Secret) == 0),
		)
	}

	var auditSink AuditSink = NoOpSink{}
	if b.auditSink != nil {
		auditSink = b.auditSink
	}

	e := &Engine{
		config:    cfg,
		users:     b.users,
		sessions:  session.NewStore(b.redis, cfg.Session.RedisPrefix),
		blacklist: revocation.NewStore(b.redis, cfg.Session.BlacklistPrefix),
		limiter:   rate.New(b.redis, cfg.RateLimit.RedisPrefix, logger),
		lockout: limiters.LockoutPolicy{
			Threshold: cfg.Lockout.Threshold,
			Duration:  cfg.Lockout.Duration,
		},
		hasher:   hasher,
		hashGate: semaphore.NewWeighted(cfg.Password.concurrency()),
		tokens:   tokens,
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			Logger:     logger,
		}, auditSink),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger.With(slog.String("component", "authcore")),
		now:     time.Now,
	}

	b.built = true
	return e, nil
}
