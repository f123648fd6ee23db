package slateauth

import (
	"errors"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/slatekit/slateauth/internal/audit"
	"github.com/slatekit/slateauth/internal/rate"
	"github.com/slatekit/slateauth/jwt"
	"github.com/slatekit/slateauth/password"
	"github.com/slatekit/slateauth/permission"
	"github.com/slatekit/slateauth/store"
)

// Builder assembles an [Engine]. Every capability is optional: the
// defaults are an Argon2id hasher, an HS256 [jwt.Manager] and a store over
// an in-memory backend.
//
// A Builder is single-use; a second Build call fails.
type Builder struct {
	config  Config
	backend store.Backend
	hasher  password.Hasher
	tokens  TokenSigner
	logger  *slog.Logger
	redis   redis.UniversalClient

	flagNames []string
	auditSink AuditSink

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBackend sets the storage backend behind the engine's [store.Store].
func (b *Builder) WithBackend(backend store.Backend) *Builder {
	b.backend = backend
	return b
}

// WithThrottleRedis sets the Redis client used by the sign-in throttle
// and enables it.
func (b *Builder) WithThrottleRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	b.config.Throttle.Enabled = client != nil
	return b
}

// WithHasher replaces the default Argon2id hasher.
func (b *Builder) WithHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

// WithTokens replaces the default token manager.
func (b *Builder) WithTokens(t TokenSigner) *Builder {
	b.tokens = t
	return b
}

// WithLogger sets the structured logger. The default discards output.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithFlags registers custom flag names, assigned bits in order after the
// built-in user and admin bits.
func (b *Builder) WithFlags(names ...string) *Builder {
	b.flagNames = append(b.flagNames, names...)
	return b
}

// WithAuditSink enables auditing and routes events to sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the sign-in latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Throttle.Enabled && b.redis == nil {
		return nil, errors.New("Throttle requires a Redis client")
	}

	// -------- FLAGS --------
	registry := permission.NewRegistry()
	for _, name := range b.flagNames {
		if _, err := registry.Register(name); err != nil {
			return nil, err
		}
	}
	registry.Freeze()

	// -------- CAPABILITIES --------
	hasher := b.hasher
	if hasher == nil {
		h, err := password.NewArgon2(cfg.argonConfig())
		if err != nil {
			return nil, err
		}
		hasher = h
	}

	tokens := b.tokens
	if tokens == nil {
		m, err := jwt.NewManager(cfg.jwtConfig())
		if err != nil {
			return nil, err
		}
		tokens = m
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	backend := b.backend
	if backend == nil {
		backend = store.NewMemoryBackend()
	}

	engine := &Engine{
		config:  cfg,
		hasher:  hasher,
		tokens:  tokens,
		flags:   registry,
		logger:  logger,
		metrics: NewMetrics(cfg.Metrics),
	}

	// -------- STORE --------
	engine.store = store.New(backend,
		store.Config{
			EagerPersist:    cfg.Store.EagerPersist,
			CreateIfMissing: cfg.Store.CreateIfMissing,
		},
		store.WithLogger(logger),
		store.WithDegradeHook(func(string) {
			engine.metrics.Inc(MetricStoreDegraded)
		}),
	)

	// -------- THROTTLE --------
	if cfg.Throttle.Enabled {
		engine.throttle = rate.New(b.redis, cfg.Throttle.KeyPrefix, rate.Config{
			MaxAttempts: cfg.Throttle.MaxAttempts,
			Cooldown:    cfg.Throttle.Cooldown,
		})
	}

	// -------- AUDIT --------
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Logger:     engine.logger,
	}, b.auditSink)

	b.built = true

	return engine, nil
}
