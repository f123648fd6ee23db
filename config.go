package slateauth

import (
	"errors"
	"time"

	"github.com/slatekit/slateauth/jwt"
	"github.com/slatekit/slateauth/password"
	"github.com/slatekit/slateauth/permission"
	"github.com/slatekit/slateauth/store"
)

// Config is the full engine configuration. Obtain one from [DefaultConfig],
// adjust fields, and pass it to [Builder.WithConfig]. The builder clones it;
// later changes to the caller's copy have no effect.
type Config struct {
	Token      TokenConfig
	Password   PasswordConfig
	Store      StoreConfig
	Namespaces NamespaceConfig
	Account    AccountConfig
	Throttle   ThrottleConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures the default [jwt.Manager]. It is ignored when a
// signer is supplied through [Builder.WithTokens].
type TokenConfig struct {
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	TTL           time.Duration
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig configures the default Argon2id hasher. It is ignored
// when a hasher is supplied through [Builder.WithHasher].
type PasswordConfig struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig sets the persistence policy of the engine's store.
type StoreConfig struct {
	EagerPersist    bool
	CreateIfMissing bool
}

// NamespaceConfig names the three namespaces the engine writes.
type NamespaceConfig struct {
	Accounts  string
	Data      string
	Nicknames string
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig controls sign-up.
type AccountConfig struct {
	// SignUpEnabled gates new account creation.
	SignUpEnabled bool
	// DefaultFlags are granted to every new account in addition to User.
	DefaultFlags      permission.Flags
	MaxUsernameLength int
	MaxNicknameLength int
}

// ThrottleConfig limits failed sign-ins per username in fixed windows. It
// needs a Redis client from [Builder.WithThrottleRedis].
type ThrottleConfig struct {
	Enabled     bool
	MaxAttempts int
	Cooldown    time.Duration
	KeyPrefix   string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	argon := password.DefaultConfig()
	storeCfg := store.DefaultConfig()
	return Config{
		Token: TokenConfig{
			SigningMethod: string(jwt.MethodHS256),
			Issuer:        jwt.DefaultIssuer,
			Audience:      jwt.DefaultAudience,
			TTL:           jwt.DefaultTTL,
		},
		Password: PasswordConfig{
			Memory:           argon.Memory,
			Time:             argon.Time,
			Parallelism:      argon.Parallelism,
			SaltLength:       argon.SaltLength,
			KeyLength:        argon.KeyLength,
			MaxPasswordBytes: argon.MaxPasswordBytes,
		},
		Store: StoreConfig{
			EagerPersist:    storeCfg.EagerPersist,
			CreateIfMissing: storeCfg.CreateIfMissing,
		},
		Namespaces: NamespaceConfig{
			Accounts:  "users-accounts",
			Data:      "users-data",
			Nicknames: "users-nicknames",
		},
		Account: AccountConfig{
			SignUpEnabled:     true,
			MaxUsernameLength: 64,
			MaxNicknameLength: 64,
		},
		Throttle: ThrottleConfig{
			Enabled:     false,
			MaxAttempts: 5,
			Cooldown:    15 * time.Minute,
			KeyPrefix:   "slateauth:rl",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c Config) jwtConfig() jwt.Config {
	return jwt.Config{
		SigningMethod: jwt.SigningMethod(c.Token.SigningMethod),
		PrivateKey:    c.Token.PrivateKey,
		PublicKey:     c.Token.PublicKey,
		Issuer:        c.Token.Issuer,
		Audience:      c.Token.Audience,
		TTL:           c.Token.TTL,
		Leeway:        c.Token.Leeway,
	}
}

func (c Config) argonConfig() password.Config {
	return password.Config{
		Memory:           c.Password.Memory,
		Time:             c.Password.Time,
		Parallelism:      c.Password.Parallelism,
		SaltLength:       c.Password.SaltLength,
		KeyLength:        c.Password.KeyLength,
		MaxPasswordBytes: c.Password.MaxPasswordBytes,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first structural problem in c. Capability-specific
// checks (key material, cost parameters) run when Build constructs them.
func (c *Config) Validate() error {
	// Token
	switch c.Token.SigningMethod {
	case "", string(jwt.MethodHS256), string(jwt.MethodEd25519):
	default:
		return errors.New("unsupported token signing method")
	}
	if c.Token.TTL < 0 {
		return errors.New("Token TTL must be >= 0")
	}
	if c.Token.Leeway < 0 {
		return errors.New("Token Leeway must be >= 0")
	}

	// Namespaces
	ns := c.Namespaces
	if ns.Accounts == "" || ns.Data == "" || ns.Nicknames == "" {
		return errors.New("namespace names must be non-empty")
	}
	if ns.Accounts == ns.Data || ns.Accounts == ns.Nicknames || ns.Data == ns.Nicknames {
		return errors.New("namespace names must be distinct")
	}

	// Account
	if c.Account.MaxUsernameLength <= 0 {
		return errors.New("Account MaxUsernameLength must be > 0")
	}
	if c.Account.MaxNicknameLength <= 0 {
		return errors.New("Account MaxNicknameLength must be > 0")
	}

	// Throttle
	if c.Throttle.Enabled {
		if c.Throttle.MaxAttempts <= 0 {
			return errors.New("Throttle MaxAttempts must be > 0 when enabled")
		}
		if c.Throttle.Cooldown <= 0 {
			return errors.New("Throttle Cooldown must be > 0 when enabled")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
