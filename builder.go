package mentorbridge

import (
	"errors"
	"io"
	"time"

	"github.com/mentorbridge/mentorbridge/booking"
	internalaudit "github.com/mentorbridge/mentorbridge/internal/audit"
	"github.com/mentorbridge/mentorbridge/internal/rate"
	"github.com/mentorbridge/mentorbridge/jwt"
	"github.com/mentorbridge/mentorbridge/password"
	"github.com/mentorbridge/mentorbridge/permission"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Builder assembles an [Engine]. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	credentials  CredentialStore
	messages     MessageStore
	feedback     FeedbackStore
	bookingStore booking.Store
	capabilities *permission.Table

	auditSink AuditSink
	logger    logrus.FieldLogger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used for bookings, rate limits and token
// versions.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the user store. Required.
func (b *Builder) WithCredentialStore(cs CredentialStore) *Builder {
	b.credentials = cs
	return b
}

// WithMessageStore enables SendMessage and ListMessages.
func (b *Builder) WithMessageStore(ms MessageStore) *Builder {
	b.messages = ms
	return b
}

// WithFeedbackStore enables SubmitFeedback and ListFeedback.
func (b *Builder) WithFeedbackStore(fs FeedbackStore) *Builder {
	b.feedback = fs
	return b
}

// WithBookingStore overrides the store selected by Config.Booking.Storage.
func (b *Builder) WithBookingStore(bs booking.Store) *Builder {
	b.bookingStore = bs
	return b
}

// WithCapabilities overrides [permission.DefaultTable]. The table is frozen
// by Build.
func (b *Builder) WithCapabilities(t *permission.Table) *Builder {
	b.capabilities = t
	return b
}

// WithAuditSink sets the sink for audit events. Auditing still requires
// Config.Audit.Enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for backend failures. Nil discards.
func (b *Builder) WithLogger(l logrus.FieldLogger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides time.Now for token issuance, validation and
// timestamps. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil {
		if b.bookingStore == nil && cfg.Booking.Storage == "redis" {
			return nil, errors.New("redis client required for redis booking storage")
		}
		if cfg.Revocation.Enabled {
			return nil, errors.New("Revocation requires redis client")
		}
		if cfg.Security.MaxLoginAttempts > 0 || cfg.Security.MaxRegisterAttempts > 0 {
			return nil, errors.New("rate limits require redis client")
		}
	}

	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	logger := b.logger
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}

	// -------- CAPABILITIES --------
	table := b.capabilities
	if table == nil {
		table = permission.DefaultTable()
	}
	table.Freeze()

	// -------- BOOKINGS --------
	store := b.bookingStore
	if store == nil {
		switch cfg.Booking.Storage {
		case "memory":
			store = booking.NewMemoryStore()
		default:
			store = booking.NewRedisStore(b.redis, cfg.Booking.RedisPrefix)
		}
	}

	engine := &Engine{
		config:       cloneConfig(cfg),
		credentials:  b.credentials,
		messages:     b.messages,
		feedback:     b.feedback,
		capabilities: table,
		logger:       logger,
		now:          now,
	}

	machine, err := booking.NewMachine(
		store,
		credentialDirectory{store: b.credentials},
		cfg.Booking.policy(),
		booking.WithClock(now),
	)
	if err != nil {
		return nil, err
	}
	engine.bookings = machine

	if b.redis != nil {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle:         cfg.Security.EnableIPThrottle,
			MaxLoginAttempts:         cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration:    cfg.Security.LoginCooldownDuration,
			MaxRegisterAttempts:      cfg.Security.MaxRegisterAttempts,
			RegisterCooldownDuration: cfg.Security.RegisterCooldownDuration,
		})
	}
	if cfg.Revocation.Enabled {
		engine.versions = newTokenVersions(b.redis, cfg.Revocation.KeyPrefix)
	}

	engine.metrics = NewMetrics(cfg.Metrics)

	ph, err := password.NewHasher(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MinPasswordBytes: cfg.Password.MinPasswordBytes,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		RequireIAT:    cfg.JWT.RequireIAT,
		KeyID:         cfg.JWT.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	// Started last: nothing below can fail and leave the goroutine running.
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Retain:     retainedAuditEvents,
	}, b.auditSink)

	b.built = true

	return engine, nil
}
