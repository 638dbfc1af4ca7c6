package mentorbridge

import (
	"errors"
	"strings"
	"time"

	"github.com/mentorbridge/mentorbridge/booking"
)

// Config holds every Engine tunable. Start from [DefaultConfig] and
// override fields; Build validates the result.
type Config struct {
	JWT        JWTConfig
	Password   PasswordConfig
	Security   SecurityConfig
	Booking    BookingConfig
	Revocation RevocationConfig
	Messages   MessagesConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls token signing and verification.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	RequireIAT    bool
	KeyID         string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig controls Argon2id cost and plaintext length bounds.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MinPasswordBytes int
	MaxPasswordBytes int
	UpgradeOnLogin   bool
}

// SecurityConfig controls login and registration throttling.
type SecurityConfig struct {
	EnableIPThrottle         bool
	MaxLoginAttempts         int
	LoginCooldownDuration    time.Duration
	MaxRegisterAttempts      int
	RegisterCooldownDuration time.Duration
}

// BookingConfig selects the booking store and the transition policy.
type BookingConfig struct {
	Storage                 string // "redis" (default) or "memory"
	RedisPrefix             string
	StudentMayCancelPending bool
	CompletionActors        string // "participants" (default) or "mentor"
}

// RevocationConfig enables server-side RevokeAll through per-user token
// versions in Redis. Disabled by default: tokens then stay valid until
// natural expiry and logout is client-side only.
type RevocationConfig struct {
	Enabled   bool
	KeyPrefix string
}

// MessagesConfig bounds message content.
type MessagesConfig struct {
	MaxLength int
}

// AuditConfig controls the async audit dispatcher.
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

// DefaultConfig returns the production defaults. JWT keys are left empty.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     72 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "mentorbridge",
			RequireIAT:    true,
		},
		Password: PasswordConfig{
			Memory:           65536,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MinPasswordBytes: 8,
			MaxPasswordBytes: 1024,
			UpgradeOnLogin:   true,
		},
		Security: SecurityConfig{
			EnableIPThrottle:         false,
			MaxLoginAttempts:         5,
			LoginCooldownDuration:    15 * time.Minute,
			MaxRegisterAttempts:      10,
			RegisterCooldownDuration: time.Hour,
		},
		Booking: BookingConfig{
			Storage:                 "redis",
			RedisPrefix:             "mb",
			StudentMayCancelPending: true,
			CompletionActors:        string(booking.CompleteByParticipants),
		},
		Revocation: RevocationConfig{
			Enabled:   false,
			KeyPrefix: "tv",
		},
		Messages: MessagesConfig{
			MaxLength: 4000,
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
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
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

func (c BookingConfig) policy() booking.Policy {
	return booking.Policy{
		StudentMayCancelPending: c.StudentMayCancelPending,
		CompletionActors:        booking.CompletionActors(strings.ToLower(c.CompletionActors)),
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < 16 {
		return errors.New("hs256 requires a PrivateKey of at least 16 bytes")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinPasswordBytes < 1 {
		return errors.New("Password MinPasswordBytes must be >= 1")
	}
	if c.Password.MaxPasswordBytes < c.Password.MinPasswordBytes {
		return errors.New("Password MaxPasswordBytes must be >= MinPasswordBytes")
	}

	// Security
	if c.Security.MaxLoginAttempts < 0 || c.Security.MaxRegisterAttempts < 0 {
		return errors.New("Security attempt limits must be >= 0")
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security LoginCooldownDuration must be > 0 when MaxLoginAttempts is set")
	}
	if c.Security.MaxRegisterAttempts > 0 && c.Security.RegisterCooldownDuration <= 0 {
		return errors.New("Security RegisterCooldownDuration must be > 0 when MaxRegisterAttempts is set")
	}

	// Booking
	switch c.Booking.Storage {
	case "redis", "memory":
	default:
		return errors.New("Booking Storage must be 'redis' or 'memory'")
	}
	if c.Booking.Storage == "redis" && strings.TrimSpace(c.Booking.RedisPrefix) == "" {
		return errors.New("Booking RedisPrefix must not be empty")
	}
	if err := c.Booking.policy().Validate(); err != nil {
		return errors.New("Booking CompletionActors must be 'participants' or 'mentor'")
	}

	// Revocation
	if c.Revocation.Enabled && strings.TrimSpace(c.Revocation.KeyPrefix) == "" {
		return errors.New("Revocation KeyPrefix must not be empty")
	}

	// Messages
	if c.Messages.MaxLength <= 0 {
		return errors.New("Messages MaxLength must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}
