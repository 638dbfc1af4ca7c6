// Package settings loads service configuration from YAML and MB_*
// environment variables.
package settings

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mentorbridge/mentorbridge"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MB_SERVER_ADDR.
const EnvPrefix = "MB"

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"`
	DSN        string `mapstructure:"dsn"`
	LogQueries bool   `mapstructure:"log_queries"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// Embedded runs an in-process miniredis instead of dialing Addr.
	Embedded bool `mapstructure:"embedded"`
}

type AuthConfig struct {
	Secret            string        `mapstructure:"secret"`
	PrivateKeyFile    string        `mapstructure:"private_key_file"`
	PublicKeyFile     string        `mapstructure:"public_key_file"`
	SigningMethod     string        `mapstructure:"signing_method"`
	AccessTTL         time.Duration `mapstructure:"access_ttl"`
	Issuer            string        `mapstructure:"issuer"`
	Audience          string        `mapstructure:"audience"`
	Revocation        bool          `mapstructure:"revocation"`
	MaxLoginAttempts  int           `mapstructure:"max_login_attempts"`
	LoginCooldown     time.Duration `mapstructure:"login_cooldown"`
	LoginIPThrottle   bool          `mapstructure:"login_ip_throttle"`
	MaxRegisterPerIP  int           `mapstructure:"max_register_per_ip"`
	RegisterCooldown  time.Duration `mapstructure:"register_cooldown"`
	MinPasswordLength int           `mapstructure:"min_password_length"`
	Argon2MemoryKB    uint32        `mapstructure:"argon2_memory_kb"`
	Argon2Iterations  uint32        `mapstructure:"argon2_iterations"`
	Argon2Parallelism uint8         `mapstructure:"argon2_parallelism"`
	UpgradeLegacyHash bool          `mapstructure:"upgrade_legacy_hash"`
}

type BookingConfig struct {
	Storage                 string `mapstructure:"storage"`
	StudentMayCancelPending bool   `mapstructure:"student_may_cancel_pending"`
	CompletionActors        string `mapstructure:"completion_actors"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
	File   string `mapstructure:"file"`
}

type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
}

type MetricsConfig struct {
	Enabled    bool       `mapstructure:"enabled"`
	Histograms bool       `mapstructure:"histograms"`
	OTel       OTelConfig `mapstructure:"otel"`
}

// OTelConfig publishes the engine counters through an OpenTelemetry
// MeterProvider whose periodic reader logs every collection.
type OTelConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// Settings is the whole service configuration.
type Settings struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Booking  BookingConfig  `mapstructure:"booking"`
	Log      LogConfig      `mapstructure:"log"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	engine := mentorbridge.DefaultConfig()

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "mentorbridge.db")
	v.SetDefault("database.log_queries", false)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.embedded", false)

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.private_key_file", "")
	v.SetDefault("auth.public_key_file", "")
	v.SetDefault("auth.signing_method", engine.JWT.SigningMethod)
	v.SetDefault("auth.access_ttl", engine.JWT.AccessTTL)
	v.SetDefault("auth.issuer", engine.JWT.Issuer)
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.revocation", engine.Revocation.Enabled)
	v.SetDefault("auth.max_login_attempts", engine.Security.MaxLoginAttempts)
	v.SetDefault("auth.login_cooldown", engine.Security.LoginCooldownDuration)
	v.SetDefault("auth.login_ip_throttle", engine.Security.EnableIPThrottle)
	v.SetDefault("auth.max_register_per_ip", engine.Security.MaxRegisterAttempts)
	v.SetDefault("auth.register_cooldown", engine.Security.RegisterCooldownDuration)
	v.SetDefault("auth.min_password_length", engine.Password.MinPasswordBytes)
	v.SetDefault("auth.argon2_memory_kb", engine.Password.Memory)
	v.SetDefault("auth.argon2_iterations", engine.Password.Time)
	v.SetDefault("auth.argon2_parallelism", engine.Password.Parallelism)
	v.SetDefault("auth.upgrade_legacy_hash", engine.Password.UpgradeOnLogin)

	v.SetDefault("booking.storage", engine.Booking.Storage)
	v.SetDefault("booking.student_may_cancel_pending", engine.Booking.StudentMayCancelPending)
	v.SetDefault("booking.completion_actors", engine.Booking.CompletionActors)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "")

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.buffer_size", engine.Audit.BufferSize)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.histograms", true)
	v.SetDefault("metrics.otel.enabled", false)
	v.SetDefault("metrics.otel.interval", time.Minute)
}

// Load reads path (YAML) when given, otherwise an optional ./mentorbridge.yaml,
// then applies MB_* environment overrides.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mentorbridge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/mentorbridge")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &s, nil
}

// EngineConfig maps the settings onto an engine [mentorbridge.Config].
// Key files are read here.
func (s *Settings) EngineConfig() (mentorbridge.Config, error) {
	cfg := mentorbridge.DefaultConfig()

	cfg.JWT.SigningMethod = strings.ToLower(s.Auth.SigningMethod)
	cfg.JWT.AccessTTL = s.Auth.AccessTTL
	cfg.JWT.Issuer = s.Auth.Issuer
	cfg.JWT.Audience = s.Auth.Audience
	switch cfg.JWT.SigningMethod {
	case "ed25519":
		priv, err := os.ReadFile(s.Auth.PrivateKeyFile)
		if err != nil {
			return mentorbridge.Config{}, fmt.Errorf("read private key: %w", err)
		}
		pub, err := os.ReadFile(s.Auth.PublicKeyFile)
		if err != nil {
			return mentorbridge.Config{}, fmt.Errorf("read public key: %w", err)
		}
		cfg.JWT.PrivateKey, cfg.JWT.PublicKey = priv, pub
	default:
		cfg.JWT.PrivateKey = []byte(s.Auth.Secret)
	}

	cfg.Password.MinPasswordBytes = s.Auth.MinPasswordLength
	cfg.Password.Memory = s.Auth.Argon2MemoryKB
	cfg.Password.Time = s.Auth.Argon2Iterations
	cfg.Password.Parallelism = s.Auth.Argon2Parallelism
	cfg.Password.UpgradeOnLogin = s.Auth.UpgradeLegacyHash

	cfg.Security.MaxLoginAttempts = s.Auth.MaxLoginAttempts
	cfg.Security.LoginCooldownDuration = s.Auth.LoginCooldown
	cfg.Security.MaxRegisterAttempts = s.Auth.MaxRegisterPerIP
	cfg.Security.RegisterCooldownDuration = s.Auth.RegisterCooldown
	cfg.Security.EnableIPThrottle = s.Auth.LoginIPThrottle

	cfg.Revocation.Enabled = s.Auth.Revocation

	cfg.Booking.Storage = strings.ToLower(s.Booking.Storage)
	cfg.Booking.StudentMayCancelPending = s.Booking.StudentMayCancelPending
	cfg.Booking.CompletionActors = s.Booking.CompletionActors

	cfg.Audit.Enabled = s.Audit.Enabled
	cfg.Audit.BufferSize = s.Audit.BufferSize

	cfg.Metrics.Enabled = s.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = s.Metrics.Histograms

	if err := cfg.Validate(); err != nil {
		return mentorbridge.Config{}, fmt.Errorf("engine config: %w", err)
	}
	return cfg, nil
}
