package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/arklim/directory-auth/internal/infra/security"
)

var errInvalidConfig = errors.New("config: invalid")

type AppConfig struct {
	App         AppSettings         `mapstructure:"app"`
	Postgres    PostgresSettings    `mapstructure:"postgres"`
	Redis       RedisSettings       `mapstructure:"redis"`
	Kafka       KafkaSettings       `mapstructure:"kafka"`
	JWT         JWTSettings         `mapstructure:"jwt"`
	StatusCache StatusCacheSettings `mapstructure:"status_cache"`
	CSRF        CSRFSettings        `mapstructure:"csrf"`
	Cookie      CookieSettings      `mapstructure:"cookie"`
	Authz       AuthzSettings       `mapstructure:"authz"`
	Telemetry   TelemetrySettings   `mapstructure:"telemetry"`
	Argon2      Argon2Settings      `mapstructure:"argon2"`
	Revocation  RevocationSettings  `mapstructure:"revocation"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// TrustForwardedFor takes the client origin from X-Forwarded-For. Enable it
	// only behind a proxy that strips or overwrites the header, otherwise clients
	// choose their own origin.
	TrustForwardedFor bool `mapstructure:"trust_forwarded_for"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Enabled          bool   `mapstructure:"enabled"`
	Host             string `mapstructure:"host"`
	Port             int    `mapstructure:"port"`
	DB               int    `mapstructure:"db"`
	Password         string `mapstructure:"password"`
	TLSEnabled       bool   `mapstructure:"tls_enabled"`
	RevocationPrefix string `mapstructure:"revocation_prefix"`
}

// KafkaSettings configures Kafka producer
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

// JWTSettings configures token issuance. SharedSecret is hex encoded.
type JWTSettings struct {
	SharedSecret    string        `mapstructure:"shared_secret"`
	Issuer          string        `mapstructure:"issuer"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// RefreshEnabled reports whether refresh tokens are issued.
func (s JWTSettings) RefreshEnabled() bool {
	return s.RefreshTokenTTL > 0
}

// StatusCacheSettings bounds the backend status cache. TTL <= 0 disables caching.
type StatusCacheSettings struct {
	TTL     time.Duration `mapstructure:"ttl"`
	MaxSize int           `mapstructure:"max_size"`
}

// CSRFSettings configures the double-submit guard.
type CSRFSettings struct {
	Name        string        `mapstructure:"name"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	ResyncTTL   time.Duration `mapstructure:"resync_ttl"`
	PathPattern string        `mapstructure:"path_pattern"`
}

type CookieSettings struct {
	Secure      bool   `mapstructure:"secure"`
	Domain      string `mapstructure:"domain"`
	Path        string `mapstructure:"path"`
	RefreshName string `mapstructure:"refresh_name"`
}

type AuthzSettings struct {
	AdminRole string `mapstructure:"admin_role"`
}

type TelemetrySettings struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// RevocationSettings controls how backend checks treat an unreachable revocation store.
type RevocationSettings struct {
	DegradationPolicy string `mapstructure:"degradation_policy"`
}

var configKeys = []string{
	"app.name",
	"app.env",
	"app.host",
	"app.port",
	"app.trust_forwarded_for",
	"postgres.host",
	"postgres.port",
	"postgres.user",
	"postgres.password",
	"postgres.database",
	"postgres.ssl_mode",
	"postgres.max_conns",
	"postgres.min_conns",
	"postgres.max_conn_lifetime",
	"postgres.max_conn_idle_time",
	"postgres.health_check_period",
	"redis.enabled",
	"redis.host",
	"redis.port",
	"redis.db",
	"redis.password",
	"redis.tls_enabled",
	"redis.revocation_prefix",
	"kafka.brokers",
	"kafka.topic_prefix",
	"jwt.shared_secret",
	"jwt.issuer",
	"jwt.access_token_ttl",
	"jwt.refresh_token_ttl",
	"status_cache.ttl",
	"status_cache.max_size",
	"csrf.name",
	"csrf.token_ttl",
	"csrf.resync_ttl",
	"csrf.path_pattern",
	"cookie.secure",
	"cookie.domain",
	"cookie.path",
	"cookie.refresh_name",
	"authz.admin_role",
	"telemetry.enabled",
	"telemetry.otlp_endpoint",
	"telemetry.service_name",
	"telemetry.sampling_rate",
	"argon2.memory",
	"argon2.iterations",
	"argon2.parallelism",
	"argon2.salt_length",
	"argon2.key_length",
	"revocation.degradation_policy",
}

// Load reads configuration from AUTH_-prefixed (or bare) environment variables over defaults.
func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("AUTH")

	setDefaults(v)

	if err := bindEnvs(v, configKeys); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.JWT.SharedSecret) == "" {
		return fmt.Errorf("%w: jwt.shared_secret is required", errInvalidConfig)
	}
	if _, err := security.ParseSharedSecret(c.JWT.SharedSecret); err != nil {
		return fmt.Errorf("%w: jwt.shared_secret: %v", errInvalidConfig, err)
	}
	if strings.TrimSpace(c.JWT.Issuer) == "" {
		return fmt.Errorf("%w: jwt.issuer is required", errInvalidConfig)
	}
	if c.JWT.AccessTokenTTL <= 0 {
		return fmt.Errorf("%w: jwt.access_token_ttl must be positive", errInvalidConfig)
	}
	if c.JWT.RefreshTokenTTL < 0 {
		return fmt.Errorf("%w: jwt.refresh_token_ttl must not be negative", errInvalidConfig)
	}
	if c.StatusCache.MaxSize < 0 {
		return fmt.Errorf("%w: status_cache.max_size must not be negative", errInvalidConfig)
	}
	if strings.TrimSpace(c.CSRF.Name) == "" {
		return fmt.Errorf("%w: csrf.name is required", errInvalidConfig)
	}
	if _, err := regexp.Compile(c.CSRF.PathPattern); err != nil {
		return fmt.Errorf("%w: csrf.path_pattern: %v", errInvalidConfig, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "directory-auth")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.trust_forwarded_for", false)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "directory")
	v.SetDefault("postgres.password", "directory_password")
	v.SetDefault("postgres.database", "directory")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.revocation_prefix", "auth:revoked")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "directory")

	v.SetDefault("jwt.issuer", "directory-auth")
	v.SetDefault("jwt.access_token_ttl", "30m")
	v.SetDefault("jwt.refresh_token_ttl", "168h")

	v.SetDefault("status_cache.ttl", "10s")
	v.SetDefault("status_cache.max_size", 8)

	v.SetDefault("csrf.name", "rst")
	v.SetDefault("csrf.token_ttl", "30m")
	v.SetDefault("csrf.resync_ttl", "120s")
	v.SetDefault("csrf.path_pattern", "^/api/")

	v.SetDefault("cookie.secure", true)
	v.SetDefault("cookie.domain", "")
	v.SetDefault("cookie.path", "/")
	v.SetDefault("cookie.refresh_name", "rft")

	v.SetDefault("authz.admin_role", "admin")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "directory-auth")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("revocation.degradation_policy", "lenient")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "AUTH_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
