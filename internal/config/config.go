package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/satrioramadhan/scansek-api/pkg/config"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Config holds all configuration for the ScanSek API and the sweep command.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Version     string `env:"SERVICE_VERSION" envDefault:"dev"`

	HTTPPort        int           `env:"HTTP_PORT" envDefault:"5000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// PostgreSQL
	PostgresHost       string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort       int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser       string        `env:"POSTGRES_USER" envDefault:"scansek"`
	PostgresPassword   string        `env:"POSTGRES_PASSWORD" envDefault:"scansek"`
	PostgresDB         string        `env:"POSTGRES_DB" envDefault:"scansek"`
	PostgresSSLMode    string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns         int32         `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns         int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetime  time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime  time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"15m"`
	SlowQueryThreshold time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Session tokens
	JWTSecret        string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTAccessExpiry  time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"10m"`
	JWTRefreshExpiry time.Duration `env:"JWT_REFRESH_TOKEN_EXPIRY" envDefault:"168h"`

	// OTP
	OTPTTL          time.Duration `env:"OTP_TTL" envDefault:"5m"`
	OTPResendWindow time.Duration `env:"OTP_RESEND_WINDOW" envDefault:"5m"`
	OTPMaxResends   int           `env:"OTP_MAX_RESENDS" envDefault:"3"`

	// Passwords
	PasswordPolicy string `env:"PASSWORD_POLICY" envDefault:"strict"`
	BcryptCost     int    `env:"BCRYPT_COST" envDefault:"12"`

	// Mail
	SendGridAPIKey  string        `env:"SENDGRID_API_KEY"`
	SendGridURL     string        `env:"SENDGRID_URL" envDefault:"https://api.sendgrid.com/v3/mail/send"`
	MailFromAddress string        `env:"MAIL_FROM_ADDRESS" envDefault:"scansek1@gmail.com"`
	MailFromName    string        `env:"MAIL_FROM_NAME" envDefault:"ScanSek"`
	MailTimeout     time.Duration `env:"MAIL_TIMEOUT" envDefault:"10s"`

	// Google sign-in
	GoogleTokenInfoURL string        `env:"GOOGLE_TOKENINFO_URL" envDefault:"https://oauth2.googleapis.com/tokeninfo"`
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleTimeout      time.Duration `env:"GOOGLE_TIMEOUT" envDefault:"5s"`

	// Kafka; empty disables event publishing.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Redis; empty keeps rate limiting in-process.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	AuthRateLimitRPS   float64 `env:"AUTH_RATE_LIMIT_RPS" envDefault:"5"`
	AuthRateLimitBurst int     `env:"AUTH_RATE_LIMIT_BURST" envDefault:"10"`

	// Maintenance
	UnverifiedRetention time.Duration `env:"UNVERIFIED_RETENTION" envDefault:"24h"`
	SweepInterval       time.Duration `env:"SWEEP_INTERVAL" envDefault:"0s"`

	// Tracing
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	PprofAllowedCIDRs  []string `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`
	// TrustedProxyCIDRs are the reverse proxies whose X-Forwarded-For is used
	// for per-IP rate limiting.
	TrustedProxyCIDRs []string `env:"TRUSTED_PROXY_CIDRS" envSeparator:","`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load scansek config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment reports whether relaxed defaults are acceptable.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP_PORT: %d", c.HTTPPort)
	}
	if !c.IsDevelopment() {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}
	if !c.IsDevelopment() && c.SendGridAPIKey == "" {
		return fmt.Errorf("SENDGRID_API_KEY is required in %q mode", c.Environment)
	}
	switch c.PasswordPolicy {
	case "strict", "legacy":
	default:
		return fmt.Errorf("PASSWORD_POLICY must be strict or legacy, got %q", c.PasswordPolicy)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	if c.JWTAccessExpiry <= 0 || c.JWTRefreshExpiry <= c.JWTAccessExpiry {
		return fmt.Errorf("JWT_REFRESH_TOKEN_EXPIRY (%s) must exceed a positive JWT_ACCESS_TOKEN_EXPIRY (%s)",
			c.JWTRefreshExpiry, c.JWTAccessExpiry)
	}
	if c.OTPTTL <= 0 || c.OTPResendWindow <= 0 || c.OTPMaxResends < 1 {
		return fmt.Errorf("OTP_TTL, OTP_RESEND_WINDOW and OTP_MAX_RESENDS must be positive")
	}
	if c.AuthRateLimitRPS <= 0 || c.AuthRateLimitBurst < 1 {
		return fmt.Errorf("AUTH_RATE_LIMIT_RPS and AUTH_RATE_LIMIT_BURST must be positive")
	}
	if c.UnverifiedRetention < 0 || c.SweepInterval < 0 {
		return fmt.Errorf("UNVERIFIED_RETENTION and SWEEP_INTERVAL must not be negative")
	}
	return nil
}
