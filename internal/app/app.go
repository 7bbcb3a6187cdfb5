package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/satrioramadhan/scansek-api/internal/auth"
	"github.com/satrioramadhan/scansek-api/internal/config"
	"github.com/satrioramadhan/scansek-api/internal/event"
	"github.com/satrioramadhan/scansek-api/internal/google"
	handler "github.com/satrioramadhan/scansek-api/internal/handler/http"
	"github.com/satrioramadhan/scansek-api/internal/mailer"
	"github.com/satrioramadhan/scansek-api/internal/repository/postgres"
	"github.com/satrioramadhan/scansek-api/internal/service"
	"github.com/satrioramadhan/scansek-api/migrations"
	"github.com/satrioramadhan/scansek-api/pkg/database"
	"github.com/satrioramadhan/scansek-api/pkg/health"
	"github.com/satrioramadhan/scansek-api/pkg/httpclient"
	pkgkafka "github.com/satrioramadhan/scansek-api/pkg/kafka"
	"github.com/satrioramadhan/scansek-api/pkg/middleware"
	"github.com/satrioramadhan/scansek-api/pkg/ratelimit"
	"github.com/satrioramadhan/scansek-api/pkg/tracing"
)

const serviceName = "scansek-api"

// App wires together all dependencies and runs the API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	producer       *pkgkafka.Producer
	redis          *redis.Client
	limiter        *ratelimit.MemoryLimiter
	sweep          *service.SweepService
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	pool, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	prometheus.MustRegister(database.NewPoolStatsCollector(pool))

	// Kafka is optional; without brokers events are dropped.
	var producer *pkgkafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Warn("KAFKA_BROKERS not set, account events are disabled")
	}

	// Redis is optional; without it rate limiting stays per instance.
	var (
		redisClient *redis.Client
		memLimiter  *ratelimit.MemoryLimiter
		limiter     ratelimit.Limiter
		retryAfter  = time.Second
	)
	if cfg.RedisAddr != "" {
		redisClient, err = database.NewRedisClient(ctx, database.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		limit := int(cfg.AuthRateLimitRPS * 60)
		if limit < cfg.AuthRateLimitBurst {
			limit = cfg.AuthRateLimitBurst
		}
		limiter = ratelimit.NewRedisLimiter(redisClient, "scansek:ratelimit:auth", limit, time.Minute)
		retryAfter = time.Minute
		logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))
	} else {
		memLimiter = ratelimit.NewMemoryLimiter(cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst, 10*time.Minute)
		limiter = memLimiter
	}

	policy, err := auth.ParsePasswordPolicy(cfg.PasswordPolicy)
	if err != nil {
		pool.Close()
		return nil, err
	}
	sender, err := newMailer(cfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	rateLimitKey, err := ratelimit.TrustedProxyKey(cfg.TrustedProxyCIDRs)
	if err != nil {
		pool.Close()
		return nil, err
	}

	// Build the dependency graph.
	accountRepo := postgres.NewAccountRepository(pool)
	sugarRepo := postgres.NewSugarRepository(pool)
	waterRepo := postgres.NewWaterRepository(pool)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	authService := service.NewAuthService(
		accountRepo,
		auth.NewPasswordHasher(cfg.BcryptCost),
		policy,
		auth.NewOTPEngine(cfg.OTPTTL, cfg.OTPResendWindow, cfg.OTPMaxResends),
		jwtManager,
		sender,
		newGoogleVerifier(cfg, logger),
		event.NewProducer(producer, logger),
		logger,
	)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if producer != nil {
		healthHandler.RegisterNonCritical("kafka", producer.Ping)
	}
	if redisClient != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	// HTTP router.
	router := handler.NewRouter(handler.RouterConfig{
		AuthService:    authService,
		SugarService:   service.NewSugarService(sugarRepo, logger),
		WaterService:   service.NewWaterService(waterRepo, logger),
		JWTManager:     jwtManager,
		Health:         healthHandler,
		Logger:         logger,
		RateLimiter:    limiter,
		RateLimitRetry: retryAfter,
		RateLimitKey:   rateLimitKey,
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Environment:    cfg.Environment,
		},
		PprofCIDRs: cfg.PprofAllowedCIDRs,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		producer:       producer,
		redis:          redisClient,
		limiter:        memLimiter,
		sweep:          service.NewSweepService(accountRepo, cfg.UnverifiedRetention, logger),
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and background loops and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if a.limiter != nil {
		go a.limiter.Run(ctx)
	}
	if a.cfg.SweepInterval > 0 {
		a.logger.Info("in-process sweep enabled", slog.Duration("interval", a.cfg.SweepInterval))
		go a.sweep.Start(ctx, a.cfg.SweepInterval)
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer and Redis
// 4. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// RunSweep connects to PostgreSQL, performs one unverified-account sweep and
// returns the number of deleted accounts.
func RunSweep(ctx context.Context, cfg *config.Config, logger *slog.Logger) (int64, error) {
	pool, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return 0, err
	}
	defer pool.Close()

	sweep := service.NewSweepService(postgres.NewAccountRepository(pool), cfg.UnverifiedRetention, logger)
	return sweep.Run(ctx)
}

func openDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := database.NewPostgresPool(ctx, database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPassword,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSLMode,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: cfg.DBMaxConnLifetime,
		MaxConnIdleTime: cfg.DBMaxConnIdleTime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	}
	return pool, nil
}

// newMailer returns the SendGrid sender, or the development log sender when
// no API key is configured.
func newMailer(cfg *config.Config, logger *slog.Logger) (mailer.Sender, error) {
	if cfg.SendGridAPIKey == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("SENDGRID_API_KEY is required in %q mode", cfg.Environment)
		}
		logger.Warn("SENDGRID_API_KEY not set, OTP codes are logged instead of emailed")
		return mailer.NewLogSender(logger), nil
	}

	return mailer.NewSendGridSender(mailer.SendGridConfig{
		URL:         cfg.SendGridURL,
		APIKey:      cfg.SendGridAPIKey,
		FromAddress: cfg.MailFromAddress,
		FromName:    cfg.MailFromName,
		OTPTTL:      cfg.OTPTTL,
		Timeout:     cfg.MailTimeout,
	}, mailer.NewSendGridClient(cfg.MailTimeout, logger), logger), nil
}

func newGoogleVerifier(cfg *config.Config, logger *slog.Logger) *google.Verifier {
	clientCfg := httpclient.DefaultConfig()
	clientCfg.Timeout = cfg.GoogleTimeout
	clientCfg.MaxRetries = 1
	client := httpclient.NewCircuitBreakerClient(
		httpclient.New(clientCfg),
		httpclient.DefaultCircuitBreakerConfig("google-tokeninfo"),
		logger,
	)
	return google.NewVerifier(google.Config{
		TokenInfoURL: cfg.GoogleTokenInfoURL,
		ClientID:     cfg.GoogleClientID,
		Timeout:      cfg.GoogleTimeout,
	}, client)
}
