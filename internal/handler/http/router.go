package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/satrioramadhan/scansek-api/internal/auth"
	"github.com/satrioramadhan/scansek-api/internal/service"
	"github.com/satrioramadhan/scansek-api/pkg/health"
	"github.com/satrioramadhan/scansek-api/pkg/httputil"
	"github.com/satrioramadhan/scansek-api/pkg/middleware"
	"github.com/satrioramadhan/scansek-api/pkg/ratelimit"
)

// RouterConfig carries everything the router mounts.
type RouterConfig struct {
	AuthService  *service.AuthService
	SugarService *service.SugarService
	WaterService *service.WaterService
	JWTManager   *auth.JWTManager
	Health       *health.Handler
	Logger       *slog.Logger

	// RateLimiter throttles the public auth endpoints per client IP. Nil
	// disables it.
	RateLimiter    ratelimit.Limiter
	RateLimitRetry time.Duration
	// RateLimitKey derives the client key; nil keys by remote address.
	RateLimitKey ratelimit.KeyFunc

	CORS       middleware.CORSConfig
	PprofCIDRs []string
}

// NewRouter creates a chi router with all API routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.PrometheusMetrics())
	r.Use(middleware.CORS(cfg.CORS))

	// Health, metrics and banners
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/", banner("ScanSek API Online"))
	r.Get("/api/", banner("ScanSek API Root"))

	if len(cfg.PprofCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)
	}

	requireAccess := middleware.Auth(cfg.JWTManager.ValidateAccessToken)

	authHandler := NewAuthHandler(cfg.AuthService, logger)
	accountHandler := NewAccountHandler(cfg.AuthService, logger)
	sugarHandler := NewSugarHandler(cfg.SugarService, logger)
	waterHandler := NewWaterHandler(cfg.WaterService, logger)

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.CacheControl(middleware.NoStore))

		// Public endpoints
		r.Group(func(r chi.Router) {
			if cfg.RateLimiter != nil {
				r.Use(ratelimit.Middleware(cfg.RateLimiter, cfg.RateLimitKey, cfg.RateLimitRetry, logger))
			}

			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/google-login", authHandler.GoogleLogin)
			r.Post("/verify-otp", authHandler.VerifyOTP)
			r.Post("/resend-otp", authHandler.ResendOTP)
			r.Post("/forgot-password", authHandler.ForgotPassword)
			r.Post("/verify-reset-otp", authHandler.VerifyResetOTP)
			r.Post("/reset-password", authHandler.ResetPassword)
		})

		// Takes the refresh token as its bearer token.
		r.Post("/refresh", authHandler.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(requireAccess)

			r.Put("/update-profile", accountHandler.UpdateProfile)
			r.Post("/log-login", accountHandler.LogLogin)
			r.Get("/login-history", accountHandler.LoginHistory)
			r.Get("/user/info", accountHandler.UserInfo)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(requireAccess)

		r.Post("/api/gula", sugarHandler.Create)
		r.Get("/api/gula", sugarHandler.List)
		r.Put("/api/gula/{id}", sugarHandler.Update)
		r.Delete("/api/gula/{id}", sugarHandler.Delete)

		r.Get("/api/air", waterHandler.Get)
		r.Post("/api/air", waterHandler.AddTime)
		r.Delete("/api/air/{tanggal}", waterHandler.DeleteDay)
		r.Delete("/api/air/{tanggal}/{jam}", waterHandler.RemoveTime)
	})

	return r
}

func banner(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteSuccess(w, http.StatusOK, message, nil)
	}
}
