package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/roomcast/roomcast-backend/internal/health"
	"github.com/roomcast/roomcast-backend/internal/http/handler"
	"github.com/roomcast/roomcast-backend/internal/http/middleware"
	"github.com/roomcast/roomcast-backend/internal/http/response"
	"github.com/roomcast/roomcast-backend/internal/security"
)

type Dependencies struct {
	AuthHandler       *handler.AuthHandler
	AccountHandler    *handler.AccountHandler
	DeviceHandler     *handler.DeviceHandler
	StatisticsHandler *handler.StatisticsHandler
	SessionVerifier   middleware.SessionVerifier
	DeviceTokens      *security.DeviceTokenManager
	Logger            *slog.Logger
	Readiness         *health.ProbeRunner
	APIRateLimitRPM   int
	AuthRateLimitRPM  int
	ResetRateLimitRPM int
	EnableOTelHTTP    bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.StructuredRequestLogger(dep.Logger))
	r.Use(middleware.SecurityHeaders)
	// The dashboard and the app ship to arbitrary customer origins.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.BodyLimit(1 << 20))
	if dep.APIRateLimitRPM > 0 {
		r.Use(httprate.LimitByIP(dep.APIRateLimitRPM, time.Minute))
	}

	authLimiter := passthrough
	if dep.AuthRateLimitRPM > 0 {
		authLimiter = httprate.LimitByIP(dep.AuthRateLimitRPM, time.Minute)
	}
	resetLimiter := passthrough
	if dep.ResetRateLimitRPM > 0 {
		resetLimiter = httprate.LimitByIP(dep.ResetRateLimitRPM, time.Minute)
	}

	sessionAuth := middleware.SessionAuth(dep.SessionVerifier)
	deviceAuth := middleware.DeviceAuth(dep.DeviceTokens)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter).Post("/login", dep.AuthHandler.Login)
			r.Post("/logout", dep.AuthHandler.Logout)
			r.Get("/verify-session", dep.AuthHandler.VerifySession)
			r.With(authLimiter).Post("/device-login", dep.AuthHandler.DeviceLogin)
			r.With(deviceAuth).Post("/device-logout", dep.AuthHandler.DeviceLogout)

			r.Route("/password-reset", func(r chi.Router) {
				r.With(resetLimiter).Post("/request", dep.AuthHandler.RequestPasswordReset)
				r.With(resetLimiter).Post("/confirm", dep.AuthHandler.ConfirmPasswordReset)
				r.Get("/{id}/status", dep.AuthHandler.ResetStatus)
				r.With(deviceAuth).Get("/pending", dep.AuthHandler.ListPendingResets)
				r.With(resetLimiter).Post("/", dep.AuthHandler.ResetPassword)
			})
		})

		r.With(authLimiter).Post("/accounts", dep.AccountHandler.Create)
		r.Group(func(r chi.Router) {
			r.Use(sessionAuth)
			r.Delete("/accounts/{id}", dep.AccountHandler.Delete)
			r.Put("/accounts/password", dep.AccountHandler.ChangePassword)
			r.Get("/devices", dep.DeviceHandler.List)
			r.Get("/statistics", dep.StatisticsHandler.Get)
			r.Get("/statistics/csv", dep.StatisticsHandler.CSV)
		})
		r.With(deviceAuth).Post("/statistics/sync", dep.StatisticsHandler.Sync)
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}

func passthrough(next http.Handler) http.Handler { return next }
