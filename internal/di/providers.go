package di

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/roomcast/roomcast-backend/internal/app"
	"github.com/roomcast/roomcast-backend/internal/config"
	"github.com/roomcast/roomcast-backend/internal/health"
	"github.com/roomcast/roomcast-backend/internal/http/handler"
	"github.com/roomcast/roomcast-backend/internal/http/router"
	"github.com/roomcast/roomcast-backend/internal/observability"
	"github.com/roomcast/roomcast-backend/internal/repository"
	"github.com/roomcast/roomcast-backend/internal/security"
	"github.com/roomcast/roomcast-backend/internal/service"
)

func ProvideDatabase(cfg *config.Config) (*gorm.DB, error) {
	return repository.OpenDatabase(cfg.Database.DSN)
}

// ProvideRedisClient returns nil when Redis is disabled; the session cache
// store falls back to the in-process map in that case.
func ProvideRedisClient(cfg *config.Config, logger *slog.Logger) redis.UniversalClient {
	if !cfg.Redis.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable at startup, continuing", "addr", cfg.Redis.Addr, "error", err)
	}
	return client
}

func ProvideSessionCacheStore(cfg *config.Config, client redis.UniversalClient) service.SessionCacheStore {
	if client == nil {
		return service.NewInMemorySessionCacheStore()
	}
	return service.NewRedisSessionCacheStore(client, cfg.Redis.Prefix)
}

func ProvideDeviceTokenManager(cfg *config.Config) *security.DeviceTokenManager {
	return security.NewDeviceTokenManager(cfg.Auth.TokenIssuer, cfg.Auth.TokenAudience, cfg.Auth.DeviceSecret)
}

func ProvideAbuseGuard(cfg *config.Config, client redis.UniversalClient) service.AuthAbuseGuard {
	if client == nil {
		return service.NewNoopAuthAbuseGuard()
	}
	return service.NewRedisAuthAbuseGuard(client, cfg.Redis.Prefix+":auth_abuse", service.AuthAbusePolicy{})
}

func ProvideMissingUsernameCache(cfg *config.Config, client redis.UniversalClient) service.MissingUsernameCache {
	if client == nil {
		return service.NewInMemoryMissingUsernameCache()
	}
	return service.NewRedisMissingUsernameCache(client, cfg.Redis.Prefix+":missing_username")
}

func ProvideAuthService(
	cfg *config.Config,
	users repository.UserRepository,
	sessions repository.SessionRepository,
	resets repository.ResetRepository,
	cache service.SessionCacheStore,
	guard service.AuthAbuseGuard,
	missing service.MissingUsernameCache,
	logger *slog.Logger,
) *service.AuthService {
	return service.NewAuthService(users, sessions, resets, cache, logger, cfg.Auth.SessionTTL, cfg.Auth.ResetTTL).
		WithAbuseGuard(guard).
		WithMissingUsernameCache(missing)
}

func ProvideAccountService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	devices repository.DeviceRepository,
	stats repository.StatisticsRepository,
	resets repository.ResetRepository,
	missing service.MissingUsernameCache,
	logger *slog.Logger,
) *service.AccountService {
	return service.NewAccountService(users, sessions, devices, stats, resets, logger).
		WithMissingUsernameCache(missing)
}

func ProvideDeviceService(
	cfg *config.Config,
	users repository.UserRepository,
	devices repository.DeviceRepository,
	stats repository.StatisticsRepository,
	tokens *security.DeviceTokenManager,
	logger *slog.Logger,
) *service.DeviceService {
	return service.NewDeviceService(users, devices, stats, tokens, logger, cfg.Auth.DeviceTokenTTL)
}

func ProvideCleanupService(
	cfg *config.Config,
	sessions repository.SessionRepository,
	resets repository.ResetRepository,
	logger *slog.Logger,
) *service.CleanupService {
	return service.NewCleanupService(sessions, resets, logger, cfg.Cleanup.Interval)
}

func ProvideAuthHandler(cfg *config.Config, auth *service.AuthService, devices *service.DeviceService) *handler.AuthHandler {
	return handler.NewAuthHandler(auth, devices, cfg.Auth.CookieSecure)
}

// ProvideReadiness probes the stores the request path depends on. Redis is
// deliberately absent: the session cache degrades to the database.
func ProvideReadiness(db *gorm.DB) *health.ProbeRunner {
	return health.NewProbeRunner(2*time.Second, health.Probe{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})
}

func ProvideRouter(
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	accountHandler *handler.AccountHandler,
	deviceHandler *handler.DeviceHandler,
	statisticsHandler *handler.StatisticsHandler,
	auth *service.AuthService,
	tokens *security.DeviceTokenManager,
	logger *slog.Logger,
	readiness *health.ProbeRunner,
) http.Handler {
	return router.NewRouter(router.Dependencies{
		AuthHandler:       authHandler,
		AccountHandler:    accountHandler,
		DeviceHandler:     deviceHandler,
		StatisticsHandler: statisticsHandler,
		SessionVerifier:   auth,
		DeviceTokens:      tokens,
		Logger:            logger,
		Readiness:         readiness,
		APIRateLimitRPM:   cfg.HTTP.APIRateLimitRPM,
		AuthRateLimitRPM:  cfg.HTTP.LoginRateLimitRPM,
		ResetRateLimitRPM: cfg.HTTP.ResetRateLimitRPM,
		EnableOTelHTTP:    cfg.Observability.TracingEnabled,
	})
}

func ProvideServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           h,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}
}

func ProvideApp(
	cfg *config.Config,
	runtime *observability.Runtime,
	server *http.Server,
	readiness *health.ProbeRunner,
	cleanup *service.CleanupService,
) *app.App {
	return app.New(cfg, runtime.Logger, server, runtime, readiness, cleanup)
}

func ProvideLogger(runtime *observability.Runtime) *slog.Logger {
	return runtime.Logger
}
