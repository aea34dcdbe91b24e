//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/roomcast/roomcast-backend/internal/app"
	"github.com/roomcast/roomcast-backend/internal/config"
	"github.com/roomcast/roomcast-backend/internal/http/handler"
	"github.com/roomcast/roomcast-backend/internal/observability"
	"github.com/roomcast/roomcast-backend/internal/repository"
	"github.com/roomcast/roomcast-backend/internal/service"
)

// InitializeApp wires the full application graph from configuration and the
// already started telemetry runtime.
func InitializeApp(cfg *config.Config, runtime *observability.Runtime) (*app.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideDatabase,
		ProvideRedisClient,
		ProvideSessionCacheStore,
		ProvideAbuseGuard,
		ProvideMissingUsernameCache,
		ProvideDeviceTokenManager,
		repository.NewUserRepository,
		repository.NewSessionRepository,
		repository.NewDeviceRepository,
		repository.NewStatisticsRepository,
		repository.NewResetRepository,
		ProvideAuthService,
		ProvideDeviceService,
		service.NewStatisticsService,
		ProvideAccountService,
		ProvideCleanupService,
		ProvideAuthHandler,
		handler.NewAccountHandler,
		handler.NewDeviceHandler,
		handler.NewStatisticsHandler,
		ProvideReadiness,
		ProvideRouter,
		ProvideServer,
		ProvideApp,
	)
	return nil, nil
}
