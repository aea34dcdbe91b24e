package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/roomcast/roomcast-backend/internal/config"
	"github.com/roomcast/roomcast-backend/internal/health"
	"github.com/roomcast/roomcast-backend/internal/observability"
	"github.com/roomcast/roomcast-backend/internal/service"
)

// App owns the process lifecycle: the HTTP server, the expiry sweeper and
// the telemetry providers, started together and drained in reverse order.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime
	Readiness     *health.ProbeRunner
	Cleanup       *service.CleanupService

	stopOnce       sync.Once
	stopBackground context.CancelFunc
}

func New(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	readiness *health.ProbeRunner,
	cleanup *service.CleanupService,
) *App {
	return &App{
		Config:        cfg,
		Logger:        logger,
		Server:        server,
		Observability: runtime,
		Readiness:     readiness,
		Cleanup:       cleanup,
	}
}

// Run blocks until the context is cancelled or a termination signal
// arrives, then drains the server within the configured shutdown window.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	backgroundCtx, cancelBackground := context.WithCancel(context.Background())
	a.stopBackground = cancelBackground
	if a.Cleanup != nil {
		go a.Cleanup.Run(backgroundCtx)
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
		a.Logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.ShutdownTimeout)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("http server shutdown", "error", err)
		serveErr = errors.Join(serveErr, err)
	}

	a.StopBackgroundTasks()

	obsCtx, obsCancel := context.WithTimeout(context.Background(), a.Config.Observability.ShutdownTimeout)
	defer obsCancel()
	if err := a.Observability.Shutdown(obsCtx); err != nil {
		a.Logger.Error("observability shutdown", "error", err)
	}

	return serveErr
}

// StopBackgroundTasks cancels the expiry sweeper. Safe to call more than
// once and before Run.
func (a *App) StopBackgroundTasks() {
	a.stopOnce.Do(func() {
		if a.stopBackground != nil {
			a.stopBackground()
		}
	})
}
