package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roomcast/roomcast-backend/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

type AppMetrics struct {
	authLoginCounter       metric.Int64Counter
	authDeviceLoginCounter metric.Int64Counter
	authLogoutCounter      metric.Int64Counter
	sessionVerifyCounter   metric.Int64Counter
	statisticsSyncCounter  metric.Int64Counter
	statisticsGetCounter   metric.Int64Counter
	repositoryOpCounter    metric.Int64Counter
	cleanupSweepCounter    metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.Observability.MetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Observability.OTLPEndpoint)}
	if cfg.Observability.OTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.Observability.ServiceName),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.Observability.MetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("roomcast-backend")
	m := &AppMetrics{}
	counters := []struct {
		name string
		dst  *metric.Int64Counter
	}{
		{"auth.login.attempts", &m.authLoginCounter},
		{"auth.device_login.attempts", &m.authDeviceLoginCounter},
		{"auth.logout.attempts", &m.authLogoutCounter},
		{"auth.session.validations", &m.sessionVerifyCounter},
		{"statistics.sync.attempts", &m.statisticsSyncCounter},
		{"statistics.get.attempts", &m.statisticsGetCounter},
		{"repository.operations", &m.repositoryOpCounter},
		{"cleanup.sweeps", &m.cleanupSweepCounter},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.Observability.OTLPEndpoint)
	return mp, nil
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordAuthLogin(surface, status string) {
	m := current()
	if m == nil {
		return
	}
	m.authLoginCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("surface", surface),
			attribute.String("status", status),
		),
	)
}

func RecordDeviceLogin(status string) {
	m := current()
	if m == nil {
		return
	}
	m.authDeviceLoginCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordAuthLogout(status string) {
	m := current()
	if m == nil {
		return
	}
	m.authLogoutCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordSessionValidation(ctx context.Context, outcome, source string) {
	m := current()
	if m == nil {
		return
	}
	m.sessionVerifyCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("source", source),
		),
	)
}

func RecordStatisticsSync(status string) {
	m := current()
	if m == nil {
		return
	}
	m.statisticsSyncCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordStatisticsGet(source string) {
	m := current()
	if m == nil {
		return
	}
	m.statisticsGetCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("source", source)))
}

func RecordRepositoryOperation(ctx context.Context, entity, operation, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.repositoryOpCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("entity", entity),
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordCleanupSweep(entity string, removed int64) {
	m := current()
	if m == nil {
		return
	}
	m.cleanupSweepCounter.Add(context.Background(), removed, metric.WithAttributes(attribute.String("entity", entity)))
}
