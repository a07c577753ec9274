package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"taskManager/internal/config"
	"taskManager/internal/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

type ShutdownFunc func(ctx context.Context) error

type settings struct {
	writer io.Writer
}

type Option func(*settings)

// WithWriter - куда stdout exporter пишет спаны, по умолчанию os.Stdout
func WithWriter(w io.Writer) Option {
	return func(s *settings) {
		s.writer = w
	}
}

// Init ставит глобальные TracerProvider и propagator (W3C traceparent + baggage).
// otelhttp берёт их из otel, поэтому входящий контекст трассировки доходит до обработчиков.
func Init(ctx context.Context, cfg config.TracingConfig, serviceName string, opts ...Option) (ShutdownFunc, error) {
	if !cfg.Enabled {
		logger.Info("Telemetry: Трассировка отключена")
		return func(context.Context) error { return nil }, nil
	}

	s := &settings{writer: os.Stdout}
	for _, opt := range opts {
		opt(s)
	}

	res := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName))

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(res),
	}

	switch cfg.Exporter {
	case config.TracingExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(s.writer))
		if err != nil {
			return nil, fmt.Errorf("trace exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	case config.TracingExporterNone:
		// спаны создаются и передаются дальше, но никуда не выгружаются
	default:
		return nil, fmt.Errorf("неизвестный tracing.exporter %q", cfg.Exporter)
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("Telemetry: Трассировка включена",
		zap.String("service", serviceName),
		zap.String("exporter", cfg.Exporter),
		zap.Float64("sample_ratio", cfg.SampleRatio))

	return tp.Shutdown, nil
}
