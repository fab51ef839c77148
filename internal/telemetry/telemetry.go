package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

var (
	ErrInvalidConfig      = errors.New("invalid telemetry configuration")
	ErrMissingServiceName = errors.New("service name is required")
	ErrMissingEndpoint    = errors.New("otlp endpoint is required")
)

// Telemetry 指标导出生命周期
type Telemetry struct {
	meterProvider *sdkmetric.MeterProvider
}

// Option 初始化选项
type Option func(*options)

type options struct {
	exporter sdkmetric.Exporter
	reader   sdkmetric.Reader
}

// WithMetricExporter 使用指定的导出器代替 OTLP gRPC
func WithMetricExporter(exporter sdkmetric.Exporter) Option {
	return func(o *options) {
		o.exporter = exporter
	}
}

// WithReader 直接指定 Reader，测试中配合 ManualReader 使用
func WithReader(reader sdkmetric.Reader) Option {
	return func(o *options) {
		o.reader = reader
	}
}

// Validate 校验配置
func Validate(cfg config.TelemetryConfig) error {
	if cfg.ServiceName == "" {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrMissingServiceName)
	}
	if cfg.OTLPEndpoint == "" {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrMissingEndpoint)
	}
	return nil
}

// Initialize 按配置安装全局 MeterProvider，未启用时返回 nil
func Initialize(ctx context.Context, cfg config.TelemetryConfig, opts ...Option) (*Telemetry, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	res, err := createResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	reader := o.reader
	if reader == nil {
		exporter := o.exporter
		if exporter == nil {
			// 本地 collector 未配置 TLS
			exporter, err = otlpmetricgrpc.New(ctx,
				otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
				otlpmetricgrpc.WithInsecure(),
			)
			if err != nil {
				return nil, fmt.Errorf("create metric exporter: %w", err)
			}
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.ExportInterval()))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)
	return &Telemetry{meterProvider: mp}, nil
}

func createResource(ctx context.Context, cfg config.TelemetryConfig) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
		resource.WithFromEnv(),
		resource.WithHost(),
	)
}

// MeterProvider 返回已安装的 MeterProvider
func (t *Telemetry) MeterProvider() *sdkmetric.MeterProvider {
	if t == nil {
		return nil
	}
	return t.meterProvider
}

// Shutdown 刷新并关闭导出
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.meterProvider == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := t.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown meter provider: %w", err)
	}
	return nil
}
