package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/hustbill/nodejs-api-server-sub001/internal/config"
	"github.com/hustbill/nodejs-api-server-sub001/internal/metrics"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestInitializeDisabled(t *testing.T) {
	tel, err := Initialize(context.Background(), config.TelemetryConfig{Enabled: false})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tel != nil {
		t.Fatalf("expected nil telemetry when disabled")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("nil shutdown should be noop: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.TelemetryConfig
		want error
	}{
		{name: "missing service", cfg: config.TelemetryConfig{OTLPEndpoint: "x:4317"}, want: ErrMissingServiceName},
		{name: "missing endpoint", cfg: config.TelemetryConfig{ServiceName: "svc"}, want: ErrMissingEndpoint},
		{name: "ok", cfg: config.TelemetryConfig{ServiceName: "svc", OTLPEndpoint: "x:4317"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.cfg)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) || !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestInitializeInstallsGlobalProvider(t *testing.T) {
	previous := otel.GetMeterProvider()
	defer otel.SetMeterProvider(previous)

	reader := sdkmetric.NewManualReader()
	tel, err := Initialize(context.Background(), config.TelemetryConfig{
		Enabled:      true,
		ServiceName:  "order-core-test",
		OTLPEndpoint: "127.0.0.1:4317",
	}, WithReader(reader))
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	m, err := metrics.NewGlobalMetrics()
	if err != nil {
		t.Fatalf("new metrics failed: %v", err)
	}
	m.RecordCheckout(context.Background(), "success", 0.2)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, item := range sm.Metrics {
			if item.Name == "order_checkouts_total" {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected checkout counter to be exported through global provider")
	}
}
