package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestSetDefaultsOrderSection(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if cfg.Order.CommissionVolumeCodes["q"] != "QV" {
		t.Fatalf("unexpected commission mapping: %+v", cfg.Order.CommissionVolumeCodes)
	}
	if len(cfg.Order.FreeTax.Countries) != 27 {
		t.Fatalf("expected 27 free-tax base countries, got %d", len(cfg.Order.FreeTax.Countries))
	}
	if cfg.Order.Renewal.Months != 12 || cfg.Order.Renewal.CutoffDay != 15 {
		t.Fatalf("unexpected renewal config: %+v", cfg.Order.Renewal)
	}
	if len(cfg.TaxService.ExcludedTerritories) != 5 {
		t.Fatalf("unexpected excluded territories: %v", cfg.TaxService.ExcludedTerritories)
	}
}

func TestTaxServiceTimeout(t *testing.T) {
	if got := (TaxServiceConfig{}).Timeout(); got != 5*time.Second {
		t.Fatalf("unexpected default timeout: %s", got)
	}
	if got := (TaxServiceConfig{TimeoutMS: 250}).Timeout(); got != 250*time.Millisecond {
		t.Fatalf("unexpected timeout: %s", got)
	}
}

func TestSetDefaultsTelemetryAndSecurity(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if cfg.Telemetry.Enabled || cfg.Telemetry.ServiceName != "order-core" {
		t.Fatalf("unexpected telemetry defaults: %+v", cfg.Telemetry)
	}
	if cfg.Telemetry.ExportInterval() != 30*time.Second {
		t.Fatalf("unexpected export interval: %s", cfg.Telemetry.ExportInterval())
	}
	if cfg.Security.CheckoutRateLimit.MaxRequests != 20 || cfg.Security.CheckoutRateLimit.WindowSeconds != 60 {
		t.Fatalf("unexpected checkout rate limit: %+v", cfg.Security.CheckoutRateLimit)
	}
	if (TelemetryConfig{}).ExportInterval() != 30*time.Second {
		t.Fatalf("zero interval should fall back to default")
	}
}
