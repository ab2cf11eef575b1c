package config_test

import (
	"testing"
	"time"

	"github.com/outlet-pos/api/internal/config"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

func TestDefaults(t *testing.T) {
	cfg, err := config.FromViper(viper.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Currency.Code != "XOF" || cfg.Currency.MinorUnits != 0 {
		t.Errorf("currency: got %+v, want XOF with 0 minor units", cfg.Currency)
	}
	if !cfg.TaxRate.Equal(decimal.RequireFromString("0.18")) {
		t.Errorf("tax rate: got %s, want 0.18", cfg.TaxRate)
	}
	if len(cfg.CashDenominations) != 12 {
		t.Errorf("denominations: got %d, want 12", len(cfg.CashDenominations))
	}
	if cfg.StoreTimeout != 5*time.Second {
		t.Errorf("store timeout: got %s, want 5s", cfg.StoreTimeout)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SERVICE_CHARGE_RATE", "0.05")
	t.Setenv("CASH_DENOMINATIONS", "20, 10, 5, 1")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("STORE_TIMEOUT", "250ms")

	cfg, err := config.FromViper(viper.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("port: got %s", cfg.Port)
	}
	if !cfg.ServiceChargeRate.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("service charge rate: got %s", cfg.ServiceChargeRate)
	}
	if len(cfg.CashDenominations) != 4 {
		t.Errorf("denominations: got %v", cfg.CashDenominations)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Errorf("origins: got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.StoreTimeout != 250*time.Millisecond {
		t.Errorf("store timeout: got %s", cfg.StoreTimeout)
	}
}

func TestInvalidSettings(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"TAX_RATE", "1.5"},
		{"TAX_RATE", "-0.1"},
		{"SERVICE_CHARGE_RATE", "ten percent"},
		{"CASH_DENOMINATIONS", "100,abc"},
		{"CASH_DENOMINATIONS", "100,100"},
		{"CASH_DENOMINATIONS", "0,5"},
		{"STORE_TIMEOUT", "0s"},
		{"CURRENCY_MINOR_UNITS", "7"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := config.FromViper(viper.New()); err == nil {
				t.Errorf("expected %s=%q to be rejected", tt.key, tt.value)
			}
		})
	}
}
