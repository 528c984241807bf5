package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.heremarket.test/")

	cfg, err := load(viper.New())
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if cfg.APIBaseURL != "https://api.heremarket.test" {
		t.Errorf("APIBaseURL = %q, want trailing slash trimmed", cfg.APIBaseURL)
	}
	if cfg.StoreBackend != StoreMemory {
		t.Errorf("StoreBackend = %q, want %q", cfg.StoreBackend, StoreMemory)
	}
	if cfg.CheckoutTTL != 30*time.Minute {
		t.Errorf("CheckoutTTL = %v, want 30m", cfg.CheckoutTTL)
	}
	if cfg.RenewLead != 5*time.Minute || cfg.RenewFloor != time.Minute {
		t.Errorf("renew lead/floor = %v/%v, want 5m/1m", cfg.RenewLead, cfg.RenewFloor)
	}
	if cfg.ValidityMargin != 60*time.Second {
		t.Errorf("ValidityMargin = %v, want 60s", cfg.ValidityMargin)
	}
	if cfg.ListenAddr != "127.0.0.1:8090" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://localhost:8080")
	t.Setenv("CHECKOUT_TTL", "45m")
	t.Setenv("STORE_BACKEND", "REDIS")
	t.Setenv("REDIS_DB", "3")

	cfg, err := load(viper.New())
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if cfg.CheckoutTTL != 45*time.Minute {
		t.Errorf("CheckoutTTL = %v, want 45m", cfg.CheckoutTTL)
	}
	if cfg.StoreBackend != StoreRedis {
		t.Errorf("StoreBackend = %q, want redis", cfg.StoreBackend)
	}
	if cfg.RedisDB != 3 {
		t.Errorf("RedisDB = %d, want 3", cfg.RedisDB)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing base url", map[string]string{"API_BASE_URL": ""}, "API_BASE_URL must be set"},
		{"relative base url", map[string]string{"API_BASE_URL": "/api"}, "not an absolute URL"},
		{"unknown backend", map[string]string{"API_BASE_URL": "http://x", "STORE_BACKEND": "sqlite"}, "unknown STORE_BACKEND"},
		{"mongo without uri", map[string]string{"API_BASE_URL": "http://x", "STORE_BACKEND": "mongo"}, "MONGO_URI must be set"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := load(viper.New())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
