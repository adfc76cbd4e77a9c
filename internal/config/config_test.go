package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.AppEnv != "dev" {
		t.Errorf("AppEnv = %q; want dev", cfg.AppEnv)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v; want info", cfg.LogLevel)
	}
	if cfg.HTTPAddr != ":3100" {
		t.Errorf("HTTPAddr = %q; want :3100", cfg.HTTPAddr)
	}
	if cfg.SupportedDevices != 117 {
		t.Errorf("SupportedDevices = %d; want 117", cfg.SupportedDevices)
	}
	if cfg.WeatherDeviceID != 100 {
		t.Errorf("WeatherDeviceID = %d; want 100", cfg.WeatherDeviceID)
	}
	if cfg.WeatherInterval != 5*time.Minute {
		t.Errorf("WeatherInterval = %s; want 5m", cfg.WeatherInterval)
	}
	if cfg.TokenLifetime != time.Hour {
		t.Errorf("TokenLifetime = %s; want 1h", cfg.TokenLifetime)
	}
	if cfg.SweepInterval != time.Hour {
		t.Errorf("SweepInterval = %s; want 1h", cfg.SweepInterval)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("AllowedOrigins = %v; want [*]", cfg.AllowedOrigins)
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		env   string
		value string
	}{
		{"bad app env", "APP_ENV", "staging"},
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad device count", "SUPPORTED_DEVICES", "0"},
		{"bad weather device", "WEATHER_DEVICE_ID", "200"},
		{"bad weather interval", "WEATHER_INTERVAL", "soon"},
		{"bad token lifetime", "TOKEN_LIFETIME", "-1h"},
		{"bad sweep interval", "TOKEN_SWEEP_INTERVAL", "0s"},
		{"bad max open conns", "DB_MAX_OPEN_CONNS", "many"},
		{"bad log sql", "DB_LOG_SQL", "maybe"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.env, tc.value)
			if _, err := LoadFromEnv(); err == nil {
				t.Fatalf("LoadFromEnv with %s=%q: expected error", tc.env, tc.value)
			}
		})
	}
}

func TestLoadFromEnv_ProdRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error when APP_ENV=prod and JWT_SECRET unset")
	}

	t.Setenv("JWT_SECRET", "prod-secret")
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.JWTSecret != "prod-secret" {
		t.Errorf("JWTSecret = %q; want prod-secret", cfg.JWTSecret)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("SUPPORTED_DEVICES", "17")
	t.Setenv("WEATHER_DEVICE_ID", "16")
	t.Setenv("TOKEN_LIFETIME", "30m")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.SupportedDevices != 17 || cfg.WeatherDeviceID != 16 {
		t.Errorf("devices = %d/%d; want 17/16", cfg.SupportedDevices, cfg.WeatherDeviceID)
	}
	if cfg.TokenLifetime != 30*time.Minute {
		t.Errorf("TokenLifetime = %s; want 30m", cfg.TokenLifetime)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}
