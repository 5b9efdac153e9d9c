package config

import (
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "DATABASE_URL", "DB_USER", "DB_PASS", "DB_HOST", "DB_NAME", "DB_SSLMODE",
		"JWT_SECRET", "TOKEN_TTL_HOURS", "ALLOWED_ORIGINS", "MAX_BODY_BYTES",
		"COINS_PER_CASH_UNIT", "WORKER_GRANT", "CREATOR_GRANT", "ADMIN_GRANT",
		"STORE_RETRY_ATTEMPTS", "STORE_RETRY_BASE_MS", "WORKER_CONCURRENCY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "5000" {
		t.Errorf("port: got %q", cfg.Port)
	}
	if cfg.Grants != (Grants{Worker: 10, Creator: 50, Admin: 0}) {
		t.Errorf("grants: got %+v", cfg.Grants)
	}
	if cfg.CoinsPerCashUnit.String() != "20" {
		t.Errorf("rate: got %s", cfg.CoinsPerCashUnit)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("ttl: got %s", cfg.TokenTTL)
	}
	if cfg.RetryAttempts != 4 || cfg.RetryBaseDelay != 50*time.Millisecond {
		t.Errorf("retry: got %d/%s", cfg.RetryAttempts, cfg.RetryBaseDelay)
	}
	if !strings.HasPrefix(cfg.DatabaseURL, "postgres://") {
		t.Errorf("dsn: got %q", cfg.DatabaseURL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CREATOR_GRANT", "100")
	t.Setenv("COINS_PER_CASH_UNIT", "12.5")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("DB_USER", "svc")
	t.Setenv("DB_PASS", "p@ss")
	t.Setenv("DB_HOST", "db:5432")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Grants.Creator != 100 {
		t.Errorf("creator grant: got %d", cfg.Grants.Creator)
	}
	if cfg.CoinsPerCashUnit.String() != "12.5" {
		t.Errorf("rate: got %s", cfg.CoinsPerCashUnit)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("origins: got %v", cfg.AllowedOrigins)
	}
	if cfg.DatabaseURL != "postgres://svc:p%40ss@db:5432/joblinker" {
		t.Errorf("dsn: got %q", cfg.DatabaseURL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"COINS_PER_CASH_UNIT":  "0",
		"WORKER_GRANT":         "-1",
		"STORE_RETRY_ATTEMPTS": "zero",
		"TOKEN_TTL_HOURS":      "1.5",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", key, val)
			}
		})
	}
}
