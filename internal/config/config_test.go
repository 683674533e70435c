package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.TargetHost != "127.0.0.1" || cfg.TargetPort != 8000 {
		t.Fatalf("unexpected target defaults: %s:%d", cfg.TargetHost, cfg.TargetPort)
	}
	if cfg.TargetBaseURL() != "http://127.0.0.1:8000" {
		t.Fatalf("TargetBaseURL = %q", cfg.TargetBaseURL())
	}
	if cfg.RequestTimeout != 0 {
		t.Fatalf("default request timeout should be zero, got %v", cfg.RequestTimeout)
	}
	if cfg.SinksFile != "" {
		t.Fatalf("sinks should be off by default, got %q", cfg.SinksFile)
	}
	if cfg.HistoryStore != "none" {
		t.Fatalf("history should be off by default, got %q", cfg.HistoryStore)
	}
	if cfg.HistoryTTL != 7*24*time.Hour {
		t.Fatalf("history ttl default = %v", cfg.HistoryTTL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TARGET_HOST", "10.0.0.5")
	t.Setenv("TARGET_PORT", "9000")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TargetBaseURL() != "http://10.0.0.5:9000" {
		t.Fatalf("TargetBaseURL = %q", cfg.TargetBaseURL())
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("RequestTimeout = %v", cfg.RequestTimeout)
	}
}

func TestRedactedMasksRedisPassword(t *testing.T) {
	t.Setenv("REDIS_PASSWORD", "hunter2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	red := cfg.Redacted()
	if red.RedisPassword == "hunter2" {
		t.Fatalf("redacted config still carries the password")
	}
	if cfg.RedisPassword != "hunter2" {
		t.Fatalf("Redacted must not mutate the original config")
	}
	if red.TargetHost != cfg.TargetHost {
		t.Fatalf("non-secret fields must survive redaction")
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("TARGET_PORT", "70000")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for out-of-range port")
	}
}

func TestLoadRejectsNegativeTimeout(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "-5")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for negative timeout")
	}
}
