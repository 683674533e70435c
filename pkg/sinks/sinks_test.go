package sinks

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRegistryEnabledFilter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sinks.yaml")
	raw := `
sinks:
  - id: http1
    type: http
    enabled: false
    http:
      url: https://example.com
  - id: http2
    type: http
    enabled: true
    http:
      url: https://example.com/2
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	enabled := reg.Enabled()
	if len(enabled) != 1 || enabled[0].ID != "http2" {
		t.Fatalf("expected only http2 enabled, got %#v", enabled)
	}
}

func TestLoadRegistryJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sinks.json")
	raw := `{
  "sinks": [
    {"id": "f1", "type": "file", "file": {"path": "/tmp/runs.jsonl"}},
    {"id": "n1", "type": "nats", "nats": {"subject": "probe.runs"}}
  ]
}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if got := len(reg.All()); got != 2 {
		t.Fatalf("expected 2 sinks, got %d", got)
	}
	cfg, ok := reg.ByID("n1")
	if !ok || cfg.NATS == nil || cfg.NATS.Subject != "probe.runs" {
		t.Fatalf("nats sink config missing or wrong: %#v", cfg)
	}
}

func TestLoadRegistryRejectsDuplicateID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sinks.yaml")
	raw := `
sinks:
  - id: dup
    type: file
    file:
      path: /tmp/a.jsonl
  - id: dup
    type: file
    file:
      path: /tmp/b.jsonl
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := LoadRegistry(path); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestSanitizeSinkConfigDefaultsHTTP(t *testing.T) {
	cfg := sanitizeSinkConfig(SinkConfig{
		ID:   "  h1  ",
		Type: " HTTP ",
		HTTP: &HTTPSinkConfig{URL: " https://example.com "},
	})
	if cfg.ID != "h1" || cfg.Type != TypeHTTP {
		t.Fatalf("sanitize did not trim id/type: %#v", cfg)
	}
	if cfg.HTTP.Method != "POST" {
		t.Fatalf("expected default method POST, got %q", cfg.HTTP.Method)
	}
	if cfg.HTTP.TimeoutSeconds != 5 {
		t.Fatalf("expected default timeout 5, got %d", cfg.HTTP.TimeoutSeconds)
	}
	if !cfg.EnabledValue() {
		t.Fatalf("enabled should default to true")
	}
}

func TestValidateSinkConfigRejectsMissingHTTP(t *testing.T) {
	err := validateSinkConfig(SinkConfig{
		ID:   "h1",
		Type: TypeHTTP,
	})
	if err == nil {
		t.Fatalf("expected validation error for missing http block")
	}
}

func TestValidateSinkConfigRejectsIncompleteAMQP(t *testing.T) {
	err := validateSinkConfig(SinkConfig{
		ID:   "a1",
		Type: TypeAMQP,
		AMQP: &AMQPSinkConfig{URL: "amqp://localhost"},
	})
	if err == nil || !strings.Contains(err.Error(), "routing_key") {
		t.Fatalf("expected routing_key validation error, got %v", err)
	}
}
