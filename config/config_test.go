package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
environment: production
server:
  port: 9090
  read_timeout: 15s
store:
  path: /var/lib/gacha/database.json
redis:
  addr: localhost:6379
kafka:
  brokers:
    - localhost:9092
  consumer_group: gacha
  topics:
    member_updates: member_updates
jwt:
  secret: s3cret
  expiration: 12h
external_services:
  identity_service:
    base_url: https://identity.example.com
    guild_id: "42"
    token: tok
    timeout: 5s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.IsProduction() {
		t.Error("IsProduction() = false for environment production")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("read timeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Store.Path != "/var/lib/gacha/database.json" {
		t.Errorf("store path = %q", cfg.Store.Path)
	}
	if got := cfg.Kafka.Topics["member_updates"]; got != "member_updates" {
		t.Errorf("member_updates topic = %q", got)
	}
	if cfg.ExternalServices.IdentityService.GuildID != "42" {
		t.Errorf("guild id = %q, want 42", cfg.ExternalServices.IdentityService.GuildID)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: development
jwt:
  secret: s3cret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Store.Path != "database.json" {
		t.Errorf("default store path = %q, want database.json", cfg.Store.Path)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("default logging = %s/%s, want info/json", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.ExternalServices.IdentityService.Timeout != 10*time.Second {
		t.Errorf("default identity timeout = %v, want 10s", cfg.ExternalServices.IdentityService.Timeout)
	}
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() = false for environment development")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() succeeded for missing file")
	}
}
