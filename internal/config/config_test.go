package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "obsflow.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultValidates(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != "memory" || cfg.HTTP.Listen != "127.0.0.1:8080" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  driver: sqlite
  path: /tmp/obsflow-test.db
itc:
  driver: fs
  root: /tmp/itc
logging:
  level: debug
  format: console
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.Path != "/tmp/obsflow-test.db" {
		t.Fatalf("store = %+v", cfg.Store)
	}
	if cfg.ITC.Driver != "fs" || cfg.ITC.Root != "/tmp/itc" {
		t.Fatalf("itc = %+v", cfg.ITC)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	// Untouched sections keep their defaults.
	if cfg.HTTP.Listen != "127.0.0.1:8080" {
		t.Fatalf("http = %+v", cfg.HTTP)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	path := writeConfig(t, "store:\n  driver: etcd\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for unknown driver")
	}
}

func TestValidateCrossFieldRequirements(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "postgres"
	if err := Validate(cfg); err == nil {
		t.Fatalf("postgres without dsn must fail")
	}
	cfg.Store.DSN = "postgres://localhost/obsflow?sslmode=disable"
	if err := Validate(cfg); err != nil {
		t.Fatalf("postgres with dsn: %v", err)
	}

	cfg = Default()
	cfg.ITC.Driver = "s3"
	if err := Validate(cfg); err == nil {
		t.Fatalf("s3 without bucket must fail")
	}
	cfg.ITC.S3.Bucket = "itc-results"
	if err := Validate(cfg); err != nil {
		t.Fatalf("s3 with bucket: %v", err)
	}
}

func TestLoadRejectsBadListenAddress(t *testing.T) {
	path := writeConfig(t, "http:\n  listen: not-an-address\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for listen address")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
}
