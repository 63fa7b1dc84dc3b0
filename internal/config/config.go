// Package config loads and validates the obsflow configuration file.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"obsflow/internal/telemetry"
)

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver" validate:"omitempty,oneof=memory sqlite postgres"`
	// Path is the database file for the sqlite driver.
	Path string `yaml:"path"`
	// DSN is the connection string for the postgres driver.
	DSN string `yaml:"dsn"`
}

// ITCS3Config configures the s3 ITC cache driver.
type ITCS3Config struct {
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       bool   `yaml:"path_style"`
}

// ITCConfig selects the ITC result cache backend.
type ITCConfig struct {
	Driver string      `yaml:"driver" validate:"omitempty,oneof=memory fs s3"`
	Root   string      `yaml:"root"`
	S3     ITCS3Config `yaml:"s3"`
}

// HTTPConfig configures the read/check API server.
type HTTPConfig struct {
	Listen string `yaml:"listen" validate:"omitempty,hostname_port"`
}

// Config is the full obsflow configuration.
type Config struct {
	Store   StoreConfig             `yaml:"store"`
	ITC     ITCConfig               `yaml:"itc"`
	HTTP    HTTPConfig              `yaml:"http"`
	Logging telemetry.LoggingConfig `yaml:"logging"`
}

// Default returns the configuration used when no file is supplied: in-memory
// store and cache, JSON logging at info level, the API on localhost.
func Default() Config {
	return Config{
		Store: StoreConfig{Driver: "memory"},
		ITC:   ITCConfig{Driver: "memory"},
		HTTP:  HTTPConfig{Listen: "127.0.0.1:8080"},
		Logging: telemetry.LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads, parses, and validates the configuration file. Fields absent
// from the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration's structural constraints.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if cfg.Store.Driver == "postgres" && cfg.Store.DSN == "" {
		return fmt.Errorf("validate config: postgres driver requires dsn")
	}
	if cfg.ITC.Driver == "s3" && cfg.ITC.S3.Bucket == "" {
		return fmt.Errorf("validate config: s3 itc driver requires bucket")
	}
	return nil
}
