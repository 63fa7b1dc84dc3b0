// Package itc caches Integration Time Calculator results keyed by
// observation id. The workflow engine only ever asks whether a cached result
// exists; computing results belongs to the external ITC service.
package itc

import (
	"context"
	"errors"
	"time"
)

// Driver identifies a concrete cache backend implementation.
type Driver string

const (
	// DriverFilesystem represents the local filesystem implementation.
	DriverFilesystem Driver = "fs"
	// DriverS3 represents an S3 / MinIO compatible implementation.
	DriverS3 Driver = "s3"
	// DriverMemory represents an in-memory implementation typically used in tests.
	DriverMemory Driver = "memory"
)

// Result is one cached integration-time computation.
type Result struct {
	ObservationID string        `json:"observation_id"`
	ExposureTime  time.Duration `json:"exposure_time"`
	ExposureCount int           `json:"exposure_count"`
	SignalToNoise float64       `json:"signal_to_noise"`
	ComputedAt    time.Time     `json:"computed_at"`
}

// Cache stores ITC results per observation. Put overwrites: a recomputation
// replaces the previous result.
type Cache interface {
	Put(ctx context.Context, result Result) error
	Get(ctx context.Context, observationID string) (Result, error)
	Has(ctx context.Context, observationID string) (bool, error)
	Delete(ctx context.Context, observationID string) (bool, error)
	List(ctx context.Context) ([]Result, error)
	Driver() Driver
}

// ErrNotCached is returned by Get when no result exists for the observation.
var ErrNotCached = errors.New("itc: result not cached")
