package core

import (
	"context"
	"time"
)

// Logger is the minimal structured logging surface the service depends on.
// Arguments are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// MetricsRecorder receives one observation per service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// ServiceOption configures optional service collaborators.
type ServiceOption func(*Service)

// WithLogger attaches a structured logger to the service.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder attaches a metrics recorder to the service.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(s *Service) {
		s.metrics = recorder
	}
}

// WithITCCache attaches the integration-time result cache collaborator.
func WithITCCache(cache ITCCache) ServiceOption {
	return func(s *Service) {
		s.itc = cache
	}
}

// WithGuideAdvisor attaches the guide-environment collaborator.
func WithGuideAdvisor(advisor GuideAdvisor) ServiceOption {
	return func(s *Service) {
		s.guide = advisor
	}
}

// observe records one completed operation on the configured recorder and
// logs failures.
func (s *Service) observe(ctx context.Context, operation string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.Observe(ctx, operation, err == nil, time.Since(start))
	}
	if err != nil {
		s.logger.Error("operation failed", "operation", operation, "error", err)
	}
}
