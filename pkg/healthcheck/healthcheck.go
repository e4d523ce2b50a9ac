// Package healthcheck provides service to get grpc server health status.
package healthcheck

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Probe reports whether the service can do its job.
type Probe func() bool

// HealthChecker for grpc server.
type HealthChecker struct {
	probe    Probe
	clock    clock.Clock
	interval time.Duration
	quit     <-chan struct{}
}

// The Option type describes functions that operate on HealthChecker during GRPCHealthChecker.
type Option func(*HealthChecker)

// Clock sets the clock driving Watch.
func Clock(c clock.Clock) Option {
	return func(h *HealthChecker) {
		h.clock = c
	}
}

// Interval sets how often Watch re-evaluates the probe.
func Interval(d time.Duration) Option {
	return func(h *HealthChecker) {
		h.interval = d
	}
}

// Quit ends every Watch once closed, so the server can stop gracefully.
func Quit(ch <-chan struct{}) Option {
	return func(h *HealthChecker) {
		h.quit = ch
	}
}

func (s *HealthChecker) status() grpc_health_v1.HealthCheckResponse_ServingStatus {
	if s.probe == nil || s.probe() {
		return grpc_health_v1.HealthCheckResponse_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_NOT_SERVING
}

// Check status and return a GRPC health response.
func (s *HealthChecker) Check(_ context.Context, _ *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	return &grpc_health_v1.HealthCheckResponse{
		Status: s.status(),
	}, nil
}

// Watch streams the server status, then every change of it until the client
// goes away.
func (s *HealthChecker) Watch(_ *grpc_health_v1.HealthCheckRequest, server grpc_health_v1.Health_WatchServer) error {
	last := s.status()
	if err := server.Send(&grpc_health_v1.HealthCheckResponse{Status: last}); err != nil {
		return err
	}

	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.quit:
			return nil
		case <-server.Context().Done():
			return nil
		case <-ticker.C:
			st := s.status()
			if st == last {
				continue
			}
			last = st
			if err := server.Send(&grpc_health_v1.HealthCheckResponse{Status: st}); err != nil {
				return err
			}
		}
	}
}

// GRPCHealthChecker requests to check the grpc server health. probe may be
// nil, in which case the server always reports SERVING.
func GRPCHealthChecker(probe Probe, options ...Option) *HealthChecker {
	h := &HealthChecker{
		probe:    probe,
		clock:    clock.New(),
		interval: time.Second,
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}
