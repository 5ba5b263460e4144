package handler

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Names of the components reported by Check. The empty name is the overall status.
const (
	ServiceDatabase   = "database"
	ServiceSkyWalking = "skywalking"
)

// checkTimeout bounds each dependency probe.
const checkTimeout = 2 * time.Second

// Pinger checks database connectivity (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ConnectionChecker reports whether the SkyWalking client is connected.
type ConnectionChecker interface {
	Connected() bool
}

// Server implements grpc.health.v1.Health for readiness/liveness. The HTTP /healthz route uses
// Probe for the same checks.
type Server struct {
	healthpb.UnimplementedHealthServer
	pinger    Pinger
	telemetry ConnectionChecker
}

// NewServer returns a health server. A nil dependency is not checked.
func NewServer(pinger Pinger, telemetry ConnectionChecker) *Server {
	return &Server{pinger: pinger, telemetry: telemetry}
}

// Probe runs every check and returns the failures by component name. An empty map means healthy.
func (s *Server) Probe(ctx context.Context) map[string]error {
	failures := make(map[string]error)
	if err := s.checkDatabase(ctx); err != nil {
		failures[ServiceDatabase] = err
	}
	if err := s.checkSkyWalking(); err != nil {
		failures[ServiceSkyWalking] = err
	}
	return failures
}

func (s *Server) checkDatabase(ctx context.Context) error {
	if s.pinger == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	return s.pinger.PingContext(ctx)
}

func (s *Server) checkSkyWalking() error {
	if s.telemetry == nil || s.telemetry.Connected() {
		return nil
	}
	return fmt.Errorf("skywalking client is not connected")
}

// Check reports SERVING when the requested component (or every component, for "") is healthy.
// Failures are reported as NOT_SERVING, never as gRPC errors.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	var err error
	switch req.GetService() {
	case "":
		if failures := s.Probe(ctx); len(failures) > 0 {
			err = fmt.Errorf("%d checks failed", len(failures))
		}
	case ServiceDatabase:
		err = s.checkDatabase(ctx)
	case ServiceSkyWalking:
		err = s.checkSkyWalking()
	default:
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}
	if err != nil {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
