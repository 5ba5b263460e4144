package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthhandler "github.com/abstracta/skywalking-copilot/internal/health/handler"
	"github.com/abstracta/skywalking-copilot/internal/server/interceptors"
)

// healthCheckMethod is not logged by the logging interceptor.
const healthCheckMethod = "/grpc.health.v1.Health/Check"

// Deps holds the gRPC service implementations.
type Deps struct {
	// Health answers grpc.health.v1.Health. If nil, a server without dependency checks is registered.
	Health *healthhandler.Server
}

// NewGRPCServer returns a gRPC server instrumented with OpenTelemetry and request logging, with
// every service registered.
func NewGRPCServer(deps Deps, logger *zap.Logger) *grpc.Server {
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.LoggingUnary(logger, map[string]bool{healthCheckMethod: true}),
		),
	)
	RegisterServices(s, deps)
	return s
}

// RegisterServices registers all gRPC services with the given server.
//
//   - grpc.health.v1.Health → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	health := deps.Health
	if health == nil {
		health = healthhandler.NewServer(nil, nil)
	}
	healthpb.RegisterHealthServer(s, health)
}
