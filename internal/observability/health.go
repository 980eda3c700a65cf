package observability

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// SimulatorService is the health service name reported for the tick loop.
const SimulatorService = "orbital.Simulator"

// NewGRPCServer builds a gRPC server carrying the standard health service,
// traced with otelgrpc and measured by collector (which may be nil).
func NewGRPCServer(collector *SimCollector, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(collector.UnaryServerInterceptor()),
	}
	server := grpc.NewServer(append(base, opts...)...)

	hs := health.NewServer()
	hs.SetServingStatus(SimulatorService, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(server, hs)
	return server, hs
}
