package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthhandler "chancafe-q/backend/internal/health/handler"
	"chancafe-q/backend/internal/server/interceptors"
)

// NewGRPCServer returns a gRPC server exposing the standard health service for
// load balancers and orchestrators. RPCs are traced through the global OTel providers.
func NewGRPCServer(health *healthhandler.Server, log *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	quiet := map[string]bool{healthpb.Health_Check_FullMethodName: true}
	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.LoggingUnary(log, quiet),
			interceptors.RecoveryUnary(log),
		),
	}, opts...)
	s := grpc.NewServer(opts...)
	if health != nil {
		health.Register(s)
	}
	return s
}
