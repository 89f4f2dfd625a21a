// Package handler exposes the health checker over gRPC and HTTP.
package handler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"chancafe-q/backend/internal/health"
)

// ServiceName is the gRPC health service name reported alongside the overall ("") status.
const ServiceName = "chancafe.auth"

// Server reports the checker's result through the standard grpc.health.v1 service.
type Server struct {
	health  *grpchealth.Server
	checker *health.Checker
	log     *zap.Logger
}

// NewServer returns a Server. Status is NOT_SERVING until the first Refresh.
func NewServer(checker *health.Checker, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	hs := grpchealth.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{health: hs, checker: checker, log: log.Named("health")}
}

// Register adds the health service to s.
func (s *Server) Register(reg grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(reg, s.health)
}

// Refresh runs the checker once and publishes the result.
func (s *Server) Refresh(ctx context.Context) health.Report {
	report := s.checker.Check(ctx)
	status := healthpb.HealthCheckResponse_SERVING
	if !report.Healthy() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		s.log.Warn("dependency check failed", zap.Any("checks", report.Checks))
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return report
}

// Run refreshes every interval until ctx ends, then marks the service NOT_SERVING.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	s.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Check answers a health request directly, without a transport.
func (s *Server) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}
