// Package grpcserver exposes the standard gRPC health service.
package grpcserver

import (
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"clinic-chat/internal/observability"
)

// ServiceName is the health key reported for the messaging service.
const ServiceName = "clinic.chat"

// Server wraps a grpc.Server with a health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
}

// New builds the server with tracing and metrics interceptors. Both the
// overall and ServiceName statuses start as SERVING.
func New() *Server {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return &Server{grpc: srv, health: hs}
}

// Serve blocks accepting connections on lis.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Drain flips every status to NOT_SERVING so load balancers stop routing.
func (s *Server) Drain() {
	s.health.Shutdown()
}

// Stop drains and gracefully stops the server.
func (s *Server) Stop() {
	s.Drain()
	s.grpc.GracefulStop()
}
