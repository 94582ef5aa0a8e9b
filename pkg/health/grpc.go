package health

import (
	"context"

	"github.com/gogo/status"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// GRPC serves grpc.health.v1.Health from the same dependency checks as the
// HTTP readiness probe.
type GRPC struct {
	grpc_health_v1.UnimplementedHealthServer

	svc HealthService
}

func ProvideGRPC(svc HealthService) *GRPC {
	return &GRPC{svc: svc}
}

func (g *GRPC) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	if g.svc == nil {
		return nil, status.Error(codes.Internal, "health service not configured")
	}
	if g.svc.Check(ctx).Status != StatusHealthy {
		return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING}, nil
}

func (g *GRPC) Watch(req *grpc_health_v1.HealthCheckRequest, srv grpc_health_v1.Health_WatchServer) error {
	return status.Error(codes.Unimplemented, "Watch method not implemented")
}
