package pipeline

import (
	"context"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the gRPC service name reported by the health server.
const HealthService = "sems.pipeline"

// HealthReporter mirrors view availability onto a gRPC health server:
// SERVING while views are built from live data, NOT_SERVING otherwise.
type HealthReporter struct {
	srv *health.Server
}

func NewHealthReporter(srv *health.Server) *HealthReporter {
	srv.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthReporter{srv: srv}
}

func (h *HealthReporter) Name() string { return "grpc-health" }

func (h *HealthReporter) Consume(_ context.Context, v DerivedView) error {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if v.Available() {
		st = healthpb.HealthCheckResponse_SERVING
	}
	h.srv.SetServingStatus(HealthService, st)
	h.srv.SetServingStatus("", st)
	return nil
}
