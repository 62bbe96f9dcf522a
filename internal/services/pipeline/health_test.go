package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthReporter_FollowsAvailability(t *testing.T) {
	srv := health.NewServer()
	h := NewHealthReporter(srv)
	ctx := context.Background()

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		resp, err := srv.Check(ctx, &healthpb.HealthCheckRequest{Service: HealthService})
		require.NoError(t, err)
		return resp.GetStatus()
	}
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check())

	require.NoError(t, h.Consume(ctx, DerivedView{Status: ViewOK}))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check())

	require.NoError(t, h.Consume(ctx, UnavailableView(errors.New("link lost"))))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check())
}
