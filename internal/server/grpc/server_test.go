package grpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/solveprint/printshop/internal/database/dbtest"
)

func TestHealthStatus(t *testing.T) {
	hs := health.NewServer()
	ctx := context.Background()

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, HealthStatus(ctx, dbtest.New(t), hs))
	resp, err := hs.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, HealthStatus(ctx, nil, hs))
}
