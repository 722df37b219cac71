package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"hotelbooking/internal/config"
	"hotelbooking/internal/domain"
	"hotelbooking/internal/repository"
	"hotelbooking/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

func startGRPC(t *testing.T, svc domain.BookingService) (*GRPCServer, healthpb.HealthClient) {
	t.Helper()
	srv, err := NewGRPCServer(config.GRPCConfig{Port: 0}, svc, nil)
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()

	port := srv.listener.Addr().(*net.TCPAddr).Port
	conn, err := grpc.NewClient(fmt.Sprintf("127.0.0.1:%d", port), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv, healthpb.NewHealthClient(conn)
}

func checkStatus(t *testing.T, client healthpb.HealthClient, name string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: name})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestGRPCServer_HealthFollowsReadiness(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := service.NewBookingService(store, store, nil, nil)
	srv, client := startGRPC(t, svc)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, checkStatus(t, client, ""), "not serving before the first check")

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, srv.CheckReadiness(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, checkStatus(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, checkStatus(t, client, BookingHealthService))
}

func TestGRPCServer_StoreDown(t *testing.T) {
	svc := &MockBookingService{}
	svc.On("Ready", mock.Anything).Return(domain.StoreError("ping", errors.New("connection refused")))
	srv, client := startGRPC(t, svc)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, srv.CheckReadiness(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, checkStatus(t, client, BookingHealthService))
	svc.AssertExpectations(t)
}

func TestGRPCServer_WatchReadinessRecovers(t *testing.T) {
	svc := &MockBookingService{}
	svc.On("Ready", mock.Anything).Return(errors.New("down")).Once()
	svc.On("Ready", mock.Anything).Return(nil)

	srv, _ := startGRPC(t, svc)
	srv.cfg.CheckInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.WatchReadiness(ctx)

	assert.Eventually(t, func() bool {
		resp, err := srv.health.Check(context.Background(), &healthpb.HealthCheckRequest{})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGRPCServer_UnknownService(t *testing.T) {
	store := repository.NewMemoryStore()
	_, client := startGRPC(t, service.NewBookingService(store, store, nil, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "nope"})
	assert.Error(t, err)
}

func TestRequestIDFromMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDMetadataKey, " abc "))
	assert.Equal(t, "abc", requestIDFromMetadata(ctx))
	assert.NotEmpty(t, requestIDFromMetadata(context.Background()))
}
