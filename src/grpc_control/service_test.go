package grpc_control

import (
	"context"
	"net"
	"testing"
	"time"

	"market-relay/src/logger"
	"market-relay/src/models"
	"market-relay/src/relay"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startControl(t *testing.T) (*ControlService, healthpb.HealthClient) {
	t.Helper()

	svc := NewControlService(&models.MConfig{}, logger.NewNop())
	lis := bufconn.Listen(1 << 20)
	go svc.Serve(lis)
	t.Cleanup(svc.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return svc, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestRelayNotServingUntilStreaming(t *testing.T) {
	svc, client := startControl(t)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, RelayServiceName))

	svc.Observe("nifty50_full|2", relay.StateConnecting)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, "nifty50_full|2"))

	svc.Observe("nifty50_full|2", relay.StateStreaming)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, "nifty50_full|2"))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, RelayServiceName))
}

func TestRelayServingWhileAnySessionStreams(t *testing.T) {
	svc, client := startControl(t)

	svc.Observe("a", relay.StateStreaming)
	svc.Observe("b", relay.StateReconnecting)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, RelayServiceName))

	svc.Observe("a", relay.StateClosed)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, RelayServiceName))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVICE_UNKNOWN, check(t, client, "a"))
}
