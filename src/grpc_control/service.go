package grpc_control

import (
	"fmt"
	"net"
	"sync"

	"market-relay/src/logger"
	"market-relay/src/models"
	"market-relay/src/relay"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// DefaultPort is used when grpc_port is not configured.
const DefaultPort = 50051

// RelayServiceName is the health service that aggregates every feed session.
const RelayServiceName = "market-relay"

// ControlService exposes the relay health over gRPC. Each feed session is
// reported under its subscription key, the overall relay under RelayServiceName.
type ControlService struct {
	Config *models.MConfig
	Logger *logger.Logger

	health *health.Server
	server *grpc.Server

	mu     sync.Mutex
	states map[string]relay.State
}

// NewControlService creates a new instance of ControlService
func NewControlService(cfg *models.MConfig, log *logger.Logger) *ControlService {
	s := &ControlService{
		Config: cfg,
		Logger: log,
		health: health.NewServer(),
		server: grpc.NewServer(),
		states: make(map[string]relay.State),
	}

	// Nothing is streaming until the first client attaches.
	s.health.SetServingStatus(RelayServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	healthpb.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)
	return s
}

// -----------------------------------------------------------------------------

// Observe is a relay.StateObserver.
func (s *ControlService) Observe(sessionKey string, state relay.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state == relay.StateClosed {
		delete(s.states, sessionKey)
	} else {
		s.states[sessionKey] = state
	}
	s.health.SetServingStatus(sessionKey, servingStatus(state))

	overall := healthpb.HealthCheckResponse_NOT_SERVING
	for _, st := range s.states {
		if st == relay.StateStreaming {
			overall = healthpb.HealthCheckResponse_SERVING
			break
		}
	}
	s.health.SetServingStatus(RelayServiceName, overall)
}

func servingStatus(state relay.State) healthpb.HealthCheckResponse_ServingStatus {
	switch state {
	case relay.StateStreaming:
		return healthpb.HealthCheckResponse_SERVING
	case relay.StateClosed:
		return healthpb.HealthCheckResponse_SERVICE_UNKNOWN
	default:
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
}

// -----------------------------------------------------------------------------

// Listen binds the configured gRPC address.
func (s *ControlService) Listen() (net.Listener, error) {
	port := s.Config.GrpcPort
	if port == 0 {
		port = DefaultPort
	}
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.Config.GrpcHost, port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen for gRPC: %w", err)
	}
	return lis, nil
}

// Serve blocks until Stop is called.
func (s *ControlService) Serve(lis net.Listener) error {
	s.Logger.Info("Starting gRPC Control Server on %s", lis.Addr())
	return s.server.Serve(lis)
}

// Stop marks everything as not serving and drains in-flight RPCs.
func (s *ControlService) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
