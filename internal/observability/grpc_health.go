package observability

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCHealthServer exposes the readiness checks over the standard gRPC health protocol
type GRPCHealthServer struct {
	server   *grpc.Server
	health   *health.Server
	checks   []ReadinessCheck
	interval time.Duration
}

// NewGRPCHealthServer creates a health server that re-evaluates checks every interval
func NewGRPCHealthServer(interval time.Duration, checks ...ReadinessCheck) *GRPCHealthServer {
	s := grpc.NewServer()
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)

	return &GRPCHealthServer{
		server:   s,
		health:   h,
		checks:   checks,
		interval: interval,
	}
}

// Refresh runs the checks once and publishes the overall serving status
func (g *GRPCHealthServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	_, ok := RunChecks(ctx, g.checks)
	status := healthpb.HealthCheckResponse_SERVING
	if !ok {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(serviceName, status)
	return status
}

// Serve listens on addr until ctx is cancelled
func (g *GRPCHealthServer) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC health on %s: %w", addr, err)
	}

	go g.watch(ctx)
	go func() {
		<-ctx.Done()
		g.health.Shutdown()
		g.server.GracefulStop()
	}()

	return g.server.Serve(lis)
}

func (g *GRPCHealthServer) watch(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		g.Refresh(checkCtx)
		cancel()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
