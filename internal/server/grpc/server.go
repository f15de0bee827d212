// Package grpc serves the standard gRPC health service. Serving status is
// derived from periodic pings of the service's dependencies.
package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/harvesthub/internal/logging"
)

// ServiceName is the health service name reported alongside the overall ("") status.
const ServiceName = "harvesthub.Registration"

// Check is a named dependency probe.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type HealthServer struct {
	address  string
	logger   logging.Logger
	checks   []Check
	interval time.Duration
	timeout  time.Duration
	health   *health.Server
}

func NewHealthServer(a string, l logging.Logger, interval, timeout time.Duration, checks ...Check) *HealthServer {
	return &HealthServer{
		address:  a,
		logger:   l.With("module", "grpc_health"),
		checks:   checks,
		interval: interval,
		timeout:  timeout,
		health:   health.NewServer(),
	}
}

func (s *HealthServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	s.probe(ctx)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info(ctx, "Stopping gRPC health server...")
				s.health.Shutdown()
				srv.GracefulStop()
				return
			case <-ticker.C:
				s.probe(ctx)
			}
		}
	}()

	s.logger.Info(ctx, "Starting gRPC health server", "address", s.address)

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

// probe runs every check and publishes SERVING only if all of them pass.
func (s *HealthServer) probe(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING

	for _, c := range s.checks {
		pctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := c.Ping(pctx)
		cancel()
		if err != nil {
			s.logger.Warn(ctx, "health check failed", "check", c.Name, "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
