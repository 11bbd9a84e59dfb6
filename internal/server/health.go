package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Pinger reports database reachability.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// NewGRPCServer returns a gRPC server exposing the standard health service.
// The overall status starts as SERVING; WatchHealth keeps it in step with the database.
func NewGRPCServer() (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer()

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	return grpcServer, healthServer
}

// WatchHealth pings the database every interval and flips the overall gRPC
// health status until ctx is done.
func WatchHealth(ctx context.Context, db Pinger, hs *health.Server, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	serving := true
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			err := db.HealthCheck(ctx, 3*time.Second)
			switch {
			case err != nil && serving:
				logger.Warn("database unreachable, reporting NOT_SERVING", "error", err)
				hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
				serving = false
			case err == nil && !serving:
				logger.Info("database reachable again, reporting SERVING")
				hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
				serving = true
			}
		}
	}
}
