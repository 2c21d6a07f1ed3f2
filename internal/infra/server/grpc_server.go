package server

import (
	"context"
	"net"
	"time"

	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/adapters/transport/grpc/middleware"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/infra/config"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/infra/ratelimit"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const stopTimeout = 5 * time.Second

// NewGRPCServer builds the server with the interceptor chain and registers
// health, reflection and Prometheus metrics. TLS is used when both the
// certificate and key are configured.
func NewGRPCServer(cfg *config.Config, health healthpb.HealthServer, limiter *ratelimit.PerKey, logger *zap.Logger) (*grpc.Server, error) {
	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(middleware.ChainUnaryServer(logger, limiter)),
		grpc.StreamInterceptor(middleware.ChainStreamServer(logger, limiter)),
	}
	if cfg.HTTPSCertFile != "" && cfg.HTTPSKeyFile != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.HTTPSCertFile, cfg.HTTPSKeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "load gRPC TLS credentials")
		}
		opts = append(opts, grpc.Creds(creds))
	}

	srv := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(srv, health)
	grpc_prometheus.Register(srv)
	grpc_prometheus.EnableHandlingTimeHistogram()
	reflection.Register(srv)
	return srv, nil
}

// ServeGRPC serves on lis until ctx is cancelled, then stops gracefully,
// forcing the stop after a timeout.
func ServeGRPC(ctx context.Context, srv *grpc.Server, lis net.Listener, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
		errCh <- srv.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return errors.Wrap(err, "serve gRPC")
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("stopping gRPC server")
	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()

	select {
	case <-time.After(stopTimeout):
		srv.Stop()
	case <-done:
	}
	logger.Info("gRPC server stopped")
	return nil
}

// StartGRPCServer listens on GRPC_ADDRESS and serves until ctx is done.
func StartGRPCServer(ctx context.Context, cfg *config.Config, health healthpb.HealthServer, limiter *ratelimit.PerKey, logger *zap.Logger) error {
	srv, err := NewGRPCServer(cfg, health, limiter, logger)
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", cfg.GRPCAddress)
	if err != nil {
		return errors.Wrapf(err, "listen %s", cfg.GRPCAddress)
	}
	return ServeGRPC(ctx, srv, lis, logger)
}
